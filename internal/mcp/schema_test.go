package mcp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeSchema(t *testing.T, params any) map[string]any {
	t.Helper()
	var schema map[string]any
	require.NoError(t, json.Unmarshal(inputSchema(params), &schema))
	return schema
}

func TestInputSchema_Project(t *testing.T) {
	schema := decodeSchema(t, &mergeRequestParams{})

	assert.Equal(t, "object", schema["type"])
	assert.NotContains(t, schema, "$schema")
	assert.NotContains(t, schema, "$ref")
	assert.NotEqual(t, false, schema["additionalProperties"], "aliases must not be rejected")

	props := schema["properties"].(map[string]any)
	for _, name := range []string{"projectId", "workingDirectory", "remoteName", "mergeRequestIid"} {
		assert.Contains(t, props, name)
	}
	assert.NotEmpty(t, props["projectId"].(map[string]any)["description"])
	assert.Nil(t, schema["required"])
}

func TestInputSchema_Required(t *testing.T) {
	schema := decodeSchema(t, &commentParams{})
	assert.Equal(t, []any{"body"}, schema["required"])

	props := schema["properties"].(map[string]any)
	assert.Contains(t, props, "projectId", "embedded parameters are inlined")
}

func TestInputSchema_AllTools(t *testing.T) {
	s := newTestServer(t, newFakeAPI(t))
	for _, spec := range s.toolSpecs() {
		schema := decodeSchema(t, spec.params)
		assert.Equal(t, "object", schema["type"], spec.name)
		assert.NotEmpty(t, spec.description, spec.name)
	}
}
