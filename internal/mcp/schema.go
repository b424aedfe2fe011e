package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// The parameter structs below only describe tool inputs. Decoding goes
// through decodeArgs so that every alias is accepted; the schemas advertise
// the canonical names and leave additional properties open.

type projectParams struct {
	ProjectID        string `json:"projectId,omitempty" jsonschema:"oneof_type=string;integer" jsonschema_description:"Project ID, path (group/project), web URL, or merge request URL. Detected from the git remote when omitted."`
	WorkingDirectory string `json:"workingDirectory,omitempty" jsonschema_description:"Directory of the local checkout used for git remote detection. Defaults to the server's working directory."`
	RemoteName       string `json:"remoteName,omitempty" jsonschema_description:"Git remote to inspect. Defaults to origin."`
}

type mergeRequestParams struct {
	projectParams
	MergeRequestIID int `json:"mergeRequestIid,omitempty" jsonschema_description:"Merge request IID (the number in the merge request URL). Optional when projectId is a merge request URL."`
}

type createParams struct {
	projectParams
	SourceBranch       string   `json:"sourceBranch,omitempty" jsonschema_description:"Branch to merge. Defaults to the current branch of workingDirectory."`
	TargetBranch       string   `json:"targetBranch,omitempty" jsonschema_description:"Branch to merge into. Defaults to the repository template or the configured default target branch."`
	Title              string   `json:"title,omitempty" jsonschema_description:"Merge request title. Generated from the source branch name when omitted."`
	Description        string   `json:"description,omitempty" jsonschema_description:"Merge request description. Defaults to .gitlab/merge_request_templates/Default.md when present."`
	AssigneeID         int64    `json:"assigneeId,omitempty" jsonschema_description:"User ID to assign."`
	ReviewerIDs        []int64  `json:"reviewerIds,omitempty" jsonschema_description:"User IDs to request review from."`
	Labels             []string `json:"labels,omitempty" jsonschema_description:"Labels to apply."`
	RemoveSourceBranch bool     `json:"removeSourceBranch,omitempty" jsonschema_description:"Delete the source branch after merge."`
	Squash             bool     `json:"squash,omitempty" jsonschema_description:"Squash commits on merge."`
}

type commentParams struct {
	mergeRequestParams
	Body string `json:"body" jsonschema:"required" jsonschema_description:"Comment text (Markdown)."`
}

type gitParams struct {
	WorkingDirectory string `json:"workingDirectory,omitempty" jsonschema_description:"Directory inside the repository. Defaults to the server's working directory."`
	RemoteName       string `json:"remoteName,omitempty" jsonschema_description:"Git remote to inspect. Defaults to origin."`
}

type analyzeParams struct {
	Code     string `json:"code,omitempty" jsonschema_description:"Source code to analyze. Either code or filePath is required."`
	FilePath string `json:"filePath,omitempty" jsonschema_description:"Path of a file (up to 1 MiB) to read and analyze."`
	FileName string `json:"fileName,omitempty" jsonschema_description:"File name used for language detection when code is given inline."`
	Language string `json:"language,omitempty" jsonschema:"enum=python,enum=javascript,enum=typescript,enum=go,enum=java,enum=ruby,enum=rust,enum=c,enum=cpp,enum=csharp,enum=php,enum=shell" jsonschema_description:"Language override. Detected from the file extension when omitted."`
}

var reflector = jsonschema.Reflector{
	RequiredFromJSONSchemaTags: true,
	ExpandedStruct:             true,
	AllowAdditionalProperties:  true,
	DoNotReference:             true,
}

// inputSchema reflects params into a raw JSON schema for a tool. params are
// static types defined in this package, so a failure here is a programming
// error.
func inputSchema(params any) json.RawMessage {
	s := reflector.Reflect(params)
	s.Version = ""
	s.ID = ""

	data, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("tool schema for %T: %v", params, err))
	}
	return data
}
