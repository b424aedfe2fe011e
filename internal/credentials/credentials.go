// Package credentials stores the GitLab personal access token in the OS
// credential store (macOS Keychain, Windows Credential Manager, Linux Secret
// Service) so it does not have to live in the config file or the MCP host's
// environment block.
package credentials

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// Service name for OS credential store
	credentialService = "gitlab-review-mcp"
	// Key for GitLab Personal Access Token
	gitlabTokenKey = "gitlab_pat"

	minTokenLength = 20
)

// ErrNoToken is returned when nothing is stored for the service.
var ErrNoToken = errors.New("no GitLab token found - run 'gitlab-review-mcp token set' or export GITLAB_TOKEN")

// tokenPrefixes are the prefixes GitLab has issued since 14.5. Older tokens
// have no prefix and are still accepted.
var tokenPrefixes = []string{
	"glpat-", // personal, project and group access tokens
	"gloas-", // OAuth application secrets
	"gldt-",  // deploy tokens
	"glcbt-", // CI/CD job tokens
}

// CredentialManager handles secure storage and retrieval of authentication credentials
type CredentialManager struct {
	service string
}

// NewCredentialManager creates a new credential manager instance
func NewCredentialManager() *CredentialManager {
	return &CredentialManager{
		service: credentialService,
	}
}

// NewCredentialManagerForService scopes the manager to a custom keyring
// service, used to isolate tests from the user's real credentials.
func NewCredentialManagerForService(service string) *CredentialManager {
	return &CredentialManager{service: service}
}

// StoreToken validates and stores a GitLab token.
func (cm *CredentialManager) StoreToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("token cannot be empty")
	}

	if err := ValidateTokenFormat(token); err != nil {
		return fmt.Errorf("invalid token format: %w", err)
	}

	if err := keyring.Set(cm.service, gitlabTokenKey, token); err != nil {
		return fmt.Errorf("failed to store token in credential store: %w", err)
	}

	return nil
}

// GetToken retrieves the stored token. ErrNoToken is returned (wrapped) when
// nothing has been stored.
func (cm *CredentialManager) GetToken() (string, error) {
	token, err := keyring.Get(cm.service, gitlabTokenKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("failed to retrieve token from credential store: %w", err)
	}

	if strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("stored token is empty - run 'gitlab-review-mcp token set' to replace it")
	}

	return token, nil
}

// DeleteToken removes the stored token. Deleting a missing token is not an error.
func (cm *CredentialManager) DeleteToken() error {
	err := keyring.Delete(cm.service, gitlabTokenKey)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete token from credential store: %w", err)
	}
	return nil
}

// HasToken checks if a token is stored without returning it.
func (cm *CredentialManager) HasToken() bool {
	_, err := keyring.Get(cm.service, gitlabTokenKey)
	return err == nil
}

// ValidateTokenFormat rejects values that cannot be GitLab tokens. Prefix-less
// tokens are allowed since self-managed instances still issue them.
func ValidateTokenFormat(token string) error {
	token = strings.TrimSpace(token)

	if len(token) < minTokenLength {
		return fmt.Errorf("token too short (minimum %d characters)", minTokenLength)
	}

	if strings.ContainsAny(token, " \t\r\n") {
		return fmt.Errorf("token must not contain whitespace")
	}

	return nil
}

// HasKnownPrefix reports whether the token carries one of GitLab's typed prefixes.
func HasKnownPrefix(token string) bool {
	for _, prefix := range tokenPrefixes {
		if strings.HasPrefix(token, prefix) {
			return true
		}
	}
	return false
}

// MaskToken keeps the prefix and last four characters for display.
func MaskToken(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	head := ""
	for _, prefix := range tokenPrefixes {
		if strings.HasPrefix(token, prefix) {
			head = prefix
			break
		}
	}
	return head + strings.Repeat("*", len(token)-len(head)-4) + token[len(token)-4:]
}
