// Command gitlab-review-mcp is an MCP server that lets AI assistants review
// and open GitLab merge requests for the repository they are working in.
//
// Running without a subcommand starts the server on stdin/stdout. The other
// subcommands are for humans: checking which project a checkout resolves to,
// running the code analyzer, and managing the stored token and config file.
package main

import (
	"os"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
