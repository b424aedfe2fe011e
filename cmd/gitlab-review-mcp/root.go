package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lininn/gitlab-review-mcp/internal/config"
	"github.com/lininn/gitlab-review-mcp/internal/credentials"
	"github.com/lininn/gitlab-review-mcp/internal/gitlab"
	"github.com/lininn/gitlab-review-mcp/internal/httpclient"
	"github.com/lininn/gitlab-review-mcp/internal/logging"
)

// globalFlags are bound to persistent flags on rootCmd.
type globalFlags struct {
	configPath string
	gitlabURL  string
	token      string
	timeout    time.Duration
	maxRetries int
	logLevel   string
}

var (
	flags     globalFlags
	cfg       *config.Config
	appLogger *logging.AppLogger
)

var rootCmd = &cobra.Command{
	Use:   "gitlab-review-mcp",
	Short: "MCP server for GitLab merge request review",
	Long: `gitlab-review-mcp exposes GitLab merge request operations to MCP clients.

The GitLab project is resolved from an explicit ID, path or URL, from the git
remote of the working directory, or by searching GitLab, in that order.

Configuration is read from the config file, then GITLAB_* environment
variables, then flags. The token falls back to the OS keyring.

Examples:
  gitlab-review-mcp                          # serve MCP over stdio
  gitlab-review-mcp resolve                  # which project is this checkout?
  gitlab-review-mcp resolve group/api
  gitlab-review-mcp analyze main.py
  gitlab-review-mcp token set glpat-...`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              runServe,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/gitlab-review-mcp/config.yaml)")
	pf.StringVar(&flags.gitlabURL, "gitlab-url", "", "GitLab instance or API URL")
	pf.StringVar(&flags.token, "token", "", "GitLab personal access token")
	pf.DurationVar(&flags.timeout, "timeout", 0, "per-request timeout")
	pf.IntVar(&flags.maxRetries, "max-retries", 0, "attempts per request for transient failures")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.Version = version
}

// loadConfig builds cfg and appLogger for every subcommand.
func loadConfig(cmd *cobra.Command, _ []string) error {
	appLogger = logging.GetDefault()

	path := flags.configPath
	if cmd == configInitCmd {
		// init creates the file, so a missing --config target is expected
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}

	loaded, err := config.Load(cmd.Context(), path)
	if err != nil {
		return err
	}
	applyFlags(loaded, flags)

	if err := appLogger.SetLevel(loaded.LogLevel); err != nil {
		appLogger.Warn("Ignoring log level", "error", err)
	}

	if loaded.Token == "" {
		token, err := credentials.NewCredentialManager().GetToken()
		switch {
		case err == nil:
			loaded.Token = token
		case errors.Is(err, credentials.ErrNoToken):
			appLogger.Debug("No token in keyring")
		default:
			appLogger.Warn("Could not read token from keyring", "error", err)
		}
	}

	cfg = loaded
	return nil
}

// applyFlags overrides c with every flag that was set.
func applyFlags(c *config.Config, f globalFlags) {
	if f.gitlabURL != "" {
		c.GitLabURL = config.NormalizeAPIURL(f.gitlabURL)
	}
	if f.token != "" {
		c.Token = f.token
	}
	if f.timeout > 0 {
		c.Timeout = f.timeout
	}
	if f.maxRetries > 0 {
		c.MaxAttempts = f.maxRetries
	}
	if f.logLevel != "" {
		c.LogLevel = f.logLevel
	}
}

// newService wires the HTTP client, resolver and merge request service.
func newService(c *config.Config, logger *logging.AppLogger) (*gitlab.Service, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	client := httpclient.New(httpclient.Config{
		BaseURL:        c.GitLabURL,
		Token:          c.Token,
		Timeout:        c.Timeout,
		MaxAttempts:    c.MaxAttempts,
		JitterFraction: httpclient.DefaultJitterFraction,
	}, nil, logger)

	resolver := gitlab.NewResolver(client, gitlab.ResolverOptions{
		APIHost:       c.APIHost(),
		DefaultRemote: c.DefaultRemote,
		Logger:        logger,
	})

	return gitlab.NewService(client, resolver, gitlab.ServiceOptions{
		DefaultTargetBranch: c.DefaultTargetBranch,
		APIHost:             c.APIHost(),
		Logger:              logger,
	}), nil
}
