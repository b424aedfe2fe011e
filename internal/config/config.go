package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lininn/gitlab-review-mcp/internal/logging"

	"github.com/adrg/xdg"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

const APP_NAME = "gitlab-review-mcp" // application name used for config directory

const (
	DefaultGitLabURL     = "https://gitlab.com/api/v4"
	DefaultTimeout       = 30 * time.Second
	DefaultMaxAttempts   = 3
	DefaultRemote        = "origin"
	DefaultTargetBranch  = "main"
	apiPathSuffix        = "/api/v4"
	configFileName       = "config.yaml"
	configFilePermission = 0600
)

// Config holds process-wide settings. It is read-only once the server starts.
type Config struct {
	// GitLabURL is the API base, always ending in /api/v4.
	GitLabURL           string        `yaml:"gitlab_url"`
	Token               string        `yaml:"token,omitempty"`
	Timeout             time.Duration `yaml:"timeout"`
	MaxAttempts         int           `yaml:"max_attempts"`
	DefaultRemote       string        `yaml:"default_remote"`
	DefaultTargetBranch string        `yaml:"default_target_branch"`
	MetricsAddr         string        `yaml:"metrics_addr,omitempty"`
	LogLevel            string        `yaml:"log_level,omitempty"`
}

// envOverrides mirrors the variables MCP hosts usually pass to the server.
type envOverrides struct {
	APIURL              string        `env:"GITLAB_API_URL"`
	URL                 string        `env:"GITLAB_URL"`
	Token               string        `env:"GITLAB_TOKEN"`
	PersonalAccessToken string        `env:"GITLAB_PERSONAL_ACCESS_TOKEN"`
	Timeout             time.Duration `env:"GITLAB_TIMEOUT"`
	MaxAttempts         int           `env:"GITLAB_MAX_RETRIES"`
	DefaultRemote       string        `env:"GITLAB_DEFAULT_REMOTE"`
	DefaultTargetBranch string        `env:"GITLAB_DEFAULT_TARGET_BRANCH"`
	MetricsAddr         string        `env:"METRICS_ADDR"`
	LogLevel            string        `env:"LOG_LEVEL"`
}

// ConfigPath returns the standard config file path for the current platform
func ConfigPath() string {
	configPath := filepath.Join(xdg.ConfigHome, APP_NAME, configFileName)

	logging.Debug("Determined config path", "path", configPath)
	return configPath
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		GitLabURL:           DefaultGitLabURL,
		Timeout:             DefaultTimeout,
		MaxAttempts:         DefaultMaxAttempts,
		DefaultRemote:       DefaultRemote,
		DefaultTargetBranch: DefaultTargetBranch,
	}
}

// Load builds the effective configuration: defaults, then the config file at
// path (the standard location when empty, silently skipped when missing),
// then environment variables.
func Load(ctx context.Context, path string) (*Config, error) {
	return LoadWith(ctx, path, envconfig.OsLookuper())
}

// LoadWith is Load with an explicit environment source.
func LoadWith(ctx context.Context, path string, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = ConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		fileCfg, err := LoadFrom(path)
		if err != nil {
			return nil, err
		}
		cfg.merge(*fileCfg)
	} else if explicit {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	var env envOverrides
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &env,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	cfg.applyEnv(env)

	cfg.GitLabURL = NormalizeAPIURL(cfg.GitLabURL)
	return &cfg, nil
}

// LoadFrom loads config from a specific path
func LoadFrom(path string) (*Config, error) {
	logging.Debug("Reading config file", "path", path)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// merge copies every non-zero field of other onto c.
func (c *Config) merge(other Config) {
	if other.GitLabURL != "" {
		c.GitLabURL = other.GitLabURL
	}
	if other.Token != "" {
		c.Token = other.Token
	}
	if other.Timeout > 0 {
		c.Timeout = other.Timeout
	}
	if other.MaxAttempts > 0 {
		c.MaxAttempts = other.MaxAttempts
	}
	if other.DefaultRemote != "" {
		c.DefaultRemote = other.DefaultRemote
	}
	if other.DefaultTargetBranch != "" {
		c.DefaultTargetBranch = other.DefaultTargetBranch
	}
	if other.MetricsAddr != "" {
		c.MetricsAddr = other.MetricsAddr
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}

func (c *Config) applyEnv(env envOverrides) {
	// GITLAB_API_URL wins over GITLAB_URL when both are present.
	apiURL := env.APIURL
	if apiURL == "" {
		apiURL = env.URL
	}
	token := env.Token
	if token == "" {
		token = env.PersonalAccessToken
	}

	c.merge(Config{
		GitLabURL:           apiURL,
		Token:               token,
		Timeout:             env.Timeout,
		MaxAttempts:         env.MaxAttempts,
		DefaultRemote:       env.DefaultRemote,
		DefaultTargetBranch: env.DefaultTargetBranch,
		MetricsAddr:         env.MetricsAddr,
		LogLevel:            env.LogLevel,
	})
}

// NormalizeAPIURL trims whitespace and trailing slashes and appends /api/v4
// when the URL points at the instance root.
func NormalizeAPIURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	if u == "" {
		return DefaultGitLabURL
	}
	if !strings.Contains(u, "://") {
		u = "https://" + u
	}
	if !strings.HasSuffix(u, apiPathSuffix) {
		u += apiPathSuffix
	}
	return u
}

// APIHost returns the host[:port] of the configured API, lower-cased. Git
// remotes pointing at a different host are never resolved against this API.
func (c *Config) APIHost() string {
	parsed, err := url.Parse(c.GitLabURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Host)
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	parsed, err := url.Parse(c.GitLabURL)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("invalid GitLab URL %q", c.GitLabURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("GitLab URL must use http or https, got %q", parsed.Scheme)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	return nil
}

// Redacted returns a copy that is safe to print.
func (c Config) Redacted() Config {
	if c.Token != "" {
		c.Token = "********"
	}
	return c
}

// Save writes the config to the standard location
func (c *Config) Save() error {
	return c.SaveTo(ConfigPath())
}

// SaveTo writes the config to a specific path
func (c *Config) SaveTo(path string) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may carry a token
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, configFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	defer enc.Close()

	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	logging.Info("Configuration saved", "path", path)
	return nil
}
