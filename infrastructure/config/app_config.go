package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"reflect"
	"strings"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"

	"github.com/ca-srg/copilot-exporter/domain"
)

const (
	// DefaultAPIBaseURL is the public GitHub REST API endpoint
	DefaultAPIBaseURL = "https://api.github.com"

	// DefaultPollIntervalSec is the fixed 12 hour cadence of the usage poller
	DefaultPollIntervalSec = 12 * 60 * 60
)

// GitHubConfig holds GitHub API access configuration
type GitHubConfig struct {
	// Organization is the organization whose Copilot usage is exported
	Organization string `json:"organization" env:"GITHUB_ORGANIZATION"`

	// Token is the personal access token or app token used for the usage API
	Token string `json:"token" env:"GITHUB_TOKEN"`

	// APIBaseURL is the REST API root, e.g. https://ghe.example.com/api/v3 for GitHub Enterprise Server
	APIBaseURL string `json:"api_base_url,omitempty" env:"GITHUB_API_BASE_URL"`

	// TimeoutSec is the timeout in seconds for a single usage request
	TimeoutSec int `json:"timeout_seconds,omitempty" env:"GITHUB_API_TIMEOUT_SECONDS"`
}

// PollerConfig holds usage poller configuration
type PollerConfig struct {
	// IntervalSec is the idle time in seconds between two poll cycles
	IntervalSec int `json:"interval_seconds,omitempty" env:"COPILOT_EXPORTER_POLL_INTERVAL_SECONDS"`
}

// ServerConfig holds the metrics HTTP server configuration
type ServerConfig struct {
	// ListenAddress is the host:port the HTTP server binds to
	ListenAddress string `json:"listen_address,omitempty" env:"COPILOT_EXPORTER_LISTEN_ADDRESS"`

	// ShutdownTimeoutSec bounds graceful shutdown of in-flight scrapes
	ShutdownTimeoutSec int `json:"shutdown_timeout_seconds,omitempty" env:"COPILOT_EXPORTER_SHUTDOWN_TIMEOUT_SECONDS"`

	// EnableDocs serves /openapi.json and /docs
	EnableDocs bool `json:"enable_docs" env:"COPILOT_EXPORTER_ENABLE_DOCS"`
}

// RemoteWriteConfig holds optional Prometheus Remote Write configuration
type RemoteWriteConfig struct {
	// URL is the Prometheus Remote Write endpoint URL. Empty disables pushing.
	URL string `json:"url,omitempty" env:"COPILOT_EXPORTER_REMOTE_WRITE_URL"`

	// Username is the username for Remote Write authentication
	Username string `json:"username,omitempty" env:"COPILOT_EXPORTER_REMOTE_WRITE_USERNAME"`

	// Password is the password for Remote Write authentication
	Password string `json:"password,omitempty" env:"COPILOT_EXPORTER_REMOTE_WRITE_PASSWORD"`

	// TimeoutSec is the timeout in seconds for a single push
	TimeoutSec int `json:"timeout_seconds,omitempty" env:"COPILOT_EXPORTER_REMOTE_WRITE_TIMEOUT_SECONDS"`
}

// Enabled reports whether a Remote Write endpoint is configured
func (r *RemoteWriteConfig) Enabled() bool {
	return r != nil && r.URL != ""
}

// PromtailConfig holds Promtail logging configuration
type PromtailConfig struct {
	// URL is the Loki push endpoint URL. Empty disables shipping logs to Loki.
	URL string `json:"url,omitempty" env:"COPILOT_EXPORTER_LOKI_URL"`

	// Username is the username for basic authentication
	Username string `json:"username,omitempty" env:"COPILOT_EXPORTER_LOKI_USERNAME"`

	// Password is the password for basic authentication
	Password string `json:"password,omitempty" env:"COPILOT_EXPORTER_LOKI_PASSWORD"`

	// BatchWaitSeconds is the time to wait before sending a batch
	BatchWaitSeconds int `json:"batch_wait_seconds,omitempty" env:"COPILOT_EXPORTER_LOKI_BATCH_WAIT_SECONDS"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string `json:"level,omitempty" env:"COPILOT_EXPORTER_LOG_LEVEL"`

	// Format selects the console encoding (json or console)
	Format string `json:"format,omitempty" env:"COPILOT_EXPORTER_LOG_FORMAT"`

	// Debug forces the debug level and human readable console output
	Debug bool `json:"debug,omitempty" env:"COPILOT_EXPORTER_LOG_DEBUG"`

	// Promtail holds Promtail configuration
	Promtail *PromtailConfig `json:"promtail,omitempty"`
}

// ConfigSource represents the source of a configuration value
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceJSONFile    ConfigSource = "json"
	SourceEnvironment ConfigSource = "env"
	SourceFlag        ConfigSource = "flag"
)

// ConfigSourceMap tracks the source of each configuration field
type ConfigSourceMap map[string]ConfigSource

// AppConfig holds application configuration
type AppConfig struct {
	// Version is the configuration schema version
	Version int `json:"version,omitempty"`

	// GitHub holds GitHub API access configuration
	GitHub *GitHubConfig `json:"github,omitempty"`

	// Poller holds usage poller configuration
	Poller *PollerConfig `json:"poller,omitempty"`

	// Server holds the HTTP server configuration
	Server *ServerConfig `json:"server,omitempty"`

	// RemoteWrite holds optional Prometheus Remote Write configuration
	RemoteWrite *RemoteWriteConfig `json:"remote_write,omitempty"`

	// Logging holds logging configuration
	Logging *LoggingConfig `json:"logging,omitempty"`

	// ConfigSources tracks the source of each configuration field
	ConfigSources ConfigSourceMap `json:"-"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	cfg := &AppConfig{
		Version: 1,
		GitHub: &GitHubConfig{
			APIBaseURL: DefaultAPIBaseURL,
			TimeoutSec: 30,
		},
		Poller: &PollerConfig{
			IntervalSec: DefaultPollIntervalSec,
		},
		Server: &ServerConfig{
			ListenAddress:      ":8080",
			ShutdownTimeoutSec: 5,
			EnableDocs:         true,
		},
		RemoteWrite: &RemoteWriteConfig{
			TimeoutSec: 30,
		},
		Logging: &LoggingConfig{
			Level:  "info",
			Format: "json",
			Promtail: &PromtailConfig{
				BatchWaitSeconds: 1,
			},
		},
		ConfigSources: make(ConfigSourceMap),
	}
	cfg.MarkDefaults()
	return cfg
}

// MarkDefaults marks all configuration fields as coming from defaults
func (c *AppConfig) MarkDefaults() {
	if c.ConfigSources == nil {
		c.ConfigSources = make(ConfigSourceMap)
	}
	for key := range c.snapshot() {
		c.ConfigSources[key] = SourceDefault
	}
}

// TrackChanges marks every field that differs from before as coming from source
func (c *AppConfig) TrackChanges(before map[string]string, source ConfigSource) {
	if c.ConfigSources == nil {
		c.ConfigSources = make(ConfigSourceMap)
	}
	for key, value := range c.snapshot() {
		if prev, ok := before[key]; !ok || prev != value {
			c.ConfigSources[key] = source
		}
	}
}

// Snapshot returns a flat "Section.Field" view of the current values
func (c *AppConfig) Snapshot() map[string]string {
	return c.snapshot()
}

// LoadDotEnv loads the given .env files into the process environment.
// Missing files are skipped and variables already set are never overwritten.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables using Netflix/go-env
func (c *AppConfig) LoadFromEnv() error {
	before := c.snapshot()

	if c.GitHub != nil {
		if _, err := env.UnmarshalFromEnviron(c.GitHub); err != nil {
			return fmt.Errorf("failed to unmarshal GitHub environment variables: %w", err)
		}
		// ASP.NET style keys (GitHub__Organization) are accepted as a fallback
		if c.GitHub.Organization == "" {
			c.GitHub.Organization = os.Getenv("GitHub__Organization")
		}
		if c.GitHub.Token == "" {
			c.GitHub.Token = os.Getenv("GitHub__Token")
		}
	}

	if c.Poller != nil {
		if _, err := env.UnmarshalFromEnviron(c.Poller); err != nil {
			return fmt.Errorf("failed to unmarshal Poller environment variables: %w", err)
		}
	}

	if c.Server != nil {
		if _, err := env.UnmarshalFromEnviron(c.Server); err != nil {
			return fmt.Errorf("failed to unmarshal Server environment variables: %w", err)
		}
	}

	if c.RemoteWrite != nil {
		if _, err := env.UnmarshalFromEnviron(c.RemoteWrite); err != nil {
			return fmt.Errorf("failed to unmarshal RemoteWrite environment variables: %w", err)
		}
	}

	if c.Logging != nil {
		if _, err := env.UnmarshalFromEnviron(c.Logging); err != nil {
			return fmt.Errorf("failed to unmarshal Logging environment variables: %w", err)
		}
		if c.Logging.Promtail != nil {
			if _, err := env.UnmarshalFromEnviron(c.Logging.Promtail); err != nil {
				return fmt.Errorf("failed to unmarshal Promtail environment variables: %w", err)
			}
		}
	}

	c.TrackChanges(before, SourceEnvironment)
	return nil
}

// Validate validates the configuration
func (c *AppConfig) Validate() error {
	if err := c.validateGitHub(); err != nil {
		return err
	}
	if err := c.validatePoller(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateRemoteWrite(); err != nil {
		return err
	}
	return c.validateLogging()
}

// validateGitHub validates GitHub configuration.
// Organization and token are required up front so a misconfiguration fails at
// startup instead of producing an unauthorized request every cycle.
func (c *AppConfig) validateGitHub() error {
	if c.GitHub == nil {
		return domain.ErrConfiguration("github", "section is missing")
	}

	org := strings.TrimSpace(c.GitHub.Organization)
	if org == "" {
		return domain.ErrConfiguration("github.organization", "must not be empty (GITHUB_ORGANIZATION)")
	}
	if strings.ContainsAny(org, "/?#% ") {
		return domain.ErrConfiguration("github.organization", "contains characters not allowed in an organization login")
	}

	if strings.TrimSpace(c.GitHub.Token) == "" {
		return domain.ErrConfiguration("github.token", "must not be empty (GITHUB_TOKEN)")
	}

	u, err := url.Parse(c.GitHub.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.ErrConfiguration("github.api_base_url", "must be an absolute http(s) URL")
	}

	if c.GitHub.TimeoutSec < 1 {
		return domain.ErrConfiguration("github.timeout_seconds", "must be at least 1 second")
	}

	return nil
}

// validatePoller validates Poller configuration
func (c *AppConfig) validatePoller() error {
	if c.Poller == nil {
		return domain.ErrConfiguration("poller", "section is missing")
	}

	if c.Poller.IntervalSec < 60 {
		return domain.ErrConfiguration("poller.interval_seconds", "must be at least 60 seconds")
	}

	if c.GitHub != nil && c.GitHub.TimeoutSec >= c.Poller.IntervalSec {
		return domain.ErrConfiguration("github.timeout_seconds", "must be less than the poll interval")
	}

	return nil
}

// validateServer validates Server configuration
func (c *AppConfig) validateServer() error {
	if c.Server == nil {
		return domain.ErrConfiguration("server", "section is missing")
	}

	if c.Server.ListenAddress == "" {
		return domain.ErrConfiguration("server.listen_address", "must not be empty")
	}

	if c.Server.ShutdownTimeoutSec < 1 {
		return domain.ErrConfiguration("server.shutdown_timeout_seconds", "must be at least 1 second")
	}

	return nil
}

// validateRemoteWrite validates RemoteWrite configuration
func (c *AppConfig) validateRemoteWrite() error {
	if !c.RemoteWrite.Enabled() {
		return nil
	}

	u, err := url.Parse(c.RemoteWrite.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.ErrConfiguration("remote_write.url", "must be an absolute http(s) URL")
	}

	if c.RemoteWrite.TimeoutSec < 1 {
		return domain.ErrConfiguration("remote_write.timeout_seconds", "must be at least 1 second")
	}

	// Validate basic authentication is provided for remote write
	if c.RemoteWrite.Username == "" || c.RemoteWrite.Password == "" {
		return domain.ErrConfiguration("remote_write", "username and password are required when url is set")
	}

	return nil
}

// validateLogging validates Logging configuration
func (c *AppConfig) validateLogging() error {
	if c.Logging == nil {
		return nil
	}

	if c.Logging.Level != "" {
		validLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if !validLevels[strings.ToLower(c.Logging.Level)] {
			return domain.ErrConfiguration("logging.level",
				fmt.Sprintf("invalid log level %q (must be debug, info, warn, or error)", c.Logging.Level))
		}
	}

	if c.Logging.Format != "" && c.Logging.Format != "json" && c.Logging.Format != "console" {
		return domain.ErrConfiguration("logging.format", "must be json or console")
	}

	if c.Logging.Promtail != nil && c.Logging.Promtail.URL != "" {
		if c.Logging.Promtail.BatchWaitSeconds < 1 {
			return domain.ErrConfiguration("logging.promtail.batch_wait_seconds", "must be at least 1 second")
		}
	}

	return nil
}

// MaskedToken returns the token with everything but the last four characters hidden
func (g *GitHubConfig) MaskedToken() string {
	if g == nil || g.Token == "" {
		return ""
	}
	if len(g.Token) <= 4 {
		return "****"
	}
	return strings.Repeat("*", 8) + g.Token[len(g.Token)-4:]
}

// snapshot flattens every section into "Section.Field" -> value
func (c *AppConfig) snapshot() map[string]string {
	out := make(map[string]string)
	flatten(out, "", reflect.ValueOf(c).Elem())
	delete(out, "ConfigSources")
	return out
}

func flatten(out map[string]string, prefix string, v reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() || field.Name == "ConfigSources" {
			continue
		}
		name := field.Name
		if prefix != "" {
			name = prefix + "." + field.Name
		}

		fv := v.Field(i)
		if fv.Kind() == reflect.Ptr {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}
		if fv.Kind() == reflect.Struct {
			flatten(out, name, fv)
			continue
		}
		out[name] = fmt.Sprintf("%v", fv.Interface())
	}
}
