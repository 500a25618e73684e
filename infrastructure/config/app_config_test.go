package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ca-srg/copilot-exporter/domain"
)

func validConfig() *AppConfig {
	config := DefaultConfig()
	config.GitHub.Organization = "acme"
	config.GitHub.Token = "ghp_0123456789"
	return config
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	require.NotNil(t, config.GitHub)
	assert.Equal(t, DefaultAPIBaseURL, config.GitHub.APIBaseURL)
	assert.Equal(t, 30, config.GitHub.TimeoutSec)
	assert.Equal(t, 43200, config.Poller.IntervalSec)
	assert.Equal(t, ":8080", config.Server.ListenAddress)
	assert.True(t, config.Server.EnableDocs)
	assert.False(t, config.RemoteWrite.Enabled())
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, SourceDefault, config.ConfigSources["GitHub.APIBaseURL"])
	assert.Equal(t, SourceDefault, config.ConfigSources["Logging.Promtail.BatchWaitSeconds"])
}

func TestAppConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *AppConfig)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			modify:  func(c *AppConfig) {},
			wantErr: false,
		},
		{
			name:    "missing organization",
			modify:  func(c *AppConfig) { c.GitHub.Organization = "  " },
			wantErr: true,
			errMsg:  "github.organization",
		},
		{
			name:    "organization with path separator",
			modify:  func(c *AppConfig) { c.GitHub.Organization = "acme/evil" },
			wantErr: true,
			errMsg:  "github.organization",
		},
		{
			name:    "missing token",
			modify:  func(c *AppConfig) { c.GitHub.Token = "" },
			wantErr: true,
			errMsg:  "github.token",
		},
		{
			name:    "relative base url",
			modify:  func(c *AppConfig) { c.GitHub.APIBaseURL = "api.github.com" },
			wantErr: true,
			errMsg:  "github.api_base_url",
		},
		{
			name:    "interval too short",
			modify:  func(c *AppConfig) { c.Poller.IntervalSec = 30 },
			wantErr: true,
			errMsg:  "poller.interval_seconds",
		},
		{
			name: "timeout not shorter than interval",
			modify: func(c *AppConfig) {
				c.Poller.IntervalSec = 60
				c.GitHub.TimeoutSec = 60
			},
			wantErr: true,
			errMsg:  "less than the poll interval",
		},
		{
			name:    "remote write without credentials",
			modify:  func(c *AppConfig) { c.RemoteWrite.URL = "https://prom.example.com/api/v1/write" },
			wantErr: true,
			errMsg:  "username and password",
		},
		{
			name: "remote write with credentials",
			modify: func(c *AppConfig) {
				c.RemoteWrite.URL = "https://prom.example.com/api/v1/write"
				c.RemoteWrite.Username = "user"
				c.RemoteWrite.Password = "pass"
			},
			wantErr: false,
		},
		{
			name:    "invalid log level",
			modify:  func(c *AppConfig) { c.Logging.Level = "verbose" },
			wantErr: true,
			errMsg:  "invalid log level",
		},
		{
			name:    "invalid log format",
			modify:  func(c *AppConfig) { c.Logging.Format = "xml" },
			wantErr: true,
			errMsg:  "logging.format",
		},
		{
			name:    "empty listen address",
			modify:  func(c *AppConfig) { c.Server.ListenAddress = "" },
			wantErr: true,
			errMsg:  "server.listen_address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.modify(config)

			err := config.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.True(t, domain.IsErrorCode(err, domain.ErrCodeConfiguration))
		})
	}
}

func TestAppConfig_TrackChanges(t *testing.T) {
	config := DefaultConfig()
	before := config.Snapshot()

	config.Server.ListenAddress = ":9090"
	config.TrackChanges(before, SourceJSONFile)

	assert.Equal(t, SourceJSONFile, config.ConfigSources["Server.ListenAddress"])
	assert.Equal(t, SourceDefault, config.ConfigSources["Server.ShutdownTimeoutSec"])
	_, hasSources := config.Snapshot()["ConfigSources"]
	assert.False(t, hasSources)
}

func TestGitHubConfig_MaskedToken(t *testing.T) {
	assert.Equal(t, "", (&GitHubConfig{}).MaskedToken())
	assert.Equal(t, "****", (&GitHubConfig{Token: "abc"}).MaskedToken())
	assert.Equal(t, "********6789", (&GitHubConfig{Token: "ghp_0123456789"}).MaskedToken())
}
