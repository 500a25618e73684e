package repository

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ca-srg/copilot-exporter/domain"
	"github.com/ca-srg/copilot-exporter/infrastructure/config"
)

func writeConfigFile(t *testing.T, content string, perm os.FileMode) string {
	t.Helper()

	// テスト用の一時ディレクトリを作成
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	// umask の影響を受けないように明示的に設定
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestJSONConfigRepository_LoadInto(t *testing.T) {
	path := writeConfigFile(t, `{
		"github": {"organization": "acme", "token": "ghp_file"},
		"server": {"listen_address": ":9090", "enable_docs": false}
	}`, 0600)

	repo := NewJSONConfigRepository(path)
	cfg := config.DefaultConfig()

	loaded, err := repo.LoadInto(cfg)
	require.NoError(t, err)
	assert.True(t, loaded)

	// ファイルに書かれた値
	assert.Equal(t, "acme", cfg.GitHub.Organization)
	assert.Equal(t, "ghp_file", cfg.GitHub.Token)
	assert.Equal(t, ":9090", cfg.Server.ListenAddress)
	assert.False(t, cfg.Server.EnableDocs)

	// ファイルに無い項目はデフォルト値のまま
	assert.Equal(t, config.DefaultAPIBaseURL, cfg.GitHub.APIBaseURL)
	assert.Equal(t, 5, cfg.Server.ShutdownTimeoutSec)
	assert.Equal(t, config.DefaultPollIntervalSec, cfg.Poller.IntervalSec)

	assert.Equal(t, config.SourceJSONFile, cfg.ConfigSources["GitHub.Organization"])
	assert.Equal(t, config.SourceDefault, cfg.ConfigSources["GitHub.APIBaseURL"])
	assert.Equal(t, path, repo.GetConfigPath())
}

func TestJSONConfigRepository_MissingFile(t *testing.T) {
	repo := NewJSONConfigRepository(filepath.Join(t.TempDir(), "nope.json"))

	exists, err := repo.Exists()
	require.NoError(t, err)
	assert.False(t, exists)

	cfg := config.DefaultConfig()
	loaded, err := repo.LoadInto(cfg)
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.Equal(t, ":8080", cfg.Server.ListenAddress)
}

func TestJSONConfigRepository_InvalidJSON(t *testing.T) {
	path := writeConfigFile(t, `{"github": `, 0600)

	_, err := NewJSONConfigRepository(path).LoadInto(config.DefaultConfig())
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeDecode))
}

func TestJSONConfigRepository_UnknownField(t *testing.T) {
	path := writeConfigFile(t, `{"github": {"organisation": "typo"}}`, 0600)

	_, err := NewJSONConfigRepository(path).LoadInto(config.DefaultConfig())
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeDecode))
}

func TestJSONConfigRepository_WorldWritable(t *testing.T) {
	path := writeConfigFile(t, `{}`, 0666)

	_, err := NewJSONConfigRepository(path).LoadInto(config.DefaultConfig())
	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeFileOperation))
	assert.Contains(t, err.Error(), "insufficient permissions")
}

func TestJSONConfigRepository_NilConfig(t *testing.T) {
	_, err := NewJSONConfigRepository("").LoadInto(nil)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidInput))
}
