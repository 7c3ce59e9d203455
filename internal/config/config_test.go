package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultStateDir, cfg.StateDir)
	assert.Equal(t, DefaultBackend, cfg.Backend)
	assert.Equal(t, DefaultMaxItems, cfg.MaxItems)
	assert.Equal(t, DefaultCollectionName, cfg.Index.CollectionName)
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultStateDir, cfg.StateDir)
}

func TestLoad_ParsesTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kbsync.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
state_dir = "/var/lib/kbsync"
backend = "sqlite"
max_items = 100

[source]
base_url = "https://support.example.com/api/v2/help_center"
site_url = "https://support.example.com"
requests_per_second = 4.0

[index]
collection_name = "Docs"

[pacing]
batch_pause_seconds = 3
poll_interval_seconds = 5
max_polls = 20
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/kbsync", cfg.StateDir)
	assert.Equal(t, "sqlite", cfg.Backend)
	assert.Equal(t, 100, cfg.MaxItems)
	assert.Equal(t, "https://support.example.com/api/v2/help_center", cfg.Source.BaseURL)
	assert.Equal(t, 4.0, cfg.Source.RequestsPerSecond)
	assert.Equal(t, "Docs", cfg.Index.CollectionName)
	assert.Equal(t, 3*time.Second, cfg.BatchPause())
	assert.Equal(t, 5*time.Second, cfg.PollInterval())
	assert.Equal(t, 20, cfg.Pacing.MaxPolls)
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kbsync.toml")
	require.NoError(t, os.WriteFile(path, []byte("not = [valid"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("KBSYNC_STATE_DIR", "/tmp/env-state")
	t.Setenv("KBSYNC_API_KEY", "env-key")
	t.Setenv("KBSYNC_SOURCE_URL", "https://env.example.com/api")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/env-state", cfg.StateDir)
	assert.Equal(t, "env-key", cfg.Index.APIKey)
	assert.Equal(t, "https://env.example.com/api", cfg.Source.BaseURL)
}

func TestLoad_OpenAIKeyFallback(t *testing.T) {
	t.Setenv("KBSYNC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-fallback")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-fallback", cfg.Index.APIKey)
}

func TestLoad_KBSyncKeyWinsOverOpenAI(t *testing.T) {
	t.Setenv("KBSYNC_API_KEY", "kbsync-key")
	t.Setenv("OPENAI_API_KEY", "sk-fallback")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "kbsync-key", cfg.Index.APIKey)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Source:  SourceConfig{BaseURL: "https://support.example.com/api"},
			Index:   IndexConfig{APIKey: "key"},
			Backend: "file",
		}
	}

	assert.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Source.BaseURL = ""
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Index.APIKey = ""
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Backend = "redis"
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Backend = "sqlite"
	assert.NoError(t, cfg.Validate())
}

func TestDefaultPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/srv/state", "kbsync.toml"), DefaultPath("/srv/state"))
}
