// Package config loads kbsync configuration from a TOML file with
// environment variable overrides for secrets and paths.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Defaults applied to zero-valued fields after loading.
const (
	DefaultStateDir       = "./state"
	DefaultCollectionName = "Support Articles"
	DefaultMaxItems       = 40
	DefaultBackend        = "file"
)

// Config holds the kbsync configuration.
type Config struct {
	// Source configures the content source.
	Source SourceConfig `toml:"source"`

	// Index configures the remote index service.
	Index IndexConfig `toml:"index"`

	// StateDir is where persistent state lives. Overridable with
	// KBSYNC_STATE_DIR.
	StateDir string `toml:"state_dir"`

	// Backend selects the state store: "file" or "sqlite".
	Backend string `toml:"backend"`

	// MaxItems bounds how many items each run lists.
	MaxItems int `toml:"max_items"`

	// Pacing controls batch pauses and status polling.
	Pacing PacingConfig `toml:"pacing"`
}

// SourceConfig configures the help-centre content source.
type SourceConfig struct {
	// BaseURL is the help-centre API root (required).
	BaseURL string `toml:"base_url"`

	// SiteURL is the public site root for citation links.
	SiteURL string `toml:"site_url"`

	// RequestsPerSecond caps the request rate toward the help centre.
	// Zero means the adapter default.
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// IndexConfig configures the index service client.
type IndexConfig struct {
	// APIKey authenticates toward the index service. Usually left
	// empty here and supplied via KBSYNC_API_KEY or OPENAI_API_KEY.
	APIKey string `toml:"api_key"`

	// BaseURL overrides the service endpoint (tests, proxies).
	BaseURL string `toml:"base_url"`

	// CollectionName is the named collection documents attach to.
	CollectionName string `toml:"collection_name"`
}

// PacingConfig controls timing toward the remote services.
type PacingConfig struct {
	// BatchPauseSeconds is the fixed pause between batch calls.
	BatchPauseSeconds int `toml:"batch_pause_seconds"`

	// PollIntervalSeconds is the wait between batch status polls.
	PollIntervalSeconds int `toml:"poll_interval_seconds"`

	// MaxPolls bounds the status polling loop.
	MaxPolls int `toml:"max_polls"`
}

// Load reads the config file at path, or returns defaults if path is
// empty or the file does not exist. Environment overrides are applied
// last.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// DefaultPath returns the conventional config file location inside
// the state directory.
func DefaultPath(stateDir string) string {
	return filepath.Join(stateDir, "kbsync.toml")
}

// BatchPause returns the configured inter-batch pause.
func (c *Config) BatchPause() time.Duration {
	return time.Duration(c.Pacing.BatchPauseSeconds) * time.Second
}

// PollInterval returns the configured poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Pacing.PollIntervalSeconds) * time.Second
}

// applyEnv overrides fields from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("KBSYNC_STATE_DIR"); v != "" {
		c.StateDir = v
	}
	if v := os.Getenv("KBSYNC_API_KEY"); v != "" {
		c.Index.APIKey = v
	} else if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.Index.APIKey == "" {
		c.Index.APIKey = v
	}
	if v := os.Getenv("KBSYNC_SOURCE_URL"); v != "" {
		c.Source.BaseURL = v
	}
}

// applyDefaults fills zero-valued fields.
func (c *Config) applyDefaults() {
	if c.StateDir == "" {
		c.StateDir = DefaultStateDir
	}
	if c.Backend == "" {
		c.Backend = DefaultBackend
	}
	if c.MaxItems <= 0 {
		c.MaxItems = DefaultMaxItems
	}
	if c.Index.CollectionName == "" {
		c.Index.CollectionName = DefaultCollectionName
	}
}

// Validate checks the fields a run cannot proceed without.
func (c *Config) Validate() error {
	if c.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url is required (or KBSYNC_SOURCE_URL)")
	}
	if c.Index.APIKey == "" {
		return fmt.Errorf("index API key is required (set KBSYNC_API_KEY or OPENAI_API_KEY)")
	}
	if c.Backend != "file" && c.Backend != "sqlite" {
		return fmt.Errorf("backend must be %q or %q, got %q", "file", "sqlite", c.Backend)
	}
	return nil
}
