// Package cli provides the kbsync command line interface. The root
// command runs one sync pass; there are no operation subcommands, the
// tool is a batch job invoked on a schedule.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	artifactstore "github.com/custodia-labs/kbsync-cli/internal/adapters/driven/artifacts"
	"github.com/custodia-labs/kbsync-cli/internal/adapters/driven/index/openai"
	"github.com/custodia-labs/kbsync-cli/internal/adapters/driven/source/zendesk"
	filestate "github.com/custodia-labs/kbsync-cli/internal/adapters/driven/statestore/file"
	sqlitestate "github.com/custodia-labs/kbsync-cli/internal/adapters/driven/statestore/sqlite"
	"github.com/custodia-labs/kbsync-cli/internal/config"
	"github.com/custodia-labs/kbsync-cli/internal/core/ports/driven"
	"github.com/custodia-labs/kbsync-cli/internal/core/ports/driving"
	"github.com/custodia-labs/kbsync-cli/internal/core/services"
	"github.com/custodia-labs/kbsync-cli/internal/logger"
	"github.com/custodia-labs/kbsync-cli/internal/transform/markdown"
)

// version is set at build time via -ldflags.
var version = "dev"

// Flag values bound in init.
var (
	flagForceFull bool
	flagMaxItems  int
	flagStateDir  string
	flagConfig    string
	flagVerbose   bool
)

// newSyncer builds the orchestrator from config. Overridable in
// tests.
var newSyncer = buildSyncer

var rootCmd = &cobra.Command{
	Use:   "kbsync",
	Short: "Synchronise a help-centre knowledge base into a vector store",
	Long: `kbsync keeps a remote vector-store collection synchronised with a
help-centre content source. Each run detects new, updated and deleted
articles against persisted state and reconciles only the changes;
--force-full ignores persisted state and re-syncs everything.`,
	SilenceUsage: true,
	RunE:         runRoot,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.Flags().BoolVar(&flagForceFull, "force-full", false, "ignore persisted state and perform a full resync")
	rootCmd.Flags().IntVar(&flagMaxItems, "max-items", 0, "maximum number of items to list (default from config)")
	rootCmd.Flags().StringVar(&flagStateDir, "state-dir", "", "state directory (default from config)")
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "config file path (default <state-dir>/kbsync.toml)")
}

// Execute runs the CLI with the given context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// SetOut redirects command output. Useful for testing.
func SetOut(w io.Writer) {
	rootCmd.SetOut(w)
	rootCmd.SetErr(w)
}

func runRoot(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(flagVerbose)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	syncer, cleanup, err := newSyncer(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	maxItems := cfg.MaxItems
	if flagMaxItems > 0 {
		maxItems = flagMaxItems
	}

	summary, err := syncer.Run(cmd.Context(), driving.RunOptions{
		MaxItems:  maxItems,
		ForceFull: flagForceFull,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("sync interrupted")
		}
		return fmt.Errorf("sync failed: %w", err)
	}

	cmd.Printf("Sync complete: %d added, %d updated, %d deleted, %d unchanged, %d failed\n",
		summary.Added, summary.Updated, summary.Deleted, summary.Unchanged, summary.Failed)
	return nil
}

// loadConfig resolves flag/env/file precedence for configuration.
func loadConfig() (*config.Config, error) {
	path := flagConfig
	if path == "" {
		dir := flagStateDir
		if dir == "" {
			dir = config.DefaultStateDir
		}
		path = config.DefaultPath(dir)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if flagStateDir != "" {
		cfg.StateDir = flagStateDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildSyncer wires the adapters into a sync orchestrator.
func buildSyncer(cfg *config.Config) (driving.Syncer, func(), error) {
	cleanup := func() {}

	var stateStore driven.StateStore
	switch cfg.Backend {
	case "sqlite":
		store, err := sqlitestate.NewStateStore(cfg.StateDir)
		if err != nil {
			return nil, cleanup, err
		}
		stateStore = store
		cleanup = func() { store.Close() }
	default:
		store, err := filestate.NewStateStore(cfg.StateDir)
		if err != nil {
			return nil, cleanup, err
		}
		stateStore = store
	}

	artifacts, err := artifactstore.NewStore(filepath.Join(cfg.StateDir, "articles"))
	if err != nil {
		return nil, cleanup, err
	}

	source, err := zendesk.New(zendesk.Config{
		BaseURL:           cfg.Source.BaseURL,
		SiteURL:           cfg.Source.SiteURL,
		RequestsPerSecond: cfg.Source.RequestsPerSecond,
	})
	if err != nil {
		return nil, cleanup, err
	}

	index, err := openai.New(openai.Config{
		APIKey:  cfg.Index.APIKey,
		BaseURL: cfg.Index.BaseURL,
	})
	if err != nil {
		return nil, cleanup, err
	}

	pacer := services.NewPacer(services.PacerConfig{
		BatchPause:   cfg.BatchPause(),
		PollInterval: cfg.PollInterval(),
		MaxPolls:     cfg.Pacing.MaxPolls,
	})

	orchestrator := services.NewSyncOrchestrator(
		source,
		markdown.New(cfg.Source.SiteURL),
		index,
		stateStore,
		artifacts,
		cfg.Index.CollectionName,
		pacer,
	)
	return orchestrator, cleanup, nil
}
