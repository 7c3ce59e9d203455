package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbsync-cli/internal/config"
	"github.com/custodia-labs/kbsync-cli/internal/core/ports/driving"
)

// stubSyncer implements driving.Syncer for CLI tests.
type stubSyncer struct {
	opts    driving.RunOptions
	summary driving.RunSummary
	err     error
}

func (s *stubSyncer) Run(_ context.Context, opts driving.RunOptions) (*driving.RunSummary, error) {
	s.opts = opts
	if s.err != nil {
		return nil, s.err
	}
	return &s.summary, nil
}

// execute runs the root command with args against a stub syncer and
// returns its output.
func execute(t *testing.T, stub *stubSyncer, args ...string) (string, error) {
	t.Helper()

	t.Setenv("KBSYNC_SOURCE_URL", "https://support.example.com/api/v2/help_center")
	t.Setenv("KBSYNC_API_KEY", "test-key")
	t.Setenv("KBSYNC_STATE_DIR", t.TempDir())

	orig := newSyncer
	newSyncer = func(*config.Config) (driving.Syncer, func(), error) {
		return stub, func() {}, nil
	}
	t.Cleanup(func() {
		newSyncer = orig
		flagForceFull = false
		flagMaxItems = 0
		flagStateDir = ""
		flagConfig = ""
		flagVerbose = false
	})

	var out bytes.Buffer
	SetOut(&out)
	// A nil slice would make cobra fall back to os.Args.
	rootCmd.SetArgs(append([]string{}, args...))

	err := Execute(context.Background())
	return out.String(), err
}

func TestRoot_RunsSync(t *testing.T) {
	stub := &stubSyncer{summary: driving.RunSummary{Added: 2, Updated: 1, Deleted: 1, Unchanged: 5}}

	out, err := execute(t, stub)
	require.NoError(t, err)

	assert.Contains(t, out, "2 added, 1 updated, 1 deleted, 5 unchanged, 0 failed")
	assert.False(t, stub.opts.ForceFull)
	assert.Equal(t, config.DefaultMaxItems, stub.opts.MaxItems)
}

func TestRoot_ForceFullFlag(t *testing.T) {
	stub := &stubSyncer{}

	_, err := execute(t, stub, "--force-full")
	require.NoError(t, err)
	assert.True(t, stub.opts.ForceFull)
}

func TestRoot_MaxItemsFlagOverridesConfig(t *testing.T) {
	stub := &stubSyncer{}

	_, err := execute(t, stub, "--max-items", "7")
	require.NoError(t, err)
	assert.Equal(t, 7, stub.opts.MaxItems)
}

func TestRoot_SyncFailure(t *testing.T) {
	stub := &stubSyncer{err: errors.New("listing blew up")}

	_, err := execute(t, stub)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync failed")
}

func TestRoot_MissingAPIKey(t *testing.T) {
	stub := &stubSyncer{}

	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("KBSYNC_API_KEY", "")
	t.Setenv("KBSYNC_SOURCE_URL", "https://support.example.com/api")
	t.Setenv("KBSYNC_STATE_DIR", t.TempDir())

	orig := newSyncer
	newSyncer = func(*config.Config) (driving.Syncer, func(), error) {
		t.Fatal("syncer must not be built without an API key")
		return stub, func() {}, nil
	}
	t.Cleanup(func() { newSyncer = orig })

	var out bytes.Buffer
	SetOut(&out)
	rootCmd.SetArgs([]string{})

	err := Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	SetOut(&out)
	rootCmd.SetArgs([]string{"version"})

	require.NoError(t, Execute(context.Background()))
	assert.Contains(t, out.String(), "kbsync version dev")
}
