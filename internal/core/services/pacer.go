package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/kbsync-cli/internal/core/domain"
)

// Default pacing values, matching the service's documented batch
// processing behaviour.
const (
	// DefaultBatchPause is the pause between consecutive batch calls.
	DefaultBatchPause = time.Second

	// DefaultPollInterval is the wait between batch status polls.
	DefaultPollInterval = 2 * time.Second

	// DefaultMaxPolls caps how long a stuck batch is polled before it
	// is reported as failed.
	DefaultMaxPolls = 150
)

// SleepFunc waits for d or until the context is cancelled. Injectable
// so tests run without real waits.
type SleepFunc func(ctx context.Context, d time.Duration) error

// PacerConfig configures a Pacer.
type PacerConfig struct {
	// BatchPause is the fixed pause between batch calls toward the
	// index service. Zero means DefaultBatchPause.
	BatchPause time.Duration

	// PollInterval is the wait between status polls. Zero means
	// DefaultPollInterval.
	PollInterval time.Duration

	// MaxPolls bounds the polling loop. Zero means DefaultMaxPolls.
	MaxPolls int

	// Sleep overrides the wait implementation. Nil means a real
	// context-aware sleep.
	Sleep SleepFunc
}

// Pacer rate-limits batch calls and polls batch operations to a
// terminal status. It replaces scattered fixed sleeps with one
// injectable component.
type Pacer struct {
	limiter      *rate.Limiter
	pollInterval time.Duration
	maxPolls     int
	sleep        SleepFunc
}

// NewPacer creates a pacer from cfg, applying defaults for zero
// fields.
func NewPacer(cfg PacerConfig) *Pacer {
	if cfg.BatchPause <= 0 {
		cfg.BatchPause = DefaultBatchPause
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = DefaultMaxPolls
	}
	if cfg.Sleep == nil {
		cfg.Sleep = contextSleep
	}
	return &Pacer{
		limiter:      rate.NewLimiter(rate.Every(cfg.BatchPause), 1),
		pollInterval: cfg.PollInterval,
		maxPolls:     cfg.MaxPolls,
		sleep:        cfg.Sleep,
	}
}

// Pause blocks until the next batch call is allowed.
func (p *Pacer) Pause(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// PollUntilTerminal polls until the reported status is terminal or
// the poll budget is exhausted. A stuck batch is reported as
// domain.BatchFailed rather than blocking the run forever.
func (p *Pacer) PollUntilTerminal(
	ctx context.Context,
	poll func(ctx context.Context) (domain.BatchStatus, error),
) (domain.BatchStatus, error) {
	for i := 0; i < p.maxPolls; i++ {
		status, err := poll(ctx)
		if err != nil {
			return domain.BatchFailed, err
		}
		if status.IsTerminal() {
			return status, nil
		}
		if err := p.sleep(ctx, p.pollInterval); err != nil {
			return domain.BatchFailed, err
		}
	}
	return domain.BatchFailed, fmt.Errorf("batch still %s after %d polls", domain.BatchInProgress, p.maxPolls)
}

// contextSleep waits for d, returning early if ctx is cancelled.
func contextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
