// Command kbsync runs one synchronisation pass between a help-centre
// content source and a remote vector-store collection. It is meant to
// be invoked periodically (cron, container job); exit code 0 means
// the run completed and state was persisted, 1 means a fatal error.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/kbsync-cli/internal/adapters/driving/cli"
	"github.com/custodia-labs/kbsync-cli/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}
