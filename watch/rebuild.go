package watch

import (
	"context"
	"log/slog"
)

// RebuildFunc regenerates the site after a batch of changes.
type RebuildFunc func(ctx context.Context, batch Batch) error

// Run calls rebuild once per batch, one at a time, until the batches channel
// closes or ctx is done. A failed rebuild is logged and the loop continues;
// the previous output stays in place until a later rebuild succeeds.
func Run(ctx context.Context, batches <-chan Batch, rebuild RebuildFunc, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-batches:
			if !ok {
				return
			}
			logger.Info("Specs changed, rebuilding", "changes", len(batch), "paths", batch.Paths())
			if err := rebuild(ctx, batch); err != nil {
				logger.Error("Rebuild failed", "error", err)
			}
		}
	}
}
