package session

import (
	"context"
	"fmt"
	"time"

	slogctx "github.com/veqryn/slog-context"
)

// Watch validates the session once immediately and then every interval
// until ctx is done, so a token that expires while the client runs is
// cleared without waiting for the backend to reject it.
func (g *Guard) Watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("watch interval must be positive, got %s", interval)
	}

	if _, err := g.Validate(ctx); err != nil && ctx.Err() == nil {
		slogctx.Warn(ctx, "Session validation failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slogctx.Info(ctx, "Stopping session watch")
			return nil
		case <-ticker.C:
			if _, err := g.Validate(ctx); err != nil && ctx.Err() == nil {
				slogctx.Warn(ctx, "Session validation failed", "error", err)
			}
		}
	}
}
