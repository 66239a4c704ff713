package utils

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartBlacklistSweeper periodically evicts expired tokens from the in-memory blacklist
// until ctx is done.
func StartBlacklistSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := purgeBlacklist(now); n > 0 {
					Logger.Debug("evicted expired tokens", zap.Int("count", n))
				}
			}
		}
	}()
}
