// Package utils holds small helpers shared by the source adapters.
package utils

import (
	"context"
	"time"
)

// Pause blocks for d or until ctx is done, whichever comes first. Adapters
// use it between page requests to the same board.
func Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
