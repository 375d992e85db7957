// Package timeutil holds small time helpers shared by the device-facing loops.
package timeutil

import (
	"context"
	"time"
)

// SleepContext waits for d or until ctx ends, returning ctx.Err() in the latter case.
// A non-positive d only reports whether ctx is already done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
