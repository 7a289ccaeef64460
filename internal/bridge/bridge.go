package bridge

import (
	"context"
	"time"
)

// WaitReady blocks until the host platform signals readiness on the ready
// channel. If the grace period elapses first, onWait is invoked once so the
// caller can show a blocking wait screen, and the wait continues until the
// signal arrives or ctx is done.
func WaitReady(ctx context.Context, ready <-chan struct{}, grace time.Duration, onWait func()) error {
	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		if onWait != nil {
			onWait()
		}
	}

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
