package utils

import (
	"context"
	"time"
)

var sleep = time.Sleep

// Poll calls check until it reports true, at most attempts times (at least
// once) with interval between calls. It reports false when every attempt
// failed or ctx ended first.
func Poll(ctx context.Context, attempts int, interval time.Duration, check func(attempt int) bool) bool {
	attempts = max(attempts, 1)
	for attempt := 1; ; attempt++ {
		if check(attempt) {
			return true
		}
		if attempt == attempts || pause(ctx, interval) != nil {
			return false
		}
	}
}

func pause(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil || d <= 0 {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sleep(d)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
