package usecase

import (
	"context"
	"time"
)

// persistWithRetry runs write up to attempts times, waiting backoff*n between
// failures. It stops early when ctx is done.
func persistWithRetry(ctx context.Context, attempts int, backoff time.Duration, write func(context.Context) (bool, error)) (bool, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		applied, err := write(ctx)
		if err == nil {
			return applied, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		timer := time.NewTimer(backoff * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, lastErr
		case <-timer.C:
		}
	}
	return false, lastErr
}
