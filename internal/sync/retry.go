package sync

import (
	"context"
	"time"

	"github.com/batterydied/chatter/internal/apperr"
)

// retry runs fn until it succeeds, fails with a non-transient error, or has
// been retried attempts times. The delay doubles after every attempt.
func retry(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	delay := base
	for i := 0; ; i++ {
		err := fn()
		if err == nil || !apperr.IsTransient(err) || i >= attempts {
			return err
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay *= 2
	}
}
