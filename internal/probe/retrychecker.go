package probe

import (
	"context"
	"time"
)

// RetryChecker repeats transport failures up to Attempts times.
// A received response, matching or not, is final.
type RetryChecker struct {
	Inner    Checker
	Attempts int
	Backoff  time.Duration
}

func NewRetryChecker(inner Checker, attempts int, backoff time.Duration) Checker {
	if attempts <= 1 {
		return inner
	}
	return &RetryChecker{Inner: inner, Attempts: attempts, Backoff: backoff}
}

func (r *RetryChecker) Check(ctx context.Context, req Request) Result {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var last Result
	for i := 0; i < attempts; i++ {
		last = r.Inner.Check(ctx, req)
		last.Attempts = i + 1
		if last.Up || !last.Failure.Transport() {
			return last
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return last
			case <-time.After(r.Backoff):
			}
		}
	}
	return last
}
