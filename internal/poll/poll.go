package poll

import (
	"context"
	"time"
)

// Policy bounds a poll loop: wait Interval before each check, give up after
// MaxAttempts checks.
type Policy struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultPolicy waits 2s between checks and makes at most 10 of them.
var DefaultPolicy = Policy{Interval: 2 * time.Second, MaxAttempts: 10}

// Check inspects the remote job once. It returns done=true with the final value
// when the job has completed. attempt starts at 1.
type Check[T any] func(ctx context.Context, attempt int) (value T, done bool, err error)

// Result is the outcome of a poll loop.
type Result[T any] struct {
	Value     T
	Attempts  int
	Exhausted bool
}

// Until runs check under p until it reports done, returns an error, or the
// attempt budget is spent. An exhausted budget is not an error: the result
// carries degrade and Exhausted=true.
func Until[T any](ctx context.Context, p Policy, check Check[T], degrade T) (Result[T], error) {
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := wait(ctx, p.Interval); err != nil {
			return Result[T]{Attempts: attempt - 1}, err
		}

		v, done, err := check(ctx, attempt)
		if err != nil {
			return Result[T]{Attempts: attempt}, err
		}
		if done {
			return Result[T]{Value: v, Attempts: attempt}, nil
		}
	}
	return Result[T]{Value: degrade, Attempts: p.MaxAttempts, Exhausted: true}, nil
}

func wait(ctx context.Context, d time.Duration) error {
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
