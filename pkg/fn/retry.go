package fn

import (
	"context"
	"math/rand"
	"time"
)

// RetryOpts configures retry behavior. Retryable decides which errors are
// worth another attempt (nil retries everything); OnRetry observes each
// scheduled retry before the backoff sleep.
type RetryOpts struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      bool
	Retryable   func(error) bool
	OnRetry     func(attempt int, wait time.Duration, err error)
}

// DefaultRetry provides sensible retry defaults.
var DefaultRetry = RetryOpts{
	MaxAttempts: 3,
	InitialWait: time.Second,
	MaxWait:     30 * time.Second,
	Jitter:      true,
}

// Retry runs f up to MaxAttempts times with exponential backoff (base wait
// doubling per attempt, capped at MaxWait). A non-retryable error returns
// immediately; context cancellation wins over any pending sleep.
func Retry[T any](ctx context.Context, opts RetryOpts, f func(context.Context) Result[T]) Result[T] {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	wait := opts.InitialWait

	var result Result[T]
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		result = f(ctx)
		if result.IsOk() {
			return result
		}
		_, err := result.Unwrap()
		if opts.Retryable != nil && !opts.Retryable(err) {
			return result
		}
		if attempt == opts.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return Err[T](ctx.Err())
		default:
		}

		sleep := wait
		if opts.Jitter {
			sleep = time.Duration(float64(wait) * (0.5 + rand.Float64()))
		}
		if sleep > opts.MaxWait {
			sleep = opts.MaxWait
		}
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, sleep, err)
		}

		select {
		case <-ctx.Done():
			return Err[T](ctx.Err())
		case <-time.After(sleep):
		}

		wait *= 2
		if wait > opts.MaxWait {
			wait = opts.MaxWait
		}
	}
	return result
}

// RetryStage wraps a Stage with retry logic.
func RetryStage[In, Out any](opts RetryOpts, stage Stage[In, Out]) Stage[In, Out] {
	return func(ctx context.Context, in In) Result[Out] {
		return Retry(ctx, opts, func(ctx context.Context) Result[Out] {
			return stage(ctx, in)
		})
	}
}
