// internal/resolution/retry.go
package resolution

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/stranded/internal/narrator"
)

// RetryPolicy bounds every call to the generation boundary.
type RetryPolicy struct {
	// Attempts is the total number of calls, including the first.
	Attempts int
	// Backoff is the base delay; the wait after failed attempt n is Backoff*n.
	Backoff time.Duration
	// AttemptTimeout bounds a single call. Zero means no per-call deadline.
	AttemptTimeout time.Duration
	// Sleep waits between attempts. Tests replace it to record delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:       3,
		Backoff:        time.Second,
		AttemptTimeout: 20 * time.Second,
		Sleep:          SleepContext,
	}
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// CallWithRetry runs attempt until it yields an OK result or the policy is
// exhausted, then falls back. usedFallback reports which path produced value.
// A cancelled parent context stops retrying early and also falls back.
func CallWithRetry[T any](
	ctx context.Context,
	policy RetryPolicy,
	logger *logrus.Entry,
	attempt func(ctx context.Context) narrator.Result[T],
	fallback func() T,
) (value T, usedFallback bool) {
	attempts := max(policy.Attempts, 1)
	sleep := policy.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	for n := 1; n <= attempts; n++ {
		res := runAttempt(ctx, policy.AttemptTimeout, attempt)
		if res.Ok() {
			return res.Value, false
		}
		logger.WithFields(logrus.Fields{
			"attempt": n,
			"of":      attempts,
			"kind":    res.Kind.String(),
		}).Warnf("generation attempt failed: %v", res.Err)

		if n == attempts || ctx.Err() != nil {
			break
		}
		if err := sleep(ctx, policy.Backoff*time.Duration(n)); err != nil {
			break
		}
	}

	logger.Warn("generation exhausted, using fallback")
	return fallback(), true
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, attempt func(context.Context) narrator.Result[T]) narrator.Result[T] {
	if timeout <= 0 {
		return attempt(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	res := attempt(attemptCtx)
	if !res.Ok() && attemptCtx.Err() != nil {
		return narrator.CallError[T](attemptCtx.Err())
	}
	return res
}
