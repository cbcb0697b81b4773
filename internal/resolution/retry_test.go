package resolution

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/jason-s-yu/stranded/internal/narrator"
)

// recordingSleep captures requested delays without waiting.
type recordingSleep struct {
	delays []time.Duration
}

func (r *recordingSleep) Sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func testPolicy(s *recordingSleep) RetryPolicy {
	return RetryPolicy{Attempts: 3, Backoff: time.Second, AttemptTimeout: time.Second, Sleep: s.Sleep}
}

func testLog() *logrus.Entry {
	return logrus.NewEntry(logrus.StandardLogger())
}

func TestCallWithRetrySucceedsOnThirdAttempt(t *testing.T) {
	sleeper := &recordingSleep{}
	calls := 0
	value, fellBack := CallWithRetry(context.Background(), testPolicy(sleeper), testLog(),
		func(context.Context) narrator.Result[string] {
			calls++
			if calls < 3 {
				return narrator.CallError[string](fmt.Errorf("boom %d", calls))
			}
			return narrator.OK("third time lucky")
		},
		func() string { return "fallback" },
	)

	assert.False(t, fellBack)
	assert.Equal(t, "third time lucky", value)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.delays)
}

func TestCallWithRetryFallsBackAfterAllKinds(t *testing.T) {
	sleeper := &recordingSleep{}
	results := []narrator.Result[int]{
		narrator.ParseError[int](fmt.Errorf("bad json")),
		narrator.Incomplete[int](fmt.Errorf("missing bob")),
		narrator.CallError[int](fmt.Errorf("503")),
	}
	calls := 0
	value, fellBack := CallWithRetry(context.Background(), testPolicy(sleeper), testLog(),
		func(context.Context) narrator.Result[int] {
			r := results[calls]
			calls++
			return r
		},
		func() int { return -1 },
	)

	assert.True(t, fellBack)
	assert.Equal(t, -1, value)
	assert.Equal(t, 3, calls)
	assert.Len(t, sleeper.delays, 2)
}

func TestCallWithRetryTimeoutIsCallError(t *testing.T) {
	sleeper := &recordingSleep{}
	policy := testPolicy(sleeper)
	policy.AttemptTimeout = 10 * time.Millisecond

	calls := 0
	_, fellBack := CallWithRetry(context.Background(), policy, testLog(),
		func(ctx context.Context) narrator.Result[string] {
			calls++
			<-ctx.Done()
			// A slow backend may still answer after its deadline.
			return narrator.ParseError[string](ctx.Err())
		},
		func() string { return "" },
	)
	assert.True(t, fellBack)
	assert.Equal(t, 3, calls)
}

func TestCallWithRetryStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	value, fellBack := CallWithRetry(ctx, RetryPolicy{Attempts: 3, Backoff: time.Hour}, testLog(),
		func(context.Context) narrator.Result[string] {
			calls++
			return narrator.CallError[string](context.Canceled)
		},
		func() string { return "quiet day" },
	)
	assert.True(t, fellBack)
	assert.Equal(t, "quiet day", value)
	assert.Equal(t, 1, calls)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, SleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
}
