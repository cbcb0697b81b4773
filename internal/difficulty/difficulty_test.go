package difficulty

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/stranded/internal/errors"
)

func TestResolveModerateSuccessRate(t *testing.T) {
	src := rand.New(rand.NewPCG(42, 7))
	r := NewResolverWithSource(src.Float64)

	const n = 10000
	successes := 0
	for i := 0; i < n; i++ {
		roll, err := r.Resolve(Moderate)
		require.NoError(t, err)
		if roll.Success {
			successes++
		}
	}
	rate := float64(successes) / n
	assert.InDelta(t, 0.6, rate, 0.03, "observed success rate %.3f", rate)
}

func TestResolveBoundaries(t *testing.T) {
	// 0.9999 is the worst draw the source can return; trivial must still succeed.
	high := NewResolverWithSource(func() float64 { return 0.9999 })
	roll, err := high.Resolve(Trivial)
	require.NoError(t, err)
	assert.True(t, roll.Success)

	// 0 is the best draw; impossible must still fail.
	low := NewResolverWithSource(func() float64 { return 0 })
	roll, err = low.Resolve(Impossible)
	require.NoError(t, err)
	assert.False(t, roll.Success)
}

func TestResolveThresholdIsExclusive(t *testing.T) {
	r := NewResolverWithSource(func() float64 { return 0.35 })
	roll, err := r.Resolve(Hard)
	require.NoError(t, err)
	assert.False(t, roll.Success, "draw equal to threshold is a failure")
	assert.Equal(t, 0.35, roll.Threshold)
	assert.Equal(t, 0.35, roll.Roll)
}

func TestResolveUnknownLabel(t *testing.T) {
	_, err := NewResolver().Resolve(Label("legendary"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.InvalidArgument(""))
}

func TestParseLabel(t *testing.T) {
	l, err := ParseLabel("  HARD ")
	require.NoError(t, err)
	assert.Equal(t, Hard, l)

	_, err = ParseLabel("meh")
	assert.Error(t, err)
}

func TestThresholdTableIsOrdered(t *testing.T) {
	prev := 2.0
	for _, l := range Labels {
		th, ok := Threshold(l)
		require.True(t, ok)
		assert.Less(t, th, prev, "%s should be harder than the previous label", l)
		prev = th
	}
}
