// internal/difficulty/difficulty.go
package difficulty

import (
	"math/rand/v2"
	"strings"

	"github.com/jason-s-yu/stranded/internal/errors"
)

// Label is a qualitative difficulty rating produced by the narrator.
type Label string

const (
	Trivial    Label = "trivial"
	Easy       Label = "easy"
	Moderate   Label = "moderate"
	Hard       Label = "hard"
	Extreme    Label = "extreme"
	Impossible Label = "impossible"
)

// Labels lists every label from easiest to hardest.
var Labels = []Label{Trivial, Easy, Moderate, Hard, Extreme, Impossible}

var thresholds = map[Label]float64{
	Trivial:    1.0,
	Easy:       0.8,
	Moderate:   0.6,
	Hard:       0.35,
	Extreme:    0.15,
	Impossible: 0.0,
}

// Threshold returns the success probability for a label.
func Threshold(label Label) (float64, bool) {
	t, ok := thresholds[label]
	return t, ok
}

// ParseLabel normalises free text ("  Hard ") into a Label.
func ParseLabel(s string) (Label, error) {
	l := Label(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := thresholds[l]; !ok {
		return "", errors.InvalidArgumentf("unknown difficulty %q", s)
	}
	return l, nil
}

// Roll is the result of a single check.
type Roll struct {
	Label     Label   `json:"difficulty"`
	Success   bool    `json:"success"`
	Roll      float64 `json:"roll"`
	Threshold float64 `json:"threshold"`
}

// Resolver draws against the threshold table. The zero value is not usable;
// use NewResolver.
type Resolver struct {
	draw func() float64
}

// NewResolver returns a Resolver backed by math/rand/v2.
func NewResolver() *Resolver {
	return &Resolver{draw: rand.Float64}
}

// NewResolverWithSource lets callers pin the random source, e.g. in tests.
// draw must return values in [0,1).
func NewResolverWithSource(draw func() float64) *Resolver {
	return &Resolver{draw: draw}
}

// Resolve succeeds iff a uniform draw in [0,1) is below the label threshold.
func (r *Resolver) Resolve(label Label) (Roll, error) {
	threshold, ok := thresholds[label]
	if !ok {
		return Roll{}, errors.InvalidArgumentf("unknown difficulty %q", label)
	}
	draw := r.draw()
	return Roll{
		Label:     label,
		Success:   draw < threshold,
		Roll:      draw,
		Threshold: threshold,
	}, nil
}
