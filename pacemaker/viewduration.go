package pacemaker

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// MaxViewDuration is the longest timeout a ViewDuration may produce.
const MaxViewDuration = time.Duration(math.MaxInt64)

// ErrBackoffOverflow is returned when the largest backoff does not fit in a time.Duration.
var ErrBackoffOverflow = errors.New("timeout backoff exceeds the maximum duration")

// ViewDuration determines the duration of a view's local timeout.
// The pacemaker reports the outcome of each view so that implementations can adapt.
type ViewDuration interface {
	// Duration returns the duration that the next timeout should be scheduled for.
	Duration() time.Duration
	// ViewStarted is called when a new view is entered.
	ViewStarted()
	// ViewSucceeded is called when a view ended because a QC was formed.
	ViewSucceeded()
	// ViewTimeout is called when the local timeout fired.
	ViewTimeout()
}

// ExponentialViewDuration grows the timeout by a constant rate for every consecutive timeout.
type ExponentialViewDuration struct {
	base        time.Duration
	rate        float64
	maxExponent int

	consecutiveTimeouts int
}

// NewExponentialViewDuration returns a ViewDuration that computes base * rate^min(timeouts, maxExponent),
// where timeouts is the number of local timeouts since the last QC.
func NewExponentialViewDuration(base time.Duration, rate float64, maxExponent int) (*ExponentialViewDuration, error) {
	if base <= 0 {
		return nil, fmt.Errorf("base timeout must be positive, got %v", base)
	}
	if rate < 1 {
		return nil, fmt.Errorf("timeout rate must be at least 1, got %v", rate)
	}
	if maxExponent < 0 {
		return nil, fmt.Errorf("max exponent must not be negative, got %d", maxExponent)
	}
	if err := CheckBackoff(base, rate, maxExponent); err != nil {
		return nil, err
	}
	return &ExponentialViewDuration{
		base:        base,
		rate:        rate,
		maxExponent: maxExponent,
	}, nil
}

// CheckBackoff returns ErrBackoffOverflow if base * rate^maxExponent is longer than MaxViewDuration.
func CheckBackoff(base time.Duration, rate float64, maxExponent int) error {
	if _, ok := backoff(base, rate, maxExponent); !ok {
		return fmt.Errorf("%w: %v * %v^%d", ErrBackoffOverflow, base, rate, maxExponent)
	}
	return nil
}

// backoff computes base * rate^exp, reporting false if the result does not fit in a time.Duration.
func backoff(base time.Duration, rate float64, exp int) (time.Duration, bool) {
	d := float64(base) * math.Pow(rate, float64(exp))
	// float64(math.MaxInt64) rounds up to 2^63, which itself overflows
	if math.IsNaN(d) || d >= float64(math.MaxInt64) {
		return MaxViewDuration, false
	}
	return time.Duration(d), true
}

// Duration returns the current timeout. It never exceeds MaxViewDuration.
func (d *ExponentialViewDuration) Duration() time.Duration {
	exp := d.consecutiveTimeouts
	if exp > d.maxExponent {
		exp = d.maxExponent
	}
	duration, _ := backoff(d.base, d.rate, exp)
	return duration
}

// ViewStarted does nothing for the ExponentialViewDuration.
func (d *ExponentialViewDuration) ViewStarted() {}

// ViewSucceeded resets the backoff.
func (d *ExponentialViewDuration) ViewSucceeded() {
	d.consecutiveTimeouts = 0
}

// ViewTimeout increases the exponent of the next timeout.
func (d *ExponentialViewDuration) ViewTimeout() {
	if d.consecutiveTimeouts < d.maxExponent {
		d.consecutiveTimeouts++
	}
}

type fixedViewDuration struct {
	duration time.Duration
}

// NewFixedViewDuration returns a ViewDuration with a fixed duration.
func NewFixedViewDuration(duration time.Duration) ViewDuration {
	return &fixedViewDuration{
		duration: duration,
	}
}

// Duration returns the fixed duration.
func (f *fixedViewDuration) Duration() time.Duration {
	return f.duration
}

// ViewStarted does nothing for the FixedViewDuration.
func (f *fixedViewDuration) ViewStarted() {}

// ViewSucceeded does nothing for the FixedViewDuration.
func (f *fixedViewDuration) ViewSucceeded() {}

// ViewTimeout does nothing for the FixedViewDuration.
func (f *fixedViewDuration) ViewTimeout() {}
