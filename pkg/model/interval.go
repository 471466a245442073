package model

import (
	"fmt"
	"math/rand"
	"time"
)

// IntervalKind selects how the gap between two presentations is chosen.
type IntervalKind string

const (
	IntervalConstant IntervalKind = "constant"
	IntervalRandom   IntervalKind = "random"
)

// Interval describes the delay the presentation layer waits after one request
// is dismissed before showing the next. The scheduler only carries the value;
// it never starts timers itself.
type Interval struct {
	Kind    IntervalKind `json:"kind" yaml:"kind"`
	Seconds float64      `json:"seconds,omitempty" yaml:"seconds,omitempty"` // constant
	Lower   float64      `json:"lower,omitempty" yaml:"lower,omitempty"`     // random
	Upper   float64      `json:"upper,omitempty" yaml:"upper,omitempty"`     // random
}

// DefaultInterval shows the next request immediately.
func DefaultInterval() Interval {
	return Interval{Kind: IntervalConstant}
}

// ConstantInterval returns an interval of fixed length.
func ConstantInterval(d time.Duration) Interval {
	return Interval{Kind: IntervalConstant, Seconds: d.Seconds()}
}

// RandomInterval returns an interval drawn uniformly from [lower, upper].
func RandomInterval(lower, upper time.Duration) Interval {
	return Interval{Kind: IntervalRandom, Lower: lower.Seconds(), Upper: upper.Seconds()}
}

// Validate checks the interval for negative or inverted bounds.
func (iv Interval) Validate() error {
	switch iv.Kind {
	case IntervalConstant, "":
		if iv.Seconds < 0 {
			return fmt.Errorf("interval: seconds must be >= 0, got %v", iv.Seconds)
		}
	case IntervalRandom:
		if iv.Lower < 0 || iv.Upper < 0 {
			return fmt.Errorf("interval: bounds must be >= 0, got [%v, %v]", iv.Lower, iv.Upper)
		}
		if iv.Lower > iv.Upper {
			return fmt.Errorf("interval: lower %v exceeds upper %v", iv.Lower, iv.Upper)
		}
	default:
		return fmt.Errorf("interval: unknown kind %q", iv.Kind)
	}
	return nil
}

// Next returns the delay before the next presentation. r may be nil, in
// which case the package-level source is used.
func (iv Interval) Next(r *rand.Rand) time.Duration {
	if iv.Kind != IntervalRandom {
		return seconds(iv.Seconds)
	}
	span := iv.Upper - iv.Lower
	if span <= 0 {
		return seconds(iv.Lower)
	}
	var f float64
	if r != nil {
		f = r.Float64()
	} else {
		f = rand.Float64()
	}
	return seconds(iv.Lower + f*span)
}

func (iv Interval) String() string {
	if iv.Kind == IntervalRandom {
		return fmt.Sprintf("random[%s, %s]", seconds(iv.Lower), seconds(iv.Upper))
	}
	return fmt.Sprintf("constant[%s]", seconds(iv.Seconds))
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
