package calib

import "gonum.org/v1/gonum/floats"

// Series supplies reference values for cross-channel transforms: the raw
// value of another subchannel at the nearest sample timestamp. Nearest match,
// not interpolation; ok is false when the series holds no usable value.
type Series interface {
	Nearest(t int64) (float64, bool)
}

// Transform converts raw sample values to engineering units in place.
// Timestamps are microseconds and are read-only; only cross-channel
// transforms consult them.
type Transform interface {
	Apply(values []float64, times []int64)
}

// Identity returns the pass-through transform.
func Identity() Transform { return identity{} }

type identity struct{}

func (identity) Apply([]float64, []int64) {}

// Univariate is a polynomial over the subchannel's own raw value:
// y = c0 + c1*x + c2*x^2 + ... Coefficients [0, 1] are the identity.
type Univariate struct {
	Coeffs []float64
}

func (u *Univariate) Apply(values []float64, _ []int64) {
	switch len(u.Coeffs) {
	case 0:
		return
	case 1:
		for i := range values {
			values[i] = u.Coeffs[0]
		}
	case 2:
		// The overwhelmingly common gain/offset case.
		floats.Scale(u.Coeffs[1], values)
		floats.AddConst(u.Coeffs[0], values)
	default:
		for i, x := range values {
			values[i] = horner(u.Coeffs, x)
		}
	}
}

// horner evaluates c0 + c1*x + ... + cn*x^n highest-order first.
func horner(coeffs []float64, x float64) float64 {
	y := coeffs[len(coeffs)-1]
	for i := len(coeffs) - 2; i >= 0; i-- {
		y = y*x + coeffs[i]
	}

	return y
}

// Bivariate is a two-variable polynomial with a cross term:
// y = A*x*r + B*x + C*r + D, where r is the reference subchannel's raw value
// at the nearest timestamp, shifted by RefOffset (the declared nominal
// reference, e.g. ambient temperature during factory calibration).
//
// A nil Ref degrades the transform to identity; the pipeline records the
// degradation so the owning subchannel can surface one warning. A sample
// whose reference lookup fails passes through unchanged.
type Bivariate struct {
	Coeffs    [4]float64
	Ref       Series
	RefOffset float64
}

func (b *Bivariate) Apply(values []float64, times []int64) {
	if b.Ref == nil {
		return
	}

	for i, x := range values {
		r, ok := b.Ref.Nearest(times[i])
		if !ok {
			continue
		}
		r -= b.RefOffset
		values[i] = b.Coeffs[0]*x*r + b.Coeffs[1]*x + b.Coeffs[2]*r + b.Coeffs[3]
	}
}

// Combined chains transforms: the output of each step feeds the next. The
// chain is flattened by the pipeline builder at construction time.
type Combined struct {
	Steps []Transform
}

func (c *Combined) Apply(values []float64, times []int64) {
	for _, step := range c.Steps {
		step.Apply(values, times)
	}
}
