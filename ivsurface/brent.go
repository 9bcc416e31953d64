package ivsurface

import (
	"errors"
	"math"
)

const (
	brentLo        = 1e-7
	brentHi        = 4.0
	brentTolerance = 1e-4
	brentMaxIters  = 100
)

// BrentRoot finds a root of f on [lo, hi] via Brent's method, the
// standard bracketing-plus-inverse-quadratic-interpolation root-finder,
// hand-rolled as a small, pure, independently testable numerical routine
// rather than an external solver dependency, the same style the
// Newton-Raphson implied-vol inversion in package greeks uses.
//
// gonum.org/v1/gonum/optimize offers univariate minimization but no
// bracketed root-finder with Brent's exact convergence guarantees, so
// this stays hand-rolled; see DESIGN.md.
func BrentRoot(f func(float64) float64, lo, hi, tol float64, maxIters int) (float64, error) {
	a, b := lo, hi
	fa, fb := f(a), f(b)
	if fa*fb > 0 {
		return 0, errors.New("ivsurface: root not bracketed")
	}
	if math.Abs(fa) < math.Abs(fb) {
		a, b = b, a
		fa, fb = fb, fa
	}
	c, fc := a, fa
	mflag := true
	var d float64

	for i := 0; i < maxIters; i++ {
		if fb == 0 || math.Abs(b-a) < tol {
			return b, nil
		}

		var s float64
		if fa != fc && fb != fc {
			s = a*fb*fc/((fa-fb)*(fa-fc)) +
				b*fa*fc/((fb-fa)*(fb-fc)) +
				c*fa*fb/((fc-fa)*(fc-fb))
		} else {
			s = b - fb*(b-a)/(fb-fa)
		}

		cond1 := (s < (3*a+b)/4 || s > b) && a < b || (s > (3*a+b)/4 || s < b) && a >= b
		cond2 := mflag && math.Abs(s-b) >= math.Abs(b-c)/2
		cond3 := !mflag && math.Abs(s-b) >= math.Abs(c-d)/2
		cond4 := mflag && math.Abs(b-c) < tol
		cond5 := !mflag && math.Abs(c-d) < tol

		if cond1 || cond2 || cond3 || cond4 || cond5 {
			s = (a + b) / 2
			mflag = true
		} else {
			mflag = false
		}

		fs := f(s)
		d, c, fc = c, b, fb

		if fa*fs < 0 {
			b, fb = s, fs
		} else {
			a, fa = s, fs
		}
		if math.Abs(fa) < math.Abs(fb) {
			a, b = b, a
			fa, fb = fb, fa
		}
	}
	if math.Abs(fb) < tol {
		return b, nil
	}
	return 0, errors.New("ivsurface: brent did not converge")
}

// SolveFixedPoint finds v* on [1e-7, 4.0] such that
// v* - surface.Predict(strike, tau, v*) == 0, the fixed-point
// repair query for one missing contract.
func SolveFixedPoint(s Surface, strike, tau float64) (float64, error) {
	f := func(v float64) float64 { return v - s.Predict(strike, tau, v) }
	return BrentRoot(f, brentLo, brentHi, brentTolerance, brentMaxIters)
}
