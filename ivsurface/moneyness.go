// Package ivsurface repairs missing implied volatilities by fitting a
// quadratic surface regression over a canonical's valid IVs and
// root-finding a fixed point in volatility for each contract that needs
// repair. The regression is built on gonum's mat package, and the
// root-finder is hand-rolled in the same small-pure-well-tested-function
// style as the rest of the pricing math in this tree.
package ivsurface

import "math"

// Moneyness computes the volatility-scaled log-moneyness
// ln(K/S) / (v * sqrt(tau)) used as one of the regression's five
// regressors. Its edge cases are deliberate: a zero strike or zero
// tau/vol reach an infinite result, and a negative strike or tau a NaN,
// rather than panicking. Fit rejects an observation set containing any
// non-finite regressor with an error; it does not skip that contract.
func Moneyness(strike, underlyingClose, tau, v float64) float64 {
	if strike < 0 || tau < 0 {
		return math.NaN()
	}
	if strike == 0 {
		return math.Inf(-1)
	}
	if tau == 0 || v == 0 {
		return math.Inf(1)
	}
	return math.Log(strike/underlyingClose) / (v * math.Sqrt(tau))
}

// Regressors builds the five OLS predictors [m, tau, m^2, tau^2, m*tau]
// for one (strike, tau, v) observation.
func Regressors(strike, underlyingClose, tau, v float64) [5]float64 {
	m := Moneyness(strike, underlyingClose, tau, v)
	return [5]float64{m, tau, m * m, tau * tau, m * tau}
}
