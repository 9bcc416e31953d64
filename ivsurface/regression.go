package ivsurface

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/tantralabs/derivuniverse/logger"
)

// minValidContracts is the minimum number of strictly-valid-IV
// observations a Fit will accept; below this the surface is too sparse
// to trust and repair is skipped for the whole canonical.
const minValidContracts = 6

// Observation is one contract's inputs to the surface fit: its strike,
// years-to-expiry, and its own (valid) implied volatility.
type Observation struct {
	Strike float64
	Tau    float64
	IV     float64
}

// Surface is a fitted quadratic IV-surface regression: intercept plus
// five coefficients over [m, tau, m^2, tau^2, m*tau].
type Surface struct {
	UnderlyingClose float64
	Intercept       float64
	Coef            [5]float64
	RSquared        float64
}

// Fit runs ordinary least squares with intercept over valid, matching
// the source's five-regressor model, via a QR least-squares solve on the
// gonum mat.Dense design matrix itself (more numerically stable than a
// Cholesky solve of the normal equations X'X for a nearly-collinear
// moneyness/tau design).
// Fit returns an error if fewer than minValidContracts observations are
// valid; the caller is responsible for the count_valid < count_total
// gating (fitting only makes sense when some contracts are missing).
func Fit(valid []Observation, underlyingClose float64) (Surface, error) {
	if len(valid) < minValidContracts {
		return Surface{}, errors.New("ivsurface: too few valid contracts to fit a surface")
	}

	n := len(valid)
	x := mat.NewDense(n, 6, nil)
	y := mat.NewVecDense(n, nil)
	for i, o := range valid {
		reg := Regressors(o.Strike, underlyingClose, o.Tau, o.IV)
		if !finiteRow(reg) {
			return Surface{}, errors.New("ivsurface: non-finite regressor in fit input")
		}
		x.SetRow(i, []float64{1, reg[0], reg[1], reg[2], reg[3], reg[4]})
		y.SetVec(i, o.IV)
	}

	var qr mat.QR
	qr.Factorize(x)

	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, y); err != nil {
		return Surface{}, errors.New("ivsurface: regression solve failed: " + err.Error())
	}

	s := Surface{
		UnderlyingClose: underlyingClose,
		Intercept:       beta.AtVec(0),
		Coef:            [5]float64{beta.AtVec(1), beta.AtVec(2), beta.AtVec(3), beta.AtVec(4), beta.AtVec(5)},
	}

	fitted := make([]float64, n)
	actual := make([]float64, n)
	for i, o := range valid {
		fitted[i] = s.Predict(o.Strike, o.Tau, o.IV)
		actual[i] = o.IV
	}
	s.RSquared = stat.RSquaredFrom(fitted, actual, nil)
	logger.Debugf("ivsurface: fit over %d contracts, R^2=%.4f\n", n, s.RSquared)

	return s, nil
}

// Predict evaluates the fitted surface at moneyness/tau derived from
// (strike, tau, v): the model's own opinion of what IV a contract with
// that strike and expiry should carry, given a trial volatility v used
// to compute moneyness.
func (s Surface) Predict(strike, tau, v float64) float64 {
	reg := Regressors(strike, s.UnderlyingClose, tau, v)
	return s.Intercept + s.Coef[0]*reg[0] + s.Coef[1]*reg[1] + s.Coef[2]*reg[2] + s.Coef[3]*reg[3] + s.Coef[4]*reg[4]
}

func finiteRow(reg [5]float64) bool {
	for _, v := range reg {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
