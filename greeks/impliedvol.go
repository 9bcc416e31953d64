package greeks

import (
	"errors"
	"math"

	"github.com/chobie/go-gaussian"
	"github.com/markcheno/go-talib"

	"github.com/tantralabs/derivuniverse/models"
	"github.com/tantralabs/derivuniverse/utils"
)

const (
	minIV        = 1e-7
	maxIV        = 4.0
	ivTolerance  = 1e-8
	maxNewtonIts = 100
	// ivClampDecimals is well beyond ivTolerance, so ConstrainFloat's
	// rounding never masks Newton-Raphson's convergence check.
	ivClampDecimals = 12
)

// SeedVolatility estimates a starting bracket for the Newton-Raphson
// solve from the underlying's recent daily closes: a realized-vol
// estimate (annualized standard deviation of log returns) grounds the
// search instead of always starting from a fixed guess.
func SeedVolatility(dailyCloses []float64) float64 {
	if len(dailyCloses) < 3 {
		return 0.5
	}
	returns := make([]float64, 0, len(dailyCloses)-1)
	for i := 1; i < len(dailyCloses); i++ {
		if dailyCloses[i-1] <= 0 || dailyCloses[i] <= 0 {
			continue
		}
		returns = append(returns, math.Log(dailyCloses[i]/dailyCloses[i-1]))
	}
	if len(returns) < 2 {
		return 0.5
	}
	period := len(returns)
	dev := talib.StdDev(returns, period, 1)
	realized := dev[len(dev)-1] * math.Sqrt(252)
	if realized <= minIV || math.IsNaN(realized) {
		return 0.5
	}
	return clampIV(realized)
}

// ImpliedVolatility solves price_model(iv*) == target for iv* in
// (0, 4.0], via Newton-Raphson on the Black-Scholes vega, carrying r and
// q explicitly and clamping into the documented IV domain.
func ImpliedVolatility(target, s, k, t, r, q float64, right models.OptionRight, seed float64) (float64, error) {
	if target <= 0 || s <= 0 || k <= 0 || t <= 0 {
		return 0, errors.New("greeks: invalid implied-vol input")
	}
	v := clampIV(seed)
	norm := gaussian.NewGaussian(0, 1)

	for i := 0; i < maxNewtonIts; i++ {
		d1, d2 := d1d2(s, k, t, r, q, v)
		disc := math.Exp(-r * t)
		div := math.Exp(-q * t)
		var price float64
		if right == models.Call {
			price = s*div*norm.Cdf(d1) - k*disc*norm.Cdf(d2)
		} else {
			price = k*disc*norm.Cdf(-d2) - s*div*norm.Cdf(-d1)
		}
		vega := s * div * norm.Pdf(d1) * math.Sqrt(t)
		if vega < 1e-12 {
			break
		}
		diff := price - target
		if math.Abs(diff) < ivTolerance {
			return clampIV(v), nil
		}
		v -= diff / vega
		v = clampIV(v)
	}
	return 0, errors.New("greeks: implied vol did not converge")
}

// ParityRefinedSeed returns the put-call parity residual
// C - P - (S*e^-qt - K*e^-rt) of a same-strike call/put pair. ok is false
// when either quote is missing or the residual's magnitude reaches half
// the underlying price.
func ParityRefinedSeed(callMid, putMid, s, k, t, r, q float64, haveCall, havePut bool) (float64, bool) {
	if !haveCall || !havePut {
		return 0, false
	}
	implied := callMid - putMid - (s*math.Exp(-q*t) - k*math.Exp(-r*t))
	return implied, math.Abs(implied) < 0.5*s // sanity bound: parity residual shouldn't dwarf the underlying
}

func clampIV(v float64) float64 {
	if math.IsNaN(v) {
		return minIV
	}
	return utils.ConstrainFloat(v, minIV, maxIV, ivClampDecimals)
}
