// Package greeks computes implied volatility and the five Greeks for an
// option contract from its own quote, its mirror option's quote, and its
// underlying's price: a Black-Scholes/Black-76 pricing core (d1/d2, the
// closed-form price, Newton-Raphson implied-vol inversion) parameterized
// on the risk-free rate and dividend/carry yield (r, q) rather than a
// fixed zero rate, extended with Rho and a forward/binomial tree price
// that Price prefers, falling back to the closed form when the tree
// rejects its inputs.
package greeks

import (
	"errors"
	"math"

	"github.com/chobie/go-gaussian"

	"github.com/tantralabs/derivuniverse/models"
)

var norm = gaussian.NewGaussian(0, 1)

func d1d2(s, k, t, r, q, iv float64) (d1, d2 float64) {
	d1 = (math.Log(s/k) + (r-q+0.5*iv*iv)*t) / (iv * math.Sqrt(t))
	d2 = d1 - iv*math.Sqrt(t)
	return d1, d2
}

// BlackTheoreticalPrice is the closed-form Black-Scholes/Black-76 price
// of a European option with implied volatility iv, spot s, strike k,
// time-to-expiry t (years), risk-free rate r, dividend/cost-of-carry
// yield q, and right (call or put).
func BlackTheoreticalPrice(iv, s, k, t, r, q float64, right models.OptionRight) (float64, error) {
	if iv <= 0 || t <= 0 || s <= 0 || k <= 0 {
		return 0, errors.New("greeks: invalid pricing input")
	}
	d1, d2 := d1d2(s, k, t, r, q, iv)
	disc := math.Exp(-r * t)
	div := math.Exp(-q * t)
	if right == models.Call {
		return s*div*norm.Cdf(d1) - k*disc*norm.Cdf(d2), nil
	}
	return k*disc*norm.Cdf(-d2) - s*div*norm.Cdf(-d1), nil
}

// ForwardTreeTheoreticalPrice prices via a binomial walk rooted at spot s,
// with up/down moves of e^(+-iv*sqrt(dt)) and a risk-neutral probability
// from the per-step growth e^((r-q)dt); exercise is checked only at
// expiry. Pathological inputs
// (near-zero time-to-expiry, degenerate up-move) return an error; callers
// fall back to BlackTheoreticalPrice rather than propagating it.
func ForwardTreeTheoreticalPrice(iv, s, k, t, r, q float64, right models.OptionRight, steps int) (float64, error) {
	if iv <= 0 || t <= 0 || s <= 0 || k <= 0 || steps <= 0 {
		return 0, errors.New("greeks: invalid forward-tree input")
	}
	dt := t / float64(steps)
	up := math.Exp(iv * math.Sqrt(dt))
	if up <= 1 {
		return 0, errors.New("greeks: degenerate up-move")
	}
	down := 1 / up
	growth := math.Exp((r - q) * dt)
	prob := (growth - down) / (up - down)
	if prob <= 0 || prob >= 1 {
		return 0, errors.New("greeks: risk-neutral probability out of bounds")
	}
	disc := math.Exp(-r * dt)

	prices := make([]float64, steps+1)
	for i := 0; i <= steps; i++ {
		prices[i] = s * math.Pow(up, float64(steps-i)) * math.Pow(down, float64(i))
	}
	values := make([]float64, steps+1)
	for i, p := range prices {
		values[i] = intrinsic(p, k, right)
	}
	for step := steps - 1; step >= 0; step-- {
		for i := 0; i <= step; i++ {
			values[i] = disc * (prob*values[i] + (1-prob)*values[i+1])
		}
	}
	return values[0], nil
}

func intrinsic(price, strike float64, right models.OptionRight) float64 {
	if right == models.Call {
		return math.Max(price-strike, 0)
	}
	return math.Max(strike-price, 0)
}

// Price prefers ForwardTreeTheoreticalPrice and silently falls back to
// BlackTheoreticalPrice on any pathological-input error, the resilience
// rule the design calls for explicitly.
func Price(iv, s, k, t, r, q float64, right models.OptionRight, steps int) (float64, error) {
	if price, err := ForwardTreeTheoreticalPrice(iv, s, k, t, r, q, right, steps); err == nil {
		return price, nil
	}
	return BlackTheoreticalPrice(iv, s, k, t, r, q, right)
}

// Compute returns the five Greeks (Lambda left at 0) for the given
// inputs, derived from the same d1/nPrime terms as BlackTheoreticalPrice.
func Compute(iv, s, k, t, r, q float64, right models.OptionRight) models.Greeks {
	if iv <= 0 || t <= 0 || s <= 0 || k <= 0 {
		return models.Greeks{}
	}
	d1, d2 := d1d2(s, k, t, r, q, iv)
	disc := math.Exp(-r * t)
	div := math.Exp(-q * t)
	nPrime := norm.Pdf(d1)
	sqrtT := math.Sqrt(t)

	gamma := div * nPrime / (s * iv * sqrtT)
	vega := s * div * nPrime * sqrtT / 100 // per 1 vol point

	if right == models.Call {
		return models.Greeks{
			Delta: div * norm.Cdf(d1),
			Gamma: gamma,
			Vega:  vega,
			Theta: (-s*div*nPrime*iv/(2*sqrtT) - r*k*disc*norm.Cdf(d2) + q*s*div*norm.Cdf(d1)) / 365,
			Rho:   k * t * disc * norm.Cdf(d2) / 100,
		}
	}
	return models.Greeks{
		Delta: div * (norm.Cdf(d1) - 1),
		Gamma: gamma,
		Vega:  vega,
		Theta: (-s*div*nPrime*iv/(2*sqrtT) + r*k*disc*norm.Cdf(-d2) - q*s*div*norm.Cdf(-d1)) / 365,
		Rho:   -k * t * disc * norm.Cdf(-d2) / 100,
	}
}
