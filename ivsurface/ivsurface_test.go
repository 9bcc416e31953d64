package ivsurface

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tantralabs/derivuniverse/greeks"
	"github.com/tantralabs/derivuniverse/models"
)

func TestMoneyness_EdgeCaseTable(t *testing.T) {
	const underlyingClose = 493.98

	cases := []struct {
		name           string
		strike, tau, v float64
		want           float64
		checkFinite    bool
	}{
		{"negative strike is NaN", -1, 0.25, 0.3, math.NaN(), false},
		{"negative tau is NaN", 480, -0.1, 0.3, math.NaN(), false},
		{"zero strike is -Inf", 0, 0.25, 0.3, math.Inf(-1), false},
		{"zero tau is +Inf", 480, 0, 0.3, math.Inf(1), false},
		{"zero vol is +Inf", 480, 0.25, 0, math.Inf(1), false},
		{"ordinary point is finite", 480, 0.25, 0.3, 0, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Moneyness(c.strike, underlyingClose, c.tau, c.v)
			if c.checkFinite {
				assert.False(t, math.IsNaN(got) || math.IsInf(got, 0))
				return
			}
			if math.IsNaN(c.want) {
				assert.True(t, math.IsNaN(got))
				return
			}
			assert.Equal(t, c.want, got)
		})
	}
}

func TestRegressors_MatchesMoneynessAndSquares(t *testing.T) {
	reg := Regressors(480, 493.98, 0.25, 0.3)
	m := Moneyness(480, 493.98, 0.25, 0.3)
	assert.Equal(t, m, reg[0])
	assert.Equal(t, 0.25, reg[1])
	assert.InDelta(t, m*m, reg[2], 1e-12)
	assert.InDelta(t, 0.25*0.25, reg[3], 1e-12)
	assert.InDelta(t, m*0.25, reg[4], 1e-12)
}

func syntheticObservations(n int, underlyingClose float64) []Observation {
	obs := make([]Observation, 0, n)
	for i := 0; i < n; i++ {
		strike := underlyingClose * (0.8 + 0.01*float64(i))
		tau := 0.1 + 0.01*float64(i%20)
		m := Moneyness(strike, underlyingClose, tau, 0.3)
		iv := 0.30 + 0.05*m*m + 0.02*tau
		obs = append(obs, Observation{Strike: strike, Tau: tau, IV: iv})
	}
	return obs
}

func TestFit_ProducesBoundedPredictions(t *testing.T) {
	const underlyingClose = 493.98
	obs := syntheticObservations(30, underlyingClose)

	surface, err := Fit(obs, underlyingClose)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, surface.RSquared, 0.0)

	for _, o := range obs {
		pred := surface.Predict(o.Strike, o.Tau, o.IV)
		assert.False(t, math.IsNaN(pred) || math.IsInf(pred, 0))
	}
}

func TestFit_TooFewObservationsErrors(t *testing.T) {
	_, err := Fit(syntheticObservations(3, 493.98), 493.98)
	assert.Error(t, err)
}

func TestSolveFixedPoint_StaysWithinBrentBounds(t *testing.T) {
	const underlyingClose = 493.98
	// 20 points fit a positive m^2 coefficient, so f(v) = v - Predict
	// changes sign on [brentLo, brentHi]; the 30-point set fits a negative
	// one and leaves this query unbracketed.
	obs := syntheticObservations(20, underlyingClose)
	surface, err := Fit(obs, underlyingClose)
	require.NoError(t, err)

	v, err := SolveFixedPoint(surface, underlyingClose*0.95, 0.3)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, v, brentLo)
	assert.LessOrEqual(t, v, brentHi)
}

func TestBrentRoot_UnbracketedReturnsError(t *testing.T) {
	f := func(x float64) float64 { return x*x + 1 } // never crosses zero
	_, err := BrentRoot(f, brentLo, brentHi, brentTolerance, brentMaxIters)
	assert.Error(t, err)
}

func TestBrentRoot_FindsKnownRoot(t *testing.T) {
	f := func(x float64) float64 { return x - 1.5 }
	root, err := BrentRoot(f, 0, 4, 1e-8, 100)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, root, 1e-6)
}

func TestRepair_FillsMissingIVAndProducesUsableGreeks(t *testing.T) {
	const underlyingClose = 493.98
	d := time.Date(2024, 2, 7, 0, 0, 0, 0, time.UTC)
	underlying := models.NewUnderlying("SPY", models.Equity, "usa")

	obs := syntheticObservations(20, underlyingClose)

	missingStrike := underlyingClose * 1.05
	missingExpiry := d.AddDate(0, 3, 0)
	sym := models.NewOption("SPY_missing", models.EquityOption, "usa", &underlying,
		models.American, models.Call, missingStrike, missingExpiry)

	entry := models.NewOptionEntry(sym)
	assert.False(t, entry.HasIV())

	candidates := []Candidate{{Symbol: sym, Entry: entry}}

	repaired := Repair(obs, underlyingClose, d, candidates, greeks.DefaultConfig(), []float64{underlyingClose, underlyingClose * 1.01})
	require.Equal(t, 1, repaired)

	assert.True(t, entry.HasIV())
	assert.Greater(t, entry.IV, minValidIVForTest)
	assert.Less(t, entry.IV, maxValidIVForTest)
	assert.NotEqual(t, 0.0, entry.Greeks.Delta)
}

func TestRepair_SkipsWhenTooFewValidContracts(t *testing.T) {
	d := time.Date(2024, 2, 7, 0, 0, 0, 0, time.UTC)
	obs := syntheticObservations(2, 493.98)
	repaired := Repair(obs, 493.98, d, nil, greeks.DefaultConfig(), nil)
	assert.Equal(t, 0, repaired)
}

const (
	minValidIVForTest = 1e-7
	maxValidIVForTest = 4.0
)
