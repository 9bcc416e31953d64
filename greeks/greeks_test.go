package greeks

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tantralabs/derivuniverse/models"
)

func TestBlackTheoreticalPrice_CallPutParity(t *testing.T) {
	call, err := BlackTheoreticalPrice(0.30, 100, 100, 1.0, 0.02, 0.0, models.Call)
	require.NoError(t, err)
	put, err := BlackTheoreticalPrice(0.30, 100, 100, 1.0, 0.02, 0.0, models.Put)
	require.NoError(t, err)

	parity := call - put - (100*math.Exp(0) - 100*math.Exp(-0.02))
	assert.InDelta(t, 0, parity, 1e-6)
}

func TestImpliedVolatility_RoundTripsAKnownPrice(t *testing.T) {
	trueIV := 0.35
	price, err := BlackTheoreticalPrice(trueIV, 493.98, 500, 0.5, 0.01, 0.0, models.Call)
	require.NoError(t, err)

	iv, err := ImpliedVolatility(price, 493.98, 500, 0.5, 0.01, 0.0, models.Call, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, trueIV, iv, 1e-4)
	assert.GreaterOrEqual(t, iv, minIV)
	assert.LessOrEqual(t, iv, maxIV)
}

func TestCompute_GreekSignContract(t *testing.T) {
	g := Compute(0.4, 493.98, 480, 0.25, 0.02, 0.0, models.Call)
	assert.NotEqual(t, 0.0, g.Delta)
	assert.GreaterOrEqual(t, g.Vega, 0.0)
	assert.Less(t, g.Theta, 0.0)
	assert.NotEqual(t, 0.0, g.Rho)
}

func TestSeedVolatility_ShortSeriesFallsBackToDefault(t *testing.T) {
	assert.Equal(t, 0.5, SeedVolatility([]float64{100, 101}))
}

func TestEngine_UpdateProducesConvergedIV(t *testing.T) {
	underlying := models.NewUnderlying("SPY", models.Equity, "usa")
	expiry := time.Now().AddDate(0, 3, 0)
	call := models.NewOption("SPY240101C00500000", models.EquityOption, "usa", &underlying,
		models.American, models.Call, 500, expiry)

	e := NewEngine(call, DefaultConfig())

	now := time.Now()
	slice := models.NewSlice(now)
	slice.QuoteBars[underlying.ID()] = models.QuoteBar{Symbol: underlying, EndTime: now, Bid: 493, Ask: 495, Close: 494}

	price, err := BlackTheoreticalPrice(0.30, 494, 500, 0.25, 0, 0, models.Call)
	require.NoError(t, err)
	slice.QuoteBars[call.ID()] = models.QuoteBar{Symbol: call, EndTime: now, Bid: price - 0.01, Ask: price + 0.01, Close: price}

	e.Update(slice)
	iv, g, ok := e.GetGreeks()
	require.True(t, ok)
	assert.InDelta(t, 0.30, iv, 0.02)
	assert.NotEqual(t, 0.0, g.Delta)
}
