package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbol_EqualsIgnoresUnderlyingPointerIdentity(t *testing.T) {
	spy1 := NewUnderlying("SPY", Equity, "usa")
	spy2 := NewUnderlying("SPY", Equity, "usa")

	expiry := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	a := NewOption("SPY240315C450", EquityOption, "usa", &spy1, American, Call, 450, expiry)
	b := NewOption("SPY240315C450", EquityOption, "usa", &spy2, American, Call, 450, expiry)

	assert.True(t, a.Equals(b))
	assert.NotSame(t, a.Underlying, b.Underlying)
}

func TestSymbol_EqualsDistinguishesStrikeAndRight(t *testing.T) {
	spy := NewUnderlying("SPY", Equity, "usa")
	expiry := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	call := NewOption("SPY240315C450", EquityOption, "usa", &spy, American, Call, 450, expiry)
	put := NewOption("SPY240315P450", EquityOption, "usa", &spy, American, Put, 450, expiry)
	higherStrike := NewOption("SPY240315C460", EquityOption, "usa", &spy, American, Call, 460, expiry)

	assert.False(t, call.Equals(put))
	assert.False(t, call.Equals(higherStrike))
}

func TestSymbol_IDDistinguishesUnderlyingsAndContracts(t *testing.T) {
	spy := NewUnderlying("SPY", Equity, "usa")
	expiry := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	call := NewOption("SPY240315C450", EquityOption, "usa", &spy, American, Call, 450, expiry)

	assert.Equal(t, "SPY|Equity|usa", spy.ID())
	assert.NotEqual(t, spy.ID(), call.ID())
	assert.Contains(t, call.ID(), "450.0000")
}

func TestSymbol_MirrorFlipsRightAndRoundTrips(t *testing.T) {
	spy := NewUnderlying("SPY", Equity, "usa")
	expiry := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	call := NewOption("SPY240315C450", EquityOption, "usa", &spy, American, Call, 450, expiry)

	put, ok := call.Mirror()
	require.True(t, ok)
	assert.Equal(t, Put, *put.Right)
	assert.Equal(t, "SPY240315P450", put.Ticker)

	back, ok := put.Mirror()
	require.True(t, ok)
	assert.True(t, back.Equals(call))
}

func TestSymbol_MirrorFalseForNonOptions(t *testing.T) {
	future := NewFuture("VX", "cfe", nil, time.Date(2024, 4, 17, 0, 0, 0, 0, time.UTC))
	_, ok := future.Mirror()
	assert.False(t, ok)

	underlying := NewUnderlying("SPY", Equity, "usa")
	_, ok = underlying.Mirror()
	assert.False(t, ok)
}

func TestSymbol_CanonicalHasNoOptionFields(t *testing.T) {
	spy := NewUnderlying("SPY", Equity, "usa")
	canonical := NewCanonical("SPY", EquityOption, "usa", &spy)
	assert.True(t, canonical.IsCanonical())
	assert.False(t, canonical.HasOptionFields())
	assert.Equal(t, "SPY|EquityOption|usa", canonical.ID())
}
