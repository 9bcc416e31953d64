package orchestrator

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tantralabs/derivuniverse/chain"
	"github.com/tantralabs/derivuniverse/greeks"
	"github.com/tantralabs/derivuniverse/history"
	"github.com/tantralabs/derivuniverse/models"
	"github.com/tantralabs/derivuniverse/universefile"
)

// fakeFutureSecondary serves a canned trade bar for any future contract,
// standing in for a real archive/network fetch so the futures-path test
// never touches the filesystem beyond its output.
type fakeFutureSecondary struct{}

func (fakeFutureSecondary) Fetch(req models.HistoryRequest) ([]models.Slice, error) {
	if req.DataType != models.Trade {
		return nil, nil
	}
	s := models.NewSlice(req.EndUTC)
	s.TradeBars[req.Symbol.ID()] = models.TradeBar{
		Symbol: req.Symbol, EndTime: req.EndUTC, Open: 18.0, High: 18.5, Low: 17.9, Close: 18.2, Volume: 1000,
	}
	return []models.Slice{s}, nil
}

// TestFutureStrategy_ProviderChainSource exercises the bare-futures
// path: a chain.ExpiryDictionaryProvider stands in for CFE's listing
// calendar, feeding FutureStrategy's ProviderChainSource instead of an
// archive zip scan.
func TestFutureStrategy_ProviderChainSource(t *testing.T) {
	D := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	canonical := models.NewCanonical("VX", models.Future, "cfe", nil)

	provider := chain.ExpiryDictionaryProvider{
		Market: "cfe",
		Expiries: map[string][]time.Time{
			"VX": {D.AddDate(0, 0, -10), D.AddDate(0, 1, 0), D.AddDate(0, 2, 0)},
		},
	}

	strategy := FutureStrategy("cfe", canonical, provider)
	assert.False(t, strategy.NeedsUnderlying)
	assert.False(t, strategy.HasGreeks)

	chains, err := strategy.ChainSource.Discover(D)
	require.NoError(t, err)
	require.Len(t, chains, 1)
	// the expiry 10 days before D has already lapsed and must not appear
	assert.Len(t, chains[0].Contracts, 2)

	outDir := t.TempDir()
	gen := &Generator{
		Strategy: strategy,
		History: history.Gateway{
			Archive:   history.ArchiveReader{Root: t.TempDir()},
			Ladder:    []models.Resolution{models.Daily},
			Lookback:  5,
			Secondary: []history.SecondaryProvider{fakeFutureSecondary{}},
		},
		GreeksConfig: greeks.DefaultConfig(),
		OutRoot:      outDir,
		D:            D,
	}

	ok := gen.Run()
	require.True(t, ok)

	path := universefile.OutputPath(outDir, models.Future, "cfe", "vx", D)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3) // header + two live contracts, no underlying row
	assert.True(t, strings.HasPrefix(lines[0], "#"))
	assert.NotContains(t, lines[0], "implied_volatility") // Future carries no option columns
}
