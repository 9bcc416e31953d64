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
	"github.com/tantralabs/derivuniverse/utils"
)

type stubChainSource struct{ chains []chain.Chain }

func (s stubChainSource) Discover(time.Time) ([]chain.Chain, error) { return s.chains, nil }

// fakeSecondary serves canned bars for the underlying and any option
// contract, standing in for a real archive/network fetch so the
// orchestrator test never touches the filesystem beyond its output.
type fakeSecondary struct{}

func (fakeSecondary) Fetch(req models.HistoryRequest) ([]models.Slice, error) {
	d := req.EndUTC

	if req.Symbol.Ticker == "SPY" && !req.Symbol.HasOptionFields() {
		if req.DataType != models.Trade {
			return nil, nil
		}
		s := models.NewSlice(d)
		s.TradeBars[req.Symbol.ID()] = models.TradeBar{
			Symbol: req.Symbol, EndTime: d, Open: 493, High: 495, Low: 492, Close: 493.98, Volume: 1e6,
		}
		return []models.Slice{s}, nil
	}

	if req.Symbol.HasOptionFields() {
		switch req.DataType {
		case models.Quote:
			t := utils.YearsBetween(d, req.Symbol.Expiry)
			price, err := greeks.BlackTheoreticalPrice(0.30, 493.98, req.Symbol.Strike, t, 0, 0, *req.Symbol.Right)
			if err != nil {
				return nil, nil
			}
			s := models.NewSlice(d)
			s.QuoteBars[req.Symbol.ID()] = models.QuoteBar{
				Symbol: req.Symbol, EndTime: d, Bid: price - 0.01, Ask: price + 0.01, Close: price,
			}
			return []models.Slice{s}, nil
		case models.Trade:
			s := models.NewSlice(d)
			s.TradeBars[req.Symbol.ID()] = models.TradeBar{Symbol: req.Symbol, EndTime: d, Volume: 500}
			return []models.Slice{s}, nil
		}
	}
	return nil, nil
}

func TestGenerator_Run_ProducesUnderlyingAndOptionRows(t *testing.T) {
	underlying := models.NewUnderlying("SPY", models.Equity, "usa")
	D := time.Date(2024, 2, 7, 0, 0, 0, 0, time.UTC)
	expiry := D.AddDate(0, 3, 0)

	canonical := models.NewCanonical("SPY", models.EquityOption, "usa", nil)
	call := models.NewOption("SPY_call", models.EquityOption, "usa", &underlying, models.American, models.Call, 480, expiry)

	ch := chain.Chain{Canonical: canonical, Contracts: []models.Symbol{call}}

	outDir := t.TempDir()
	strategy := OptionStrategy(models.EquityOption, "usa", t.TempDir(), []models.Resolution{models.Daily})
	strategy.ChainSource = stubChainSource{chains: []chain.Chain{ch}}

	gen := &Generator{
		Strategy: strategy,
		History: history.Gateway{
			Archive:   history.ArchiveReader{Root: t.TempDir()},
			Ladder:    []models.Resolution{models.Daily},
			Lookback:  5,
			Secondary: []history.SecondaryProvider{fakeSecondary{}},
		},
		MarketHours:  nil,
		GreeksConfig: greeks.DefaultConfig(),
		OutRoot:      outDir,
		D:            D,
	}

	ok := gen.Run()
	require.True(t, ok)

	path := universefile.OutputPath(outDir, models.EquityOption, "usa", "spy", D)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3) // header + underlying row + one contract row
	assert.True(t, strings.HasPrefix(lines[0], "#"))

	contractRow := strings.Split(lines[2], ",")
	iv := contractRow[len(contractRow)-6]
	delta := contractRow[len(contractRow)-5]
	assert.NotEqual(t, "", iv)
	assert.NotEqual(t, "0", delta)
}

func TestGenerator_Run_MarketClosedSkipsCanonicalNotRun(t *testing.T) {
	underlying := models.NewUnderlying("SPY", models.Equity, "usa")
	D := time.Date(2024, 2, 7, 0, 0, 0, 0, time.UTC)
	canonical := models.NewCanonical("SPY", models.EquityOption, "usa", nil)
	call := models.NewOption("SPY_call", models.EquityOption, "usa", &underlying,
		models.American, models.Call, 480, D.AddDate(0, 3, 0))
	ch := chain.Chain{Canonical: canonical, Contracts: []models.Symbol{call}}

	outDir := t.TempDir()
	strategy := OptionStrategy(models.EquityOption, "usa", t.TempDir(), []models.Resolution{models.Daily})
	strategy.ChainSource = stubChainSource{chains: []chain.Chain{ch}}

	gen := &Generator{
		Strategy:     strategy,
		History:      history.NewGateway(t.TempDir()),
		MarketHours:  closedMarketHours{},
		GreeksConfig: greeks.DefaultConfig(),
		OutRoot:      outDir,
		D:            D,
	}

	ok := gen.Run()
	require.True(t, ok) // market-closed is a soft skip, not a failure

	path := universefile.OutputPath(outDir, models.EquityOption, "usa", "spy", D)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

// closedMarketHours reports every market closed, standing in for
// data.MarketHoursDB without a real Postgres connection.
type closedMarketHours struct{}

func (closedMarketHours) IsOpen(string, time.Time) bool { return false }

// openMarketHours reports every market open, used to exercise the
// empty-discovery hard-error path without a real Postgres connection.
type openMarketHours struct{}

func (openMarketHours) IsOpen(string, time.Time) bool { return true }

func TestGenerator_Run_EmptyDiscoveryWhileMarketOpenFails(t *testing.T) {
	D := time.Date(2024, 2, 7, 0, 0, 0, 0, time.UTC)

	outDir := t.TempDir()
	strategy := OptionStrategy(models.EquityOption, "usa", t.TempDir(), []models.Resolution{models.Daily})
	strategy.ChainSource = stubChainSource{chains: nil}

	gen := &Generator{
		Strategy:     strategy,
		History:      history.NewGateway(t.TempDir()),
		MarketHours:  openMarketHours{},
		GreeksConfig: greeks.DefaultConfig(),
		OutRoot:      outDir,
		D:            D,
	}

	ok := gen.Run()
	assert.False(t, ok)
}
