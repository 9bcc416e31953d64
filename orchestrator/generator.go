package orchestrator

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tantralabs/derivuniverse/chain"
	"github.com/tantralabs/derivuniverse/data"
	"github.com/tantralabs/derivuniverse/greeks"
	"github.com/tantralabs/derivuniverse/history"
	"github.com/tantralabs/derivuniverse/ivsurface"
	"github.com/tantralabs/derivuniverse/logger"
	"github.com/tantralabs/derivuniverse/models"
	"github.com/tantralabs/derivuniverse/universefile"
	"github.com/tantralabs/derivuniverse/utils"
)

// Generator is the top-level per-run orchestrator: it discovers a
// Strategy's chains for one processing date, then fans out across
// canonicals with bounded concurrency, one output file per canonical.
type Generator struct {
	Strategy     Strategy
	History      history.Gateway
	MarketHours  data.Calendar
	GreeksConfig greeks.Config
	OutRoot      string
	D            time.Time
	SliceZone    *time.Location

	// Concurrency overrides the default floor(1.5*NumCPU) worker count;
	// zero means use the default.
	Concurrency int
	// ETAEvery overrides the default 50-contract progress cadence.
	ETAEvery int
}

// pendingOption records where one option contract's row landed in the
// writer's buffer, so repairMissingIV can overwrite it in place once a
// surface fit resolves a missing IV.
type pendingOption struct {
	row    int
	symbol models.Symbol
	entry  *models.OptionEntry
}

func (g *Generator) concurrency() int {
	if g.Concurrency > 0 {
		return g.Concurrency
	}
	n := int(1.5 * float64(runtime.NumCPU()))
	if n < 1 {
		n = 1
	}
	return n
}

func (g *Generator) etaEvery() int {
	if g.ETAEvery > 0 {
		return g.ETAEvery
	}
	return 50
}

// Run executes the full pipeline for one processing date: chain discovery,
// then a bounded parallel fan-out across canonicals with a shared
// cancellation token, returning false if any canonical hit a fatal error.
// An empty discovery (no canonicals, or canonicals with no contracts) is a
// hard failure when the market was open on D; otherwise it is a silent
// no-op, since a closed exchange naturally has nothing to discover.
func (g *Generator) Run() bool {
	chains, err := g.Strategy.ChainSource.Discover(g.D)
	if err != nil {
		logger.Errorf("orchestrator: chain discovery failed: %v\n", err)
		return false
	}

	if g.Strategy.FilterSymbols != nil {
		for i := range chains {
			chains[i].Contracts = g.Strategy.FilterSymbols(chains[i].Contracts)
		}
	}

	total := 0
	for _, ch := range chains {
		total += len(ch.Contracts)
	}

	marketOpen := g.MarketHours == nil || g.MarketHours.IsOpen(g.Strategy.Market, g.D)
	if total == 0 && marketOpen {
		logger.Errorf("orchestrator: %s: chain discovery returned no canonicals or contracts for %s while the market was open\n",
			g.Strategy.Market, g.D.Format("2006-01-02"))
		return false
	}

	tracker := NewTracker(total, g.etaEvery())

	eg, ctx := errgroup.WithContext(context.Background())
	sem := make(chan struct{}, g.concurrency())

dispatch:
	for _, ch := range chains {
		select {
		case <-ctx.Done():
			break dispatch
		default:
		}

		ch := ch
		sem <- struct{}{}
		eg.Go(func() error {
			defer func() { <-sem }()
			return g.processCanonical(ctx, ch, tracker)
		})
	}

	if err := eg.Wait(); err != nil {
		logger.Errorf("orchestrator: run aborted: %v\n", err)
		return false
	}
	return true
}

// processCanonical runs steps (a)-(e) of the pipeline for one canonical's
// chain. A non-nil error here is fatal and cancels every other in-flight
// canonical via errgroup's shared context; market-closed and
// missing-underlying-history are soft skips reported as a nil error.
func (g *Generator) processCanonical(ctx context.Context, ch chain.Chain, tracker *Tracker) error {
	canonical := ch.Canonical
	contracts := ch.Contracts
	market := g.Strategy.Market

	if g.MarketHours != nil && !g.MarketHours.IsOpen(market, g.D) {
		logger.Infof("orchestrator: %s market is closed on %s\n", canonical.Ticker, g.D.Format("2006-01-02"))
		return nil
	}

	var underlying models.Symbol
	var underlyingEntry *models.UnderlyingEntry
	var underlyingSlices []models.Slice
	var underlyingCloses []float64

	if g.Strategy.NeedsUnderlying {
		underlying = UnderlyingFor(canonical, contracts)
		req := g.Strategy.UnderlyingHistoryRequest(underlying, g.D)
		underlyingSlices = g.History.GetHistory([]models.HistoryRequest{req}, g.SliceZone)

		if len(underlyingSlices) == 0 {
			if g.Strategy.HasGreeks {
				logger.Errorf("orchestrator: %s: no underlying history, skipping canonical\n", canonical.Ticker)
				tracker.IncMissingData()
				return nil
			}
			logger.Debugf("orchestrator: %s: no underlying history, proceeding with a zero underlying row\n", canonical.Ticker)
		}

		underlyingEntry = models.NewUnderlyingEntry(underlying)
		for _, s := range underlyingSlices {
			underlyingEntry.Update(s)
		}
		underlyingCloses = dailyCloses(underlyingSlices, underlying)
	}

	schema := universefile.SchemaFor(canonical.SecurityType)
	key := universefile.UnderlyingKey(canonical, futureExpiryFor(canonical, contracts))
	path := universefile.OutputPath(g.OutRoot, canonical.SecurityType, market, key, g.D)
	writer := universefile.NewWriter(path, schema)

	if underlyingEntry != nil {
		writer.WriteRow(underlyingEntry.Row())
	}

	var pending []pendingOption

	for _, contract := range contracts {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		entry := g.Strategy.CreateEntry(contract)
		reqs := g.Strategy.DerivativeHistoryRequests(contract, g.D)
		contractSlices := g.History.GetHistory(reqs, g.SliceZone)
		combined := data.MergeByTimestamp(underlyingSlices, contractSlices)

		var engine *greeks.Engine
		if g.Strategy.HasGreeks {
			engine = greeks.NewEngine(contract, g.GreeksConfig)
			engine.SeedRealized(underlyingCloses)
		}
		for _, s := range combined {
			entry.Update(s)
			if engine != nil {
				engine.Update(s)
			}
		}

		if oe, ok := entry.(*models.OptionEntry); ok && engine != nil {
			if iv, gr, ok := engine.GetGreeks(); ok {
				oe.SetGreeks(iv, gr)
			}
			row := len(writer.Rows())
			writer.WriteRow(entry.Row())
			pending = append(pending, pendingOption{row: row, symbol: contract, entry: oe})
		} else {
			writer.WriteRow(entry.Row())
		}

		tracker.RecordContract()
	}

	if g.Strategy.HasGreeks && underlyingEntry != nil && len(pending) > 0 {
		g.repairMissingIV(pending, underlyingEntry.Close, underlyingCloses, writer)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("orchestrator: %s: %w", canonical.Ticker, err)
	}

	tracker.ForceUpdate()
	return nil
}

// repairMissingIV fits a surface over the canonical's already-priced
// contracts and overwrites the buffered rows for every contract the
// repair pass resolved (step e). A fit or repair failure is logged and the
// affected rows keep their missing IV, never a fatal error.
func (g *Generator) repairMissingIV(pending []pendingOption, underlyingClose float64, underlyingCloses []float64, writer *universefile.Writer) {
	var valid []ivsurface.Observation
	var candidates []ivsurface.Candidate
	rowByID := make(map[string]int, len(pending))

	for _, p := range pending {
		rowByID[p.symbol.ID()] = p.row
		tau := utils.YearsBetween(g.D, p.symbol.Expiry)
		if tau <= 0 {
			continue
		}
		if p.entry.HasIV() {
			valid = append(valid, ivsurface.Observation{Strike: p.symbol.Strike, Tau: tau, IV: p.entry.IV})
		} else {
			candidates = append(candidates, ivsurface.Candidate{Symbol: p.symbol, Entry: p.entry})
		}
	}

	if len(candidates) == 0 {
		return
	}

	repaired := ivsurface.Repair(valid, underlyingClose, g.D, candidates, g.GreeksConfig, underlyingCloses)
	if repaired == 0 {
		return
	}
	for _, c := range candidates {
		if row, ok := rowByID[c.Symbol.ID()]; ok {
			writer.ReplaceRow(row, c.Entry.Row())
		}
	}
}

func dailyCloses(slices []models.Slice, sym models.Symbol) []float64 {
	closes := make([]float64, 0, len(slices))
	for _, s := range slices {
		if tb, ok := s.TradeBarFor(sym); ok {
			closes = append(closes, tb.Close)
			continue
		}
		if qb, ok := s.QuoteBarFor(sym); ok {
			closes = append(closes, qb.Close)
		}
	}
	return closes
}

// futureExpiryFor extracts the underlying future's own expiry for a
// future-option canonical, used to compose the "<root>/<expiry>"
// universe-file directory key; nil for every other security class or when
// no contract's underlying carries an expiry.
func futureExpiryFor(canonical models.Symbol, contracts []models.Symbol) *time.Time {
	if canonical.SecurityType != models.FutureOption {
		return nil
	}
	for _, c := range contracts {
		if c.Underlying != nil && !c.Underlying.Expiry.IsZero() {
			e := c.Underlying.Expiry
			return &e
		}
	}
	return nil
}
