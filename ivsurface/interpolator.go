package ivsurface

import (
	"fmt"
	"time"

	"github.com/tantralabs/derivuniverse/greeks"
	"github.com/tantralabs/derivuniverse/logger"
	"github.com/tantralabs/derivuniverse/models"
	"github.com/tantralabs/derivuniverse/utils"
)

// Candidate is one contract eligible for repair: its Symbol plus the
// entry the orchestrator will overwrite once a repaired IV/Greeks
// snapshot is available.
type Candidate struct {
	Symbol models.Symbol
	Entry  *models.OptionEntry
}

// Repair fits a surface over valid and, for every candidate whose IV is
// missing, solves the fixed-point query and recomputes Greeks, mutating
// a scratch copy of the entry (a plain struct dereference rather than
// jinzhu/copier's reflection-based copy, since OptionEntry's invariants
// live in unexported fields a reflection copier cannot see) before
// swapping the result back onto the real one, so a mid-repair panic or a
// failed root-find never leaves the caller's entry half-updated.
//
// It returns the count repaired. count_valid < minValidContracts is
// logged and an empty candidates list repairs nothing; both are treated
// as "nothing to do" rather than errors: skipping a repair pass is always
// safe, since the missing IVs simply stay missing.
func Repair(valid []Observation, underlyingClose float64, d time.Time,
	candidates []Candidate, cfg greeks.Config, underlyingDailyCloses []float64) int {
	if len(valid) < minValidContracts {
		logger.Errorf("ivsurface: only %d valid contracts, need >= %d, skipping repair\n", len(valid), minValidContracts)
		return 0
	}

	surface, err := Fit(valid, underlyingClose)
	if err != nil {
		logger.Errorf("ivsurface: fit failed: %v\n", err)
		return 0
	}

	repaired := 0
	for _, c := range candidates {
		if c.Entry.HasIV() {
			continue
		}
		tau := utils.YearsBetween(d, c.Symbol.Expiry)
		if tau <= 0 {
			continue
		}

		v, err := SolveFixedPoint(surface, c.Symbol.Strike, tau)
		if err != nil {
			logger.Errorf("ivsurface: %s: %v\n", c.Symbol.ID(), err)
			continue
		}

		g, err := recomputeGreeks(c.Symbol, underlyingClose, tau, v, d, cfg, underlyingDailyCloses)
		if err != nil {
			logger.Errorf("ivsurface: %s: greeks recompute failed: %v\n", c.Symbol.ID(), err)
			continue
		}

		scratch := *c.Entry
		scratch.SetGreeks(v, g)
		*c.Entry = scratch
		repaired++
	}
	return repaired
}

// recomputeGreeks prices the contract at v via greeks.Price (forward
// tree with a Black-Scholes fallback) and feeds a synthetic two-bar update
// (underlying close, option theoretical price) into a fresh Engine, the
// same round-trip the design calls for so the repaired row's Greeks come
// from the identical code path as a normal streaming update rather than
// a separate formula.
func recomputeGreeks(sym models.Symbol, underlyingClose, tau, v float64, d time.Time, cfg greeks.Config, dailyCloses []float64) (models.Greeks, error) {
	if sym.Underlying == nil || sym.Right == nil {
		return models.Greeks{}, fmt.Errorf("ivsurface: %s missing underlying/right", sym.ID())
	}

	price, err := greeks.Price(v, underlyingClose, sym.Strike, tau, cfg.RiskFreeRate, cfg.DividendYield, *sym.Right, cfg.TreeSteps)
	if err != nil {
		return models.Greeks{}, err
	}

	engine := greeks.NewEngine(sym, cfg)
	engine.SeedRealized(dailyCloses)

	s := models.NewSlice(d)
	s.QuoteBars[sym.Underlying.ID()] = models.QuoteBar{
		Symbol: *sym.Underlying, EndTime: d, Bid: underlyingClose, Ask: underlyingClose, Close: underlyingClose,
	}
	s.QuoteBars[sym.ID()] = models.QuoteBar{Symbol: sym, EndTime: d, Bid: price, Ask: price, Close: price}

	engine.Update(s)
	_, g, ok := engine.GetGreeks()
	if !ok {
		return models.Greeks{}, fmt.Errorf("ivsurface: %s: repaired engine did not converge", sym.ID())
	}
	return g, nil
}
