package models

import "fmt"

// Entry is the common interface shared by the three UniverseEntry
// variants. A fresh Entry is created per (symbol, D) when a chain is
// generated, mutated only through Update, rendered to one CSV line, and
// discarded.
//
// Entry deliberately knows nothing about the Greeks Engine: forwarding
// underlying/mirror quote bars into a per-contract Greeks engine is the
// orchestrator's job, since threading that dependency down into this
// package would tie the pure data model to the pricing subsystem. The
// orchestrator calls Entry.Update and greeks.Engine.Update side by side
// from the same Slice.
type Entry interface {
	Symbol() Symbol
	Update(s Slice)
	Row() []string // natural columns only; the writer pads to the file's schema
}

// baseFields is the OHLCV state shared by every Entry variant.
type baseFields struct {
	sym    Symbol
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	seen   bool
}

func (b *baseFields) applyTradeBar(tb TradeBar) {
	b.Open, b.High, b.Low, b.Close, b.Volume = tb.Open, tb.High, tb.Low, tb.Close, tb.Volume
	b.seen = true
}

// applyQuoteOHLC takes O/H/L/C from a quote bar, leaving Volume untouched
// (callers decide whether volume should be reset to zero).
func (b *baseFields) applyQuoteOHLC(qb QuoteBar) {
	b.Open, b.High, b.Low, b.Close = qb.Open, qb.High, qb.Low, qb.Close
	b.seen = true
}

func formatDecimal(v float64) string {
	return fmt.Sprintf("%g", v)
}

// UnderlyingEntry represents the row for the chain's own underlying
// instrument (equity/index/future). Update policy: prefer TradeBar OHLCV;
// fall back to QuoteBar OHLC with volume left at zero.
type UnderlyingEntry struct {
	baseFields
}

func NewUnderlyingEntry(sym Symbol) *UnderlyingEntry {
	return &UnderlyingEntry{baseFields{sym: sym}}
}

func (e *UnderlyingEntry) Symbol() Symbol { return e.sym }

func (e *UnderlyingEntry) Update(s Slice) {
	if tb, ok := s.TradeBarFor(e.sym); ok {
		e.applyTradeBar(tb)
		return
	}
	if qb, ok := s.QuoteBarFor(e.sym); ok {
		e.applyQuoteOHLC(qb)
		e.Volume = 0
	}
}

func (e *UnderlyingEntry) Row() []string {
	return []string{
		e.sym.ID(), e.sym.Ticker,
		formatDecimal(e.Open), formatDecimal(e.High), formatDecimal(e.Low), formatDecimal(e.Close),
		formatDecimal(e.Volume),
	}
}

// ContractEntry represents a base (non-option) derivative contract row,
// e.g. a bare future. Update policy: adopt OpenInterest when present in
// the slice; take Volume from TradeBar, OHLC from QuoteBar.
type ContractEntry struct {
	baseFields
	OpenInterest float64
	haveOI       bool
}

func NewContractEntry(sym Symbol) *ContractEntry {
	return &ContractEntry{baseFields: baseFields{sym: sym}}
}

func (e *ContractEntry) Symbol() Symbol { return e.sym }

func (e *ContractEntry) Update(s Slice) {
	if tb, ok := s.TradeBarFor(e.sym); ok {
		e.Volume = tb.Volume
		e.seen = true
	}
	if qb, ok := s.QuoteBarFor(e.sym); ok {
		e.applyQuoteOHLC(qb)
	}
	if oi, ok := s.OpenInterestFor(e.sym); ok {
		e.OpenInterest = oi.Value
		e.haveOI = true
	}
}

func (e *ContractEntry) Row() []string {
	oi := ""
	if e.haveOI {
		oi = formatDecimal(e.OpenInterest)
	}
	return append(e.baseRow(), oi)
}

func (e *ContractEntry) baseRow() []string {
	return []string{
		e.sym.ID(), e.sym.Ticker,
		formatDecimal(e.Open), formatDecimal(e.High), formatDecimal(e.Low), formatDecimal(e.Close),
		formatDecimal(e.Volume),
	}
}

// OptionEntry represents an option contract row: all ContractEntry
// behavior plus implied volatility and the five Greeks, populated
// out-of-band by the orchestrator via SetGreeks once the Greeks Engine has
// consumed the same slice stream, or once a missing IV has been repaired.
type OptionEntry struct {
	ContractEntry
	IV     float64
	haveIV bool
	Greeks Greeks
}

func NewOptionEntry(sym Symbol) *OptionEntry {
	return &OptionEntry{ContractEntry: ContractEntry{baseFields: baseFields{sym: sym}}}
}

// SetGreeks records a computed (or repaired) IV/Greeks snapshot. iv <= 0
// or NaN leaves the entry's IV blank on the rendered row.
func (e *OptionEntry) SetGreeks(iv float64, g Greeks) {
	e.Greeks = g
	if iv > 0 && iv == iv { // iv == iv excludes NaN without importing math here
		e.IV = iv
		e.haveIV = true
	} else {
		e.haveIV = false
	}
}

// HasIV reports whether this entry currently carries a valid IV, i.e.
// whether a repair pass needs to attempt one for it.
func (e *OptionEntry) HasIV() bool { return e.haveIV }

func (e *OptionEntry) Row() []string {
	oi := ""
	if e.haveOI {
		oi = formatDecimal(e.OpenInterest)
	}
	row := append(e.baseRow(), oi)
	if !e.haveIV {
		return append(row, "", "", "", "", "", "")
	}
	return append(row,
		formatDecimal(e.IV),
		formatDecimal(e.Greeks.Delta), formatDecimal(e.Greeks.Gamma), formatDecimal(e.Greeks.Vega),
		formatDecimal(e.Greeks.Theta), formatDecimal(e.Greeks.Rho))
}

// BaseHeader, ContractHeader, and OptionHeader are the column-name groups
// composed by the writer to build a file's single "#..." header line.
var (
	BaseHeader     = []string{"symbol_id", "symbol_value", "open", "high", "low", "close", "volume"}
	ContractHeader = []string{"open_interest"}
	OptionHeader   = []string{"implied_volatility", "delta", "gamma", "vega", "theta", "rho"}
)
