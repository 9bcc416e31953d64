package models

import "time"

// TradeBar is one OHLCV bar for a symbol, time.Time-keyed and scoped to
// one symbol so many can share a single multi-symbol Slice.
type TradeBar struct {
	Symbol  Symbol
	EndTime time.Time
	Open    float64
	High    float64
	Low     float64
	Close   float64
	Volume  float64
}

// QuoteBar is the OHLC of bid/ask midpoints for a symbol over one bar.
type QuoteBar struct {
	Symbol  Symbol
	EndTime time.Time
	Open    float64
	High    float64
	Low     float64
	Close   float64
	Bid     float64
	Ask     float64
}

// Mid returns the bid/ask midpoint, used as the IV-inversion target price.
func (q QuoteBar) Mid() float64 {
	if q.Bid <= 0 || q.Ask <= 0 {
		return q.Close
	}
	return (q.Bid + q.Ask) / 2
}

// OpenInterest is one open-interest reading for a symbol.
type OpenInterest struct {
	Symbol  Symbol
	EndTime time.Time
	Value   float64
}

// Slice is a timestamped multi-symbol bundle of trade bars, quote bars,
// and open-interest entries, keyed by Symbol.ID().
type Slice struct {
	Time          time.Time
	TradeBars     map[string]TradeBar
	QuoteBars     map[string]QuoteBar
	OpenInterests map[string]OpenInterest
}

// NewSlice returns an empty Slice at the given time.
func NewSlice(t time.Time) Slice {
	return Slice{
		Time:          t,
		TradeBars:     make(map[string]TradeBar),
		QuoteBars:     make(map[string]QuoteBar),
		OpenInterests: make(map[string]OpenInterest),
	}
}

// TradeBarFor looks up a trade bar for sym, if present in this slice.
func (s Slice) TradeBarFor(sym Symbol) (TradeBar, bool) {
	b, ok := s.TradeBars[sym.ID()]
	return b, ok
}

// QuoteBarFor looks up a quote bar for sym, if present in this slice.
func (s Slice) QuoteBarFor(sym Symbol) (QuoteBar, bool) {
	b, ok := s.QuoteBars[sym.ID()]
	return b, ok
}

// OpenInterestFor looks up an open-interest reading for sym, if present.
func (s Slice) OpenInterestFor(sym Symbol) (OpenInterest, bool) {
	oi, ok := s.OpenInterests[sym.ID()]
	return oi, ok
}

// IsEmpty reports whether the slice carries no data at all.
func (s Slice) IsEmpty() bool {
	return len(s.TradeBars) == 0 && len(s.QuoteBars) == 0 && len(s.OpenInterests) == 0
}
