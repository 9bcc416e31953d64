package models

import (
	"fmt"
	"time"
)

// Symbol is an opaque, value-equal identifier for anything the pipeline
// can hold a price for: a canonical chain root, an underlying equity or
// index, or a tradable derivative contract.
//
// Symbols are compared by their identifier fields via Equals, not by Go's
// built-in == (the Underlying pointer would defeat that). Two Symbols
// built independently from the same fields must compare Equals-true.
type Symbol struct {
	Ticker       string
	SecurityType SecurityType
	Market       string
	Underlying   *Symbol // nil for underlyings themselves and for canonicals or futures built without one
	Style        *OptionStyle
	Right        *OptionRight
	Strike       float64
	Expiry       time.Time
	canonical    bool
}

// NewUnderlying builds a Symbol for an equity, index, or future that is
// itself not a derivative contract.
func NewUnderlying(ticker string, st SecurityType, market string) Symbol {
	return Symbol{Ticker: ticker, SecurityType: st, Market: market}
}

// NewCanonical builds the chain-root Symbol for a derivative security
// class, e.g. "SPY options" or "/ES futures". It carries no strike or
// expiry of its own.
func NewCanonical(ticker string, st SecurityType, market string, underlying *Symbol) Symbol {
	return Symbol{Ticker: ticker, SecurityType: st, Market: market, Underlying: underlying, canonical: true}
}

// NewOption builds a tradable option contract Symbol.
func NewOption(ticker string, st SecurityType, market string, underlying *Symbol,
	style OptionStyle, right OptionRight, strike float64, expiry time.Time) Symbol {
	return Symbol{
		Ticker:       ticker,
		SecurityType: st,
		Market:       market,
		Underlying:   underlying,
		Style:        &style,
		Right:        &right,
		Strike:       strike,
		Expiry:       expiry,
	}
}

// NewFuture builds a tradable future contract Symbol (no strike/right).
func NewFuture(ticker string, market string, underlying *Symbol, expiry time.Time) Symbol {
	return Symbol{Ticker: ticker, SecurityType: Future, Market: market, Underlying: underlying, Expiry: expiry}
}

// IsCanonical reports whether this Symbol denotes a chain root rather than
// a tradable contract.
func (s Symbol) IsCanonical() bool { return s.canonical }

// HasOptionFields reports whether Style/Right/Strike/Expiry are meaningful
// for this Symbol.
func (s Symbol) HasOptionFields() bool { return IsOption(s.SecurityType) && !s.canonical }

// Equals compares two Symbols by identifier fields.
func (s Symbol) Equals(o Symbol) bool {
	if s.Ticker != o.Ticker || s.SecurityType != o.SecurityType || s.Market != o.Market || s.canonical != o.canonical {
		return false
	}
	if (s.Underlying == nil) != (o.Underlying == nil) {
		return false
	}
	if s.Underlying != nil && !s.Underlying.Equals(*o.Underlying) {
		return false
	}
	if (s.Style == nil) != (o.Style == nil) || (s.Style != nil && *s.Style != *o.Style) {
		return false
	}
	if (s.Right == nil) != (o.Right == nil) || (s.Right != nil && *s.Right != *o.Right) {
		return false
	}
	if s.HasOptionFields() {
		if s.Strike != o.Strike || !s.Expiry.Equal(o.Expiry) {
			return false
		}
	}
	return true
}

// ID renders a stable, unique string identifier suitable as a map key or a
// CSV symbol_id column, e.g. "SPY|Equity|usa" for an underlying or
// "SPY|EquityOption|usa|American|Call|450.0000|20240119" for an option.
func (s Symbol) ID() string {
	if !s.HasOptionFields() {
		return fmt.Sprintf("%s|%s|%s", s.Ticker, s.SecurityType, s.Market)
	}
	return fmt.Sprintf("%s|%s|%s|%s|%s|%.4f|%s",
		s.Ticker, s.SecurityType, s.Market, s.Style, s.Right, s.Strike, s.Expiry.Format("20060102"))
}

// Mirror returns the option with identical underlying, style, market,
// strike, and expiry, with the right flipped. Calling Mirror twice returns
// a Symbol equal to the original.
func (s Symbol) Mirror() (Symbol, bool) {
	if !s.HasOptionFields() {
		return Symbol{}, false
	}
	opposite := s.Right.Opposite()
	m := s
	m.Right = &opposite
	m.Ticker = mirrorTicker(s.Ticker, *s.Right, opposite)
	return m, true
}

// mirrorTicker flips the "C"/"P" right marker in a ticker string: the
// marker that follows a six-digit yymmdd expiry ("SPY240315C450"), or
// else a trailing one. A ticker with neither, such as a bare root "SPY",
// is returned unchanged. The ticker is part of Equals and ID, so the
// mirror matches the real opposite-right contract only when its ticker
// is flipped the same way.
func mirrorTicker(ticker string, from, to OptionRight) string {
	fromMarker := rightMarker(from)
	toMarker := rightMarker(to)
	for i := 6; i < len(ticker); i++ {
		if ticker[i] != fromMarker[0] {
			continue
		}
		digits := true
		for _, c := range ticker[i-6 : i] {
			if c < '0' || c > '9' {
				digits = false
				break
			}
		}
		if digits {
			return ticker[:i] + toMarker + ticker[i+1:]
		}
	}
	if len(ticker) > 0 && ticker[len(ticker)-1:] == fromMarker {
		return ticker[:len(ticker)-1] + toMarker
	}
	return ticker
}

func rightMarker(r OptionRight) string {
	if r == Put {
		return "P"
	}
	return "C"
}
