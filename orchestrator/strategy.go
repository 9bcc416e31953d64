// Package orchestrator drives the per-canonical universe-generation
// pipeline: chain discovery feeds a bounded-concurrency fan-out
// (golang.org/x/sync/errgroup, semaphore-bounded goroutines sharing one
// cancellable context) over history retrieval, Entry/Greeks updates, IV
// repair, and CSV emission.
package orchestrator

import (
	"time"

	"github.com/tantralabs/derivuniverse/chain"
	"github.com/tantralabs/derivuniverse/models"
)

// ChainSource abstracts where a run's canonicals and their live contracts
// come from: an archive zip scan for equity/index options, or an external
// listing provider (e.g. an expiry dictionary) for security classes whose
// chain isn't enumerable from files on disk.
type ChainSource interface {
	Discover(d time.Time) ([]chain.Chain, error)
}

// ArchiveChainSource scans a date-partitioned zip archive via chain.Discover.
type ArchiveChainSource struct {
	Root        string
	SecurityType models.SecurityType
	Market      string
	Resolutions []models.Resolution
	Parser      chain.EntrySymbolParser
}

func (s ArchiveChainSource) Discover(d time.Time) ([]chain.Chain, error) {
	return chain.Discover(s.Root, s.SecurityType, s.Market, d, s.Resolutions, s.Parser)
}

// ProviderChainSource builds a single canonical's chain from a
// chain.Provider (futures priced off a listing calendar rather than
// scanned from an archive).
type ProviderChainSource struct {
	Canonical models.Symbol
	Provider  chain.Provider
}

func (s ProviderChainSource) Discover(d time.Time) ([]chain.Chain, error) {
	contracts, err := s.Provider.Discover(s.Canonical, d)
	if err != nil {
		return nil, err
	}
	if len(contracts) == 0 {
		return nil, nil
	}
	return []chain.Chain{{Canonical: s.Canonical, Contracts: contracts}}, nil
}

// Strategy is the capability bundle a generator run is parameterised by,
// replacing a base-generator/security-specific-subclass hierarchy with
// composition: one Strategy value covers equity options, index options,
// future options, or bare futures.
type Strategy struct {
	SecurityType models.SecurityType
	Market       string

	// NeedsUnderlying mirrors models.NeedsUnderlyingData: whether the
	// canonical has an underlying instrument to fetch history for at all.
	NeedsUnderlying bool
	// HasGreeks mirrors models.HasGreeks: whether contracts of this class
	// carry IV/Greeks, and whether missing underlying history should abort
	// the canonical rather than proceed with a zero-value underlying row.
	HasGreeks bool

	// CreateEntry builds a fresh Entry for one contract symbol.
	CreateEntry func(models.Symbol) models.Entry

	// FilterSymbols narrows a discovered contract list before processing,
	// e.g. to honor a --symbols allow-list from settings.Config. A nil
	// value processes every contract.
	FilterSymbols func([]models.Symbol) []models.Symbol

	// DerivativeHistoryRequests builds the {TradeBar, QuoteBar,
	// OpenInterest} requests for one contract (and, for options, its
	// mirror), rooted at processing date d.
	DerivativeHistoryRequests func(contract models.Symbol, d time.Time) []models.HistoryRequest

	// UnderlyingHistoryRequest builds the underlying's own daily TradeBar
	// request, only consulted when NeedsUnderlying is true.
	UnderlyingHistoryRequest func(underlying models.Symbol, d time.Time) models.HistoryRequest

	ChainSource ChainSource
}

// underlyingSecurityType maps an option/future security class to the
// security type its own underlying instrument is quoted under, the same
// mapping chain.LeanStyleParser applies when it fabricates an underlying
// Symbol for a chain whose canonical carries none.
func underlyingSecurityType(st models.SecurityType) models.SecurityType {
	switch st {
	case models.IndexOption:
		return models.Index
	case models.FutureOption, models.Future:
		return models.Future
	default:
		return models.Equity
	}
}

// UnderlyingFor resolves the underlying Symbol for a canonical: the first
// contract's own Underlying pointer if the chain parser populated one, or
// a freshly built Symbol otherwise.
func UnderlyingFor(canonical models.Symbol, contracts []models.Symbol) models.Symbol {
	for _, c := range contracts {
		if c.Underlying != nil {
			return *c.Underlying
		}
	}
	return models.NewUnderlying(canonical.Ticker, underlyingSecurityType(canonical.SecurityType), canonical.Market)
}

// OptionStrategy builds the Strategy for equity/index/future options: an
// archive-scanned chain, OptionEntry rows, and {contract, mirror} history
// requests across Trade/Quote/OpenInterest.
func OptionStrategy(st models.SecurityType, market, archiveRoot string, resolutions []models.Resolution) Strategy {
	return Strategy{
		SecurityType:    st,
		Market:          market,
		NeedsUnderlying: models.NeedsUnderlyingData(st),
		HasGreeks:       models.HasGreeks(st),
		CreateEntry:     func(sym models.Symbol) models.Entry { return models.NewOptionEntry(sym) },
		DerivativeHistoryRequests: func(contract models.Symbol, d time.Time) []models.HistoryRequest {
			return contractHistoryRequests(contract, d, true)
		},
		UnderlyingHistoryRequest: func(underlying models.Symbol, d time.Time) models.HistoryRequest {
			return models.HistoryRequest{Symbol: underlying, StartUTC: d, EndUTC: d, DataType: models.Trade}
		},
		ChainSource: ArchiveChainSource{
			Root: archiveRoot, SecurityType: st, Market: market,
			Resolutions: resolutions, Parser: chain.LeanStyleParser{},
		},
	}
}

// FutureStrategy builds the Strategy for a bare-futures canonical whose
// chain comes from an external Provider: no underlying fetch, no
// Greeks, ContractEntry rows fed by the contract's own Trade/Quote/
// OpenInterest requests (no mirror).
func FutureStrategy(market string, canonical models.Symbol, provider chain.Provider) Strategy {
	return Strategy{
		SecurityType:    models.Future,
		Market:          market,
		NeedsUnderlying: false,
		HasGreeks:       false,
		CreateEntry:     func(sym models.Symbol) models.Entry { return models.NewContractEntry(sym) },
		DerivativeHistoryRequests: func(contract models.Symbol, d time.Time) []models.HistoryRequest {
			return contractHistoryRequests(contract, d, false)
		},
		ChainSource: ProviderChainSource{Canonical: canonical, Provider: provider},
	}
}

// contractHistoryRequests builds the Trade/Quote/OpenInterest requests
// for one contract, plus the same trio for its mirror when withMirror and
// the contract is an option.
func contractHistoryRequests(contract models.Symbol, d time.Time, withMirror bool) []models.HistoryRequest {
	reqs := []models.HistoryRequest{
		{Symbol: contract, StartUTC: d, EndUTC: d, DataType: models.Trade},
		{Symbol: contract, StartUTC: d, EndUTC: d, DataType: models.Quote},
		{Symbol: contract, StartUTC: d, EndUTC: d, DataType: models.OpenInterestData},
	}
	if !withMirror {
		return reqs
	}
	if mirror, ok := contract.Mirror(); ok {
		reqs = append(reqs,
			models.HistoryRequest{Symbol: mirror, StartUTC: d, EndUTC: d, DataType: models.Trade},
			models.HistoryRequest{Symbol: mirror, StartUTC: d, EndUTC: d, DataType: models.Quote},
			models.HistoryRequest{Symbol: mirror, StartUTC: d, EndUTC: d, DataType: models.OpenInterestData},
		)
	}
	return reqs
}
