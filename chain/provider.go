package chain

import (
	"sort"
	"time"

	"github.com/tantralabs/derivuniverse/models"
)

// Provider is the external chain-discovery abstraction for security
// classes whose live contracts are not enumerable from an archive zip
// scan, e.g. CFE VIX futures, where the tradable expiries are governed
// by an exchange listing calendar rather than by which files happen to
// exist on disk.
type Provider interface {
	Discover(canonical models.Symbol, d time.Time) ([]models.Symbol, error)
}

// ExpiryDictionaryProvider builds a futures chain directly from a fixed
// table of listed expiries per canonical root, the Go analogue of the
// source pipeline's FuturesExpiryDictionary lookup: no zip scan, no
// contract symbol parsing, just "which expiries trade on D".
type ExpiryDictionaryProvider struct {
	Market   string
	Expiries map[string][]time.Time // canonical ticker -> listed expiries
}

func (p ExpiryDictionaryProvider) Discover(canonical models.Symbol, d time.Time) ([]models.Symbol, error) {
	all := p.Expiries[canonical.Ticker]
	var live []time.Time
	for _, e := range all {
		if e.After(d) {
			live = append(live, e)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].Before(live[j]) })

	contracts := make([]models.Symbol, 0, len(live))
	for _, e := range live {
		ticker := canonical.Ticker + e.Format("20060102")
		contracts = append(contracts, models.NewFuture(ticker, p.Market, &canonical, e))
	}
	return contracts, nil
}
