package chain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tantralabs/derivuniverse/models"
)

// EntrySymbolParser decodes one zip entry name into a contract Symbol
// belonging to canonical. It returns ok=false for entries that name the
// underlying's own bar file rather than a derivative contract (a chain's
// zip commonly bundles both).
type EntrySymbolParser interface {
	ParseEntry(zipPath, entryName string, canonical models.Symbol) (contract models.Symbol, ok bool, err error)
}

// LeanStyleParser decodes contract entry names of the form
// "<ticker>_<right>_<style>_<strike*10000>_<expiry:yyyyMMdd>.csv", the
// scaled-strike convention the archive layout's zip/csv naming implies.
// The underlying's own bar file, "<ticker>.csv", is skipped (ok=false).
type LeanStyleParser struct{}

func (LeanStyleParser) ParseEntry(zipPath, entryName string, canonical models.Symbol) (models.Symbol, bool, error) {
	name := strings.TrimSuffix(entryName, ".csv")
	parts := strings.Split(name, "_")
	if len(parts) < 2 {
		return models.Symbol{}, false, nil // underlying's own bar file
	}
	if len(parts) != 5 {
		return models.Symbol{}, false, fmt.Errorf("chain: malformed contract entry %q", entryName)
	}

	ticker, rightRaw, styleRaw, strikeRaw, expiryRaw := parts[0], parts[1], parts[2], parts[3], parts[4]

	var right models.OptionRight
	switch strings.ToUpper(rightRaw) {
	case "C", "CALL":
		right = models.Call
	case "P", "PUT":
		right = models.Put
	default:
		return models.Symbol{}, false, fmt.Errorf("chain: unknown right %q in %q", rightRaw, entryName)
	}

	var style models.OptionStyle
	switch strings.ToUpper(styleRaw) {
	case "A", "AMERICAN":
		style = models.American
	case "E", "EUROPEAN":
		style = models.European
	default:
		return models.Symbol{}, false, fmt.Errorf("chain: unknown style %q in %q", styleRaw, entryName)
	}

	scaledStrike, err := strconv.ParseInt(strikeRaw, 10, 64)
	if err != nil {
		return models.Symbol{}, false, fmt.Errorf("chain: bad strike %q in %q: %w", strikeRaw, entryName, err)
	}
	strike := float64(scaledStrike) / 10000.0

	expiry, err := time.Parse("20060102", expiryRaw)
	if err != nil {
		return models.Symbol{}, false, fmt.Errorf("chain: bad expiry %q in %q: %w", expiryRaw, entryName, err)
	}

	underlying := canonical.Underlying
	if underlying == nil {
		u := models.NewUnderlying(canonical.Ticker, underlyingSecurityType(canonical.SecurityType), canonical.Market)
		underlying = &u
	}

	return models.NewOption(ticker, canonical.SecurityType, canonical.Market, underlying, style, right, strike, expiry), true, nil
}

func underlyingSecurityType(optionType models.SecurityType) models.SecurityType {
	switch optionType {
	case models.IndexOption:
		return models.Index
	case models.FutureOption:
		return models.Future
	default:
		return models.Equity
	}
}
