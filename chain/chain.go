// Package chain enumerates, for a processing date and security class, the
// set of canonical underlyings present in the data archive and the live
// contracts belonging to each. The archive is a date-partitioned tree of
// zip files, organized as a resolution/ticker/day hierarchy of
// per-contract archives.
package chain

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tantralabs/derivuniverse/logger"
	"github.com/tantralabs/derivuniverse/models"
)

// Chain is one canonical underlying's discovered contract list, ordered
// by (right, strike, expiry, full identifier) with duplicates removed.
type Chain struct {
	Canonical models.Symbol
	Contracts []models.Symbol
}

// Discover scans root for every canonical underlying of security type st
// in market with a live chain on d, trying resolutions from finest to
// coarsest (whatever order they are passed in) and keeping the
// finest-resolution result found per canonical. A missing root directory
// is not an error: it yields an empty result.
func Discover(root string, st models.SecurityType, market string, d time.Time, resolutions []models.Resolution, parser EntrySymbolParser) ([]Chain, error) {
	found := make(map[string]*Chain)
	resolved := make(map[string]bool)

	ordered := append([]models.Resolution(nil), resolutions...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] > ordered[j] }) // Minute > Hour > Daily

	for _, res := range ordered {
		resDir := filepath.Join(root, strings.ToLower(st.String()), market, res.String())
		tickerDirs, err := os.ReadDir(resDir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("chain: read %s: %w", resDir, err)
		}

		for _, td := range tickerDirs {
			if !td.IsDir() {
				continue
			}
			ticker := td.Name()
			if resolved[ticker] {
				continue // a finer resolution already produced this canonical's chain
			}

			tickerDir := filepath.Join(resDir, ticker)
			zips, err := matchingZips(tickerDir, res, d)
			if err != nil {
				logger.Errorf("chain: list zips in %s: %v\n", tickerDir, err)
				continue
			}
			if len(zips) == 0 {
				continue
			}

			canonical := models.NewCanonical(ticker, st, market, nil)
			contracts, err := scanZips(zips, canonical, parser)
			if err != nil {
				logger.Errorf("chain: scan %s: %v\n", tickerDir, err)
				continue
			}
			if len(contracts) == 0 {
				continue
			}

			contracts = dedupeAndSort(contracts, d)
			found[ticker] = &Chain{Canonical: canonical, Contracts: contracts}
			resolved[ticker] = true
		}
	}

	out := make([]Chain, 0, len(found))
	for _, c := range found {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Canonical.Ticker < out[j].Canonical.Ticker })
	return out, nil
}

// matchingZips returns the zip files in tickerDir that could contain
// contract days for d, filtered by the resolution's file naming
// convention: minute/hour zips embed the exact day, daily zips bundle a
// whole year.
func matchingZips(tickerDir string, res models.Resolution, d time.Time) ([]string, error) {
	entries, err := os.ReadDir(tickerDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var want string
	switch res {
	case models.Daily:
		want = d.Format("2006")
	default:
		want = d.Format("20060102")
	}

	var zips []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".zip" {
			continue
		}
		if strings.HasPrefix(e.Name(), want) {
			zips = append(zips, filepath.Join(tickerDir, e.Name()))
		}
	}
	return zips, nil
}

// scanZips opens each zip and parses every entry into a contract Symbol.
// A zip that fails to open, or an entry name the parser rejects, is
// logged and skipped rather than aborting the whole canonical.
func scanZips(zips []string, canonical models.Symbol, parser EntrySymbolParser) ([]models.Symbol, error) {
	var contracts []models.Symbol
	for _, path := range zips {
		r, err := zip.OpenReader(path)
		if err != nil {
			logger.Errorf("chain: open zip %s: %v\n", path, err)
			continue
		}
		for _, f := range r.File {
			sym, ok, err := parser.ParseEntry(path, f.Name, canonical)
			if err != nil {
				logger.Errorf("chain: parse entry %s in %s: %v\n", f.Name, path, err)
				continue
			}
			if ok {
				contracts = append(contracts, sym)
			}
		}
		r.Close()
	}
	return contracts, nil
}

// dedupeAndSort removes duplicate contracts and expired ones (expiry <=
// d for security types that carry an expiry), then orders the survivors
// by (right, strike, expiry, full identifier).
func dedupeAndSort(contracts []models.Symbol, d time.Time) []models.Symbol {
	seen := make(map[string]bool, len(contracts))
	out := make([]models.Symbol, 0, len(contracts))
	for _, c := range contracts {
		if !c.Expiry.IsZero() && !c.Expiry.After(d) {
			continue
		}
		id := c.ID()
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Right != nil && b.Right != nil && *a.Right != *b.Right {
			return *a.Right < *b.Right
		}
		if a.Strike != b.Strike {
			return a.Strike < b.Strike
		}
		if !a.Expiry.Equal(b.Expiry) {
			return a.Expiry.Before(b.Expiry)
		}
		return a.ID() < b.ID()
	})
	return out
}
