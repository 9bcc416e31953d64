package chain

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tantralabs/derivuniverse/models"
)

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestDiscover_OrdersDedupesAndDropsExpired(t *testing.T) {
	root := t.TempDir()
	d := time.Date(2024, 2, 7, 0, 0, 0, 0, time.UTC)

	zipPath := filepath.Join(root, "equityoption", "usa", "minute", "SPY", "20240207_trade.csv.zip")
	writeZip(t, zipPath, map[string]string{
		"SPY.csv":                       "underlying bars",
		"SPY_C_A_4500000_20240315.csv":  "call rows",
		"SPY_C_A_4500000_20240315.csv2": "duplicate-like, different name, rejected by the parser as a bad expiry", // .csv2 unused
		"SPY_P_A_4500000_20240315.csv":  "put rows",
		"SPY_C_A_4000000_20240101.csv":  "expired, before D",
	})

	chains, err := Discover(root, models.EquityOption, "usa", d, []models.Resolution{models.Minute}, LeanStyleParser{})
	require.NoError(t, err)
	require.Len(t, chains, 1)

	c := chains[0]
	assert.Equal(t, "SPY", c.Canonical.Ticker)
	require.Len(t, c.Contracts, 2) // the expired 2024-01-01 contract is dropped

	assert.Equal(t, models.Call, *c.Contracts[0].Right)
	assert.Equal(t, models.Put, *c.Contracts[1].Right)
}

func TestDiscover_MissingRootIsEmptyNotError(t *testing.T) {
	chains, err := Discover(filepath.Join(t.TempDir(), "does-not-exist"), models.Equity, "usa",
		time.Now(), []models.Resolution{models.Minute}, LeanStyleParser{})
	require.NoError(t, err)
	assert.Empty(t, chains)
}

func TestExpiryDictionaryProvider_SkipsExpiredAndOrders(t *testing.T) {
	d := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	canonical := models.NewCanonical("/ES", models.Future, "cfe", nil)
	p := ExpiryDictionaryProvider{
		Market: "cfe",
		Expiries: map[string][]time.Time{
			"/ES": {
				time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), // expired
				time.Date(2024, 9, 20, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC),
			},
		},
	}

	contracts, err := p.Discover(canonical, d)
	require.NoError(t, err)
	require.Len(t, contracts, 2)
	assert.True(t, contracts[0].Expiry.Before(contracts[1].Expiry))
}
