package fields

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "symbol_id,symbol_value,open,high,low,close,volume,open_interest,implied_volatility,delta,gamma,vega,theta,rho"

func writeSyntheticFile(t *testing.T, dir string, day time.Time, iv float64) {
	t.Helper()
	expiry := day.AddDate(0, 0, daysToATM)
	symID := fmt.Sprintf("SPY|EquityOption|usa|American|Call|480.0000|%s", expiry.Format("20060102"))

	var b strings.Builder
	b.WriteString("#" + header + "\n")
	fmt.Fprintf(&b, "%s,SPY480C,1,1,1,1,0,10,%s,0.5,0.01,0.2,-0.05,0.1\n", symID, strconv.FormatFloat(iv, 'g', -1, 64))

	path := filepath.Join(dir, day.Format("20060102")+".csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
}

func TestRun_IVRankAndPercentileMonotonicRamp(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	const n = 300
	for i := 0; i < n; i++ {
		iv := 0.10 + float64(i)*(0.30/float64(n-1))
		writeSyntheticFile(t, dir, start.AddDate(0, 0, i), iv)
	}

	require.NoError(t, Run(dir))

	targetDate := start.AddDate(0, 0, 252) // the 253rd file, 0-indexed 252
	path := filepath.Join(dir, targetDate.Format("20060102")+".csv")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "#"))
	assert.Contains(t, lines[0], "iv_30,iv_rank,iv_percentile")

	cols := strings.Split(lines[1], ",")
	rank, err := strconv.ParseFloat(cols[len(cols)-2], 64)
	require.NoError(t, err)
	percentile, err := strconv.ParseFloat(cols[len(cols)-1], 64)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, rank, 1e-9)
	assert.InDelta(t, 252.0/253.0, percentile, 1e-9)
}

func TestRun_TooFewObservationsLeavesRankEmpty(t *testing.T) {
	dir := t.TempDir()
	writeSyntheticFile(t, dir, time.Date(2024, 2, 7, 0, 0, 0, 0, time.UTC), 0.30)

	require.NoError(t, Run(dir))

	path := filepath.Join(dir, "20240207.csv")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	cols := strings.Split(lines[1], ",")
	assert.Equal(t, "", cols[len(cols)-2])
	assert.Equal(t, "", cols[len(cols)-1])
	assert.NotEqual(t, "", cols[len(cols)-3]) // iv_30 itself is still populated
}

func TestRun_SkipsFileMissingRequiredColumns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "20240101.csv")
	content := "#symbol_id,symbol_value,open,high,low,close,volume\nSPY|Equity|usa,SPY,1,1,1,1,0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	require.NoError(t, Run(dir))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(data)) // untouched: no delta/IV columns to work with
}

func TestExpiryFromSymbolID(t *testing.T) {
	d, ok := expiryFromSymbolID("SPY|EquityOption|usa|American|Call|480.0000|20240315")
	require.True(t, ok)
	assert.Equal(t, "20240315", d.Format("20060102"))

	_, ok = expiryFromSymbolID("SPY|Equity|usa")
	assert.False(t, ok)
}
