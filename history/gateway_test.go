package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tantralabs/derivuniverse/models"
)

type stubProvider struct {
	slices []models.Slice
	err    error
	calls  int
}

func (s *stubProvider) Fetch(req models.HistoryRequest) ([]models.Slice, error) {
	s.calls++
	return s.slices, s.err
}

func TestGetHistory_FallsBackToSecondaryWhenArchiveEmpty(t *testing.T) {
	root := t.TempDir() // no zips at all: every ladder rung is empty
	sym := models.NewUnderlying("SPY", models.Equity, "usa")
	stub := &stubProvider{slices: []models.Slice{models.NewSlice(time.Now())}}

	g := NewGateway(root, stub)
	out := g.GetHistory([]models.HistoryRequest{{
		Symbol: sym, DataType: models.Trade, EndUTC: time.Now(),
	}}, time.UTC)

	assert.Equal(t, 1, stub.calls)
	assert.Len(t, out, 1)
}

func TestGetHistory_EmptyEverywhereReturnsEmptyNotError(t *testing.T) {
	root := t.TempDir()
	sym := models.NewUnderlying("SPY", models.Equity, "usa")
	g := NewGateway(root)

	out := g.GetHistory([]models.HistoryRequest{{
		Symbol: sym, DataType: models.Trade, EndUTC: time.Now(),
	}}, time.UTC)
	assert.Empty(t, out)
}

func TestWindow_DailyTradeEndsAtDPlusOne(t *testing.T) {
	d := time.Date(2024, 2, 7, 0, 0, 0, 0, time.UTC)
	start, end := Window(d, models.Daily, models.Trade, time.UTC, 5)
	require.Equal(t, time.Date(2024, 2, 8, 0, 0, 0, 0, time.UTC), end)
	require.Equal(t, time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), start)
}

func TestWindow_IntradayEndsAtD(t *testing.T) {
	d := time.Date(2024, 2, 7, 0, 0, 0, 0, time.UTC)
	_, end := Window(d, models.Minute, models.Quote, time.UTC, 30)
	require.Equal(t, d, end)
}
