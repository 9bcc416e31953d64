package history

import (
	"time"

	"github.com/tantralabs/derivuniverse/models"
)

// Window computes the [start, end] bounds a HistoryRequest should carry
// for resolution res, given the processing date d and the exchange
// timezone loc. End is D for intraday bars and open interest, D+1 for
// daily trade bars (the daily bar for D closes at midnight the next day);
// start walks back lookback bars using a flat calendar-day approximation
// of the exchange calendar (the real calendar is consulted separately via
// data.MarketHoursDB when deciding whether to run at all).
func Window(d time.Time, res models.Resolution, dt models.DataType, loc *time.Location, lookback int) (start, end time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)

	end = day
	if res == models.Daily && dt == models.Trade {
		end = day.AddDate(0, 0, 1)
	}

	switch res {
	case models.Daily:
		start = end.AddDate(0, 0, -lookback)
	case models.Hour:
		start = end.Add(-time.Duration(lookback) * time.Hour)
	default:
		start = end.Add(-time.Duration(lookback) * time.Minute)
	}
	return start, end
}
