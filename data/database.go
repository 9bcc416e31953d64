// Package data owns the process-wide, read-only shared resources the
// concurrency model needs: the market-hours calendar, loaded once and
// never mutated afterward, so every parallel per-canonical task can read
// it without locking.
package data

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/tantralabs/derivuniverse/logger"
)

// MarketHours is one exchange calendar's daily open/close state, loaded
// via sqlx.Open("postgres", ...) + db.Select into a struct slice.
type MarketHours struct {
	Market    string    `db:"market"`
	Date      time.Time `db:"date"`
	IsOpen    bool      `db:"is_open"`
	OpenTime  time.Time `db:"open_time"`
	CloseTime time.Time `db:"close_time"`
}

// Calendar is the orchestrator's view of a market-hours calendar, satisfied
// by *MarketHoursDB; a narrow interface lets tests substitute a canned
// calendar without a Postgres connection.
type Calendar interface {
	IsOpen(market string, d time.Time) bool
}

// MarketHoursDB is the read-only shared calendar the orchestrator needs:
// initialized once per process from Postgres, then consulted concurrently
// by every canonical's task without further I/O or locking.
type MarketHoursDB struct {
	byKey map[string]MarketHours
}

func key(market string, d time.Time) string {
	return market + "|" + d.Format("20060102")
}

// LoadMarketHoursDB connects to psqlInfo and loads every calendar row in
// [from, to] for market.
func LoadMarketHoursDB(psqlInfo, market string, from, to time.Time) (*MarketHoursDB, error) {
	db, err := sqlx.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("data: open market hours db: %w", err)
	}
	defer db.Close()

	var rows []MarketHours
	q := `select market, date, is_open, open_time, close_time from market_hours
	      where market = $1 and date >= $2 and date <= $3`
	if err := db.Select(&rows, q, market, from, to); err != nil {
		return nil, fmt.Errorf("data: select market hours: %w", err)
	}

	mh := &MarketHoursDB{byKey: make(map[string]MarketHours, len(rows))}
	for _, r := range rows {
		mh.byKey[key(r.Market, r.Date)] = r
	}
	logger.Infof("Loaded %d market-hours rows for %s\n", len(rows), market)
	return mh, nil
}

// IsOpen reports whether market traded on d. A calendar with no row for d
// is treated as closed: a market never explicitly marked open is not
// assumed to be open, the safer default for a batch pipeline that skips
// canonicals on closed days.
func (mh *MarketHoursDB) IsOpen(market string, d time.Time) bool {
	if mh == nil {
		return true
	}
	row, ok := mh.byKey[key(market, d)]
	return ok && row.IsOpen
}

// NoopMarketHoursDB reports every day as open, used when no calendar
// database is configured; all of its config keys are optional.
func NoopMarketHoursDB() *MarketHoursDB { return nil }
