package orchestrator

import (
	"sync/atomic"
	"time"

	"github.com/tantralabs/derivuniverse/logger"
)

// Tracker holds the run's shared atomic counters (symbol_counter,
// underlyings_with_missing_data, force_eta_update) and logs an ETA line
// every N processed contracts, safe to call concurrently from every
// canonical's goroutine.
type Tracker struct {
	total       int64
	done        int64
	missing     int64
	forceUpdate int32
	everyN      int64
	start       time.Time
}

// NewTracker starts a Tracker against an expected total contract count
// (best-effort; only used for the eta estimate, never for correctness)
// and a reporting cadence of everyN processed contracts.
func NewTracker(total, everyN int) *Tracker {
	return &Tracker{total: int64(total), everyN: int64(everyN), start: time.Now()}
}

// IncMissingData records one canonical skipped for missing underlying
// history.
func (t *Tracker) IncMissingData() { atomic.AddInt64(&t.missing, 1) }

// MissingDataCount reports underlyings_with_missing_data.
func (t *Tracker) MissingDataCount() int64 { return atomic.LoadInt64(&t.missing) }

// ForceUpdate requests an ETA line on the very next RecordContract call
// regardless of the everyN cadence, e.g. right after a canonical finishes.
func (t *Tracker) ForceUpdate() { atomic.StoreInt32(&t.forceUpdate, 1) }

// RecordContract increments symbol_counter and logs progress every everyN
// contracts, or immediately if ForceUpdate was called since the last report.
func (t *Tracker) RecordContract() {
	done := atomic.AddInt64(&t.done, 1)
	forced := atomic.SwapInt32(&t.forceUpdate, 0) == 1
	if forced || (t.everyN > 0 && done%t.everyN == 0) {
		t.report(done)
	}
}

func (t *Tracker) report(done int64) {
	elapsed := time.Since(t.start)
	total := atomic.LoadInt64(&t.total)

	var eta time.Duration
	if done > 0 && total > done {
		eta = time.Duration(float64(total-done) / float64(done) * float64(elapsed))
	}
	logger.Infof("progress: done=%d total=%d elapsed=%s eta=%s missing=%d\n",
		done, total, elapsed.Round(time.Second), eta.Round(time.Second), t.MissingDataCount())
}
