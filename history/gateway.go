// Package history implements the History Gateway: a resolution-fallback
// ladder over the local archive, falling back further to secondary
// network providers when the archive itself has nothing for a request.
package history

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tantralabs/derivuniverse/logger"
	"github.com/tantralabs/derivuniverse/models"
)

// SecondaryProvider is an online fallback consulted when every resolution
// in the ladder comes back empty for a request, e.g. Polygon for index
// daily bars or InfluxDB for a shop that warehouses OI in a time-series
// database instead of flat files.
type SecondaryProvider interface {
	Fetch(req models.HistoryRequest) ([]models.Slice, error)
}

// Gateway retrieves history for a batch of requests, trying each
// resolution in Ladder in order before falling back to Secondary
// providers.
type Gateway struct {
	Archive   ArchiveReader
	Ladder    []models.Resolution
	Lookback  int
	Secondary []SecondaryProvider
}

// NewGateway builds a Gateway over an archive rooted at root, with the
// default ladder [Daily, Hour, Minute] and a 30-bar lookback window.
func NewGateway(root string, secondary ...SecondaryProvider) Gateway {
	return Gateway{
		Archive:   ArchiveReader{Root: root},
		Ladder:    []models.Resolution{models.Daily, models.Hour, models.Minute},
		Lookback:  30,
		Secondary: secondary,
	}
}

// GetHistory retrieves bars for every request in reqs, trying the ladder
// resolution by resolution and, if nothing is found there, each secondary
// provider in order. A request that produces nothing anywhere yields an
// empty slice for that request rather than an error: partial failures are
// reported by absence, never thrown.
func (g Gateway) GetHistory(reqs []models.HistoryRequest, sliceZone *time.Location) []models.Slice {
	var out []models.Slice
	for _, req := range reqs {
		if req.ID == "" {
			req.ID = uuid.NewString()
		}
		slices := g.getOne(req, sliceZone)
		out = append(out, slices...)
	}
	return mergeSlices(out, sliceZone)
}

func (g Gateway) getOne(req models.HistoryRequest, sliceZone *time.Location) []models.Slice {
	d := req.EndUTC
	if d.IsZero() {
		d = req.StartUTC
	}

	for _, res := range g.Ladder {
		attempt := req
		attempt.Resolution = res
		attempt.StartUTC, attempt.EndUTC = Window(d, res, req.DataType, req.DataZone, g.Lookback)

		slices, err := g.Archive.Read(attempt)
		if err != nil {
			logger.Errorf("history[%s]: archive read at %s failed: %v\n", req.ID, res, err)
			continue
		}
		if len(slices) > 0 {
			return slices
		}
	}

	for _, p := range g.Secondary {
		slices, err := p.Fetch(req)
		if err != nil {
			logger.Errorf("history[%s]: secondary provider failed: %v\n", req.ID, err)
			continue
		}
		if len(slices) > 0 {
			return slices
		}
	}

	return nil
}

// mergeSlices coalesces slices sharing a timestamp (from different
// requests in the same batch) into single Slices, sorted ascending.
func mergeSlices(in []models.Slice, sliceZone *time.Location) []models.Slice {
	if sliceZone == nil {
		sliceZone = time.UTC
	}
	byTime := make(map[int64]*models.Slice, len(in))
	order := make([]int64, 0, len(in))

	for i := range in {
		t := in[i].Time.In(sliceZone).UnixNano()
		if existing, ok := byTime[t]; ok {
			for id, tb := range in[i].TradeBars {
				existing.TradeBars[id] = tb
			}
			for id, qb := range in[i].QuoteBars {
				existing.QuoteBars[id] = qb
			}
			for id, oi := range in[i].OpenInterests {
				existing.OpenInterests[id] = oi
			}
			continue
		}
		s := in[i]
		byTime[t] = &s
		order = append(order, t)
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	out := make([]models.Slice, 0, len(order))
	for _, t := range order {
		out = append(out, *byTime[t])
	}
	return out
}
