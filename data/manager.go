package data

import (
	"sort"

	"github.com/tantralabs/derivuniverse/models"
)

// MergeByTimestamp merges two chronologically sorted Slice streams (for
// example a canonical's own quote/trade stream and its underlying's) into
// one stream ordered by time. A timestamp present in only one input still
// produces an output Slice; the other stream simply contributes nothing at
// that instant.
func MergeByTimestamp(a, b []models.Slice) []models.Slice {
	byTime := make(map[int64]*models.Slice, len(a)+len(b))
	order := make([]int64, 0, len(a)+len(b))

	take := func(in []models.Slice) {
		for i := range in {
			t := in[i].Time.UnixNano()
			existing, ok := byTime[t]
			if !ok {
				s := in[i]
				byTime[t] = &s
				order = append(order, t)
				continue
			}
			mergeInto(existing, &in[i])
		}
	}
	take(a)
	take(b)

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	out := make([]models.Slice, 0, len(order))
	for _, t := range order {
		out = append(out, *byTime[t])
	}
	return out
}

// mergeInto copies src's per-symbol bars into dst, favoring dst's entry on
// a colliding symbol id (the earlier-taken stream, MergeByTimestamp's a,
// keeps priority).
func mergeInto(dst, src *models.Slice) {
	for id, bar := range src.TradeBars {
		if _, ok := dst.TradeBars[id]; !ok {
			dst.TradeBars[id] = bar
		}
	}
	for id, bar := range src.QuoteBars {
		if _, ok := dst.QuoteBars[id]; !ok {
			dst.QuoteBars[id] = bar
		}
	}
	for id, oi := range src.OpenInterests {
		if _, ok := dst.OpenInterests[id]; !ok {
			dst.OpenInterests[id] = oi
		}
	}
}
