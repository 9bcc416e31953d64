package fields

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// expiryFromSymbolID extracts the expiry embedded in a models.Symbol.ID()
// string for an option contract ("Ticker|SecType|Market|Style|Right|
// Strike|YYYYMMDD"); ok is false for the underlying's own row, whose ID
// carries no option fields.
func expiryFromSymbolID(id string) (time.Time, bool) {
	parts := strings.Split(id, "|")
	if len(parts) != 7 {
		return time.Time{}, false
	}
	d, err := time.Parse("20060102", parts[6])
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

type expiryGroup struct {
	expiry time.Time
	rows   []int // row indices into uf.rows
}

// atmIV30 computes one universe file's 30-day at-the-money implied
// volatility: linear interpolation, weighted by calendar distance to
// D+30, between the ATM implied vols of the two expiries bracketing
// D+30, where "ATM" within an expiry means the contract whose
// |delta - 0.5| is smallest. ok is false when the file carries no usable
// option rows at all.
func atmIV30(uf universeFile) (float64, bool) {
	idCol, ivCol, deltaCol := uf.cols[requiredID], uf.cols[requiredIV], uf.cols[requiredDelta]

	groups := map[string]*expiryGroup{}
	for i, row := range uf.rows {
		if idCol >= len(row) {
			continue
		}
		expiry, ok := expiryFromSymbolID(row[idCol])
		if !ok {
			continue // underlying's own row
		}
		key := expiry.Format("20060102")
		g, ok := groups[key]
		if !ok {
			g = &expiryGroup{expiry: expiry}
			groups[key] = g
		}
		g.rows = append(g.rows, i)
	}
	if len(groups) == 0 {
		return 0, false
	}

	sorted := make([]*expiryGroup, 0, len(groups))
	for _, g := range groups {
		sorted = append(sorted, g)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].expiry.Before(sorted[j].expiry) })

	target := uf.date.AddDate(0, 0, daysToATM)
	near, far := bracketExpiries(sorted, target)
	if near == nil {
		return 0, false
	}

	nearIV, ok := atmIVForGroup(uf, near, ivCol, deltaCol)
	if !ok {
		return 0, false
	}
	if far == nil || far == near {
		return nearIV, true
	}
	farIV, ok := atmIVForGroup(uf, far, ivCol, deltaCol)
	if !ok {
		return nearIV, true
	}

	nearDays := target.Sub(near.expiry).Hours() / 24
	farDays := far.expiry.Sub(target).Hours() / 24
	span := far.expiry.Sub(near.expiry).Hours() / 24
	if span == 0 {
		return nearIV, true
	}
	wNear := farDays / span
	wFar := nearDays / span
	return wNear*nearIV + wFar*farIV, true
}

// bracketExpiries returns the expiry group immediately before target
// (near) and the one immediately after (far). An expiry equal to target
// is returned as both near and far; when target precedes every expiry,
// near is the first group and far is nil; when target falls beyond the
// last expiry, near is the last group and far is nil. sorted must be
// non-empty.
func bracketExpiries(sorted []*expiryGroup, target time.Time) (near, far *expiryGroup) {
	for i, g := range sorted {
		if !g.expiry.Before(target) {
			if g.expiry.Equal(target) {
				return g, g
			}
			if i == 0 {
				return g, nil
			}
			return sorted[i-1], g
		}
	}
	return sorted[len(sorted)-1], nil
}

// atmIVForGroup returns the implied volatility of the row in g whose
// |delta - 0.5| is smallest, skipping rows with a blank IV or delta.
func atmIVForGroup(uf universeFile, g *expiryGroup, ivCol, deltaCol int) (float64, bool) {
	best := math.Inf(1)
	bestIV := 0.0
	found := false

	for _, i := range g.rows {
		row := uf.rows[i]
		if ivCol >= len(row) || deltaCol >= len(row) {
			continue
		}
		ivStr, deltaStr := strings.TrimSpace(row[ivCol]), strings.TrimSpace(row[deltaCol])
		if ivStr == "" || deltaStr == "" {
			continue
		}
		iv, err := strconv.ParseFloat(ivStr, 64)
		if err != nil {
			continue
		}
		delta, err := strconv.ParseFloat(deltaStr, 64)
		if err != nil {
			continue
		}
		dist := math.Abs(delta - 0.5)
		if dist < best {
			best, bestIV, found = dist, iv, true
		}
	}
	return bestIV, found
}
