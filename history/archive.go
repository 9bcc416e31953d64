package history

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/tantralabs/derivuniverse/models"
)

// archiveRow is the fixed shape of one contract-day CSV row inside an
// archive zip: a struct gocsv's UnmarshalBytes decodes directly, used
// here for reading rather than for the dynamic, optionally-columned
// universe file (see universefile's package doc for why that one is
// hand-rolled instead).
type archiveRow struct {
	Time         string  `csv:"time"`
	Open         float64 `csv:"open"`
	High         float64 `csv:"high"`
	Low          float64 `csv:"low"`
	Close        float64 `csv:"close"`
	Volume       float64 `csv:"volume"`
	Bid          float64 `csv:"bid"`
	Ask          float64 `csv:"ask"`
	OpenInterest float64 `csv:"open_interest"`
}

// ArchiveReader reads bars for one contract directly out of the zip
// archive layout chain.Discover scans, filtered to a request's window and
// data type.
type ArchiveReader struct {
	Root string
}

// Read locates the zip(s) for req's symbol/resolution under Root and
// returns every bar in [req.StartUTC, req.EndUTC) as Slices, one per
// distinct timestamp. A missing zip or entry yields an empty, non-error
// result: the ladder in Gateway.GetHistory treats that as "try the next
// resolution", not as a fatal error.
func (a ArchiveReader) Read(req models.HistoryRequest) ([]models.Slice, error) {
	sym := req.Symbol
	root := sym.Underlying
	ticker := sym.Ticker
	securityType := sym.SecurityType
	market := sym.Market
	if sym.HasOptionFields() && root != nil {
		// contract archives live under the canonical's own ticker directory
		ticker = root.Ticker
	}

	dir := filepath.Join(a.Root, strings.ToLower(securityType.String()), market, req.Resolution.String(), ticker)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("history: read %s: %w", dir, err)
	}

	var out []models.Slice
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".zip" {
			continue
		}
		slices, err := a.readZip(filepath.Join(dir, e.Name()), req)
		if err != nil {
			return nil, err
		}
		out = append(out, slices...)
	}
	return out, nil
}

func (a ArchiveReader) readZip(path string, req models.HistoryRequest) ([]models.Slice, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil // transient IO: swallow and let the ladder move on
	}
	defer r.Close()

	entryName := entryFileName(req.Symbol)
	for _, f := range r.File {
		if f.Name != entryName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, nil
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, nil
		}

		var rows []archiveRow
		if err := gocsv.UnmarshalBytes(body, &rows); err != nil {
			return nil, nil
		}
		return rowsToSlices(rows, req)
	}
	return nil, nil
}

func entryFileName(sym models.Symbol) string {
	if !sym.HasOptionFields() {
		return sym.Ticker + ".csv"
	}
	return fmt.Sprintf("%s_%s_%s_%d_%s.csv",
		sym.Ticker, rightCode(sym), styleCode(sym), int64(sym.Strike*10000), sym.Expiry.Format("20060102"))
}

func rightCode(sym models.Symbol) string {
	if sym.Right == nil {
		return "C"
	}
	if *sym.Right == models.Put {
		return "P"
	}
	return "C"
}

func styleCode(sym models.Symbol) string {
	if sym.Style != nil && *sym.Style == models.European {
		return "E"
	}
	return "A"
}

func rowsToSlices(rows []archiveRow, req models.HistoryRequest) ([]models.Slice, error) {
	loc := req.DataZone
	if loc == nil {
		loc = time.UTC
	}

	var out []models.Slice
	for _, row := range rows {
		t, err := time.ParseInLocation("2006-01-02 15:04:05", row.Time, loc)
		if err != nil {
			continue // malformed row, skip rather than fail the whole read
		}
		if t.Before(req.StartUTC) || !t.Before(req.EndUTC) {
			continue
		}

		s := models.NewSlice(t)
		id := req.Symbol.ID()
		switch req.DataType {
		case models.Trade:
			s.TradeBars[id] = models.TradeBar{
				Symbol: req.Symbol, EndTime: t,
				Open: row.Open, High: row.High, Low: row.Low, Close: row.Close, Volume: row.Volume,
			}
		case models.Quote:
			s.QuoteBars[id] = models.QuoteBar{
				Symbol: req.Symbol, EndTime: t,
				Open: row.Open, High: row.High, Low: row.Low, Close: row.Close,
				Bid: row.Bid, Ask: row.Ask,
			}
		case models.OpenInterestData:
			s.OpenInterests[id] = models.OpenInterest{Symbol: req.Symbol, EndTime: t, Value: row.OpenInterest}
		}
		out = append(out, s)
	}
	return out, nil
}
