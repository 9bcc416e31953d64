// Package universefile builds the output path pattern for a universe CSV
// and renders its rows: a single "#"-commented header line followed by
// one line per emitted Entry, using encoding/csv for correct quoting.
//
// gocsv (see the pack's own gocsv usage in stats.go/src/Backtester) fits a
// fixed struct-to-columns mapping; this file's header is a runtime-composed
// column set (base, +contract, +option, +additional-fields) behind a
// leading "#" comment marker gocsv has no notion of, so row emission is
// hand-rolled here with the standard library's encoding/csv writer and
// gocsv is reserved for the fixed-shape archive-CSV reads in package history.
package universefile

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tantralabs/derivuniverse/models"
)

// Schema declares which optional column groups a universe file carries,
// determined once per canonical from its SecurityType.
type Schema struct {
	HasContract bool
	HasOption   bool
}

// SchemaFor derives the Schema for a security type.
func SchemaFor(st models.SecurityType) Schema {
	return Schema{
		HasContract: st != models.Equity && st != models.Index,
		HasOption:   models.IsOption(st),
	}
}

// Header returns the ordered column names for a Schema, excluding the
// leading "#" marker (added by the writer).
func (s Schema) Header() []string {
	h := append([]string{}, models.BaseHeader...)
	if s.HasContract {
		h = append(h, models.ContractHeader...)
	}
	if s.HasOption {
		h = append(h, models.OptionHeader...)
	}
	return h
}

// Width is the column count every data line must match.
func (s Schema) Width() int { return len(s.Header()) }

// OutputPath builds "<out>/<sec-type>/<market>/universes/<underlyingKey>/<YYYYMMDD>.csv".
func OutputPath(outRoot string, st models.SecurityType, market, underlyingKey string, d time.Time) string {
	return filepath.Join(outRoot, securityTypeSegment(st), strings.ToLower(market), "universes",
		underlyingKey, d.Format("20060102")+".csv")
}

func securityTypeSegment(st models.SecurityType) string {
	switch st {
	case models.Equity, models.EquityOption:
		return "equity"
	case models.Index, models.IndexOption:
		return "index"
	case models.Future, models.FutureOption:
		return "future"
	default:
		return strings.ToLower(st.String())
	}
}

// UnderlyingKey computes the directory segment naming an underlying's
// universe files: lower-cased equity/index ticker, or
// "<future-root>/<expiry-yyyymmdd>" for future options.
func UnderlyingKey(canonical models.Symbol, futureExpiry *time.Time) string {
	if canonical.SecurityType == models.FutureOption && futureExpiry != nil {
		root := canonical.Ticker
		if canonical.Underlying != nil {
			root = canonical.Underlying.Ticker
		}
		return strings.ToLower(root) + "/" + futureExpiry.Format("20060102")
	}
	return strings.ToLower(canonical.Ticker)
}

// Writer accumulates Entry rows for one canonical and flushes them to disk
// exactly once in Close, so an IV-repair pass can rewrite rows in memory
// before anything touches the filesystem. That gives a single, unambiguous
// point where the file becomes durable, which is what byte-identical
// reruns need in practice.
type Writer struct {
	path   string
	schema Schema
	rows   [][]string
}

// NewWriter prepares a Writer for path under schema. It does not touch the
// filesystem until Close.
func NewWriter(path string, schema Schema) *Writer {
	return &Writer{path: path, schema: schema}
}

// WriteRow appends a row, padding or truncating to the schema's width so
// every emitted line has exactly Width() columns.
func (w *Writer) WriteRow(row []string) {
	fitted := make([]string, w.schema.Width())
	copy(fitted, row)
	w.rows = append(w.rows, fitted)
}

// Rows exposes the buffered rows for in-place repair.
func (w *Writer) Rows() [][]string { return w.rows }

// ReplaceRow overwrites row i, used after an IV repair recomputes a
// contract's line.
func (w *Writer) ReplaceRow(i int, row []string) {
	if i < 0 || i >= len(w.rows) {
		return
	}
	fitted := make([]string, w.schema.Width())
	copy(fitted, row)
	w.rows[i] = fitted
}

// Close writes the "#"-commented header and every buffered row to path,
// creating parent directories as needed.
func (w *Writer) Close() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("universefile: mkdir: %w", err)
	}
	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("universefile: create: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString("#" + strings.Join(w.schema.Header(), ",") + "\n"); err != nil {
		return fmt.Errorf("universefile: write header: %w", err)
	}

	cw := csv.NewWriter(f)
	for _, row := range w.rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("universefile: write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
