// Package fields implements the additional fields pass: an independent
// post-pass over already-written option universe files that
// appends a 30-day at-the-money implied volatility plus its trailing
// one-year rank and percentile to every file in one underlying's
// directory.
package fields

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tantralabs/derivuniverse/logger"
	"github.com/tantralabs/derivuniverse/utils"
)

const (
	lookbackDays  = 365
	daysToATM     = 30
	requiredDelta = "delta"
	requiredIV    = "implied_volatility"
	requiredID    = "symbol_id"
)

type universeFile struct {
	path   string
	date   time.Time
	header []string
	cols   map[string]int
	rows   [][]string
}

// Run appends iv_30, iv_rank, and iv_percentile to every "<YYYYMMDD>.csv"
// option universe file directly under dir, using a trailing one-year
// window of files for each day's rank/percentile. Files whose header
// lacks the required columns are left untouched and logged, not treated
// as a fatal error: this pass never blocks the generator run it follows.
func Run(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("fields: read %s: %w", dir, err)
	}

	var files []universeFile
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".csv" {
			continue
		}
		d, err := time.Parse("20060102", strings.TrimSuffix(e.Name(), ".csv"))
		if err != nil {
			continue // not a date-named universe file
		}
		uf, err := readUniverseFile(filepath.Join(dir, e.Name()), d)
		if err != nil {
			logger.Errorf("fields: %s: %v\n", e.Name(), err)
			continue
		}
		files = append(files, uf)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].date.Before(files[j].date) })

	ivCache := make(map[string]float64, len(files))
	haveIV := make(map[string]bool, len(files))

	for i, uf := range files {
		if !hasRequiredColumns(uf.cols) {
			logger.Debugf("fields: %s missing required columns, skipping\n", uf.path)
			continue
		}
		iv30, ok := atmIV30(uf)
		haveIV[uf.path] = ok
		if ok {
			ivCache[uf.path] = iv30
		}

		window := trailingWindow(files, i, lookbackDays)
		ivs := make([]float64, 0, len(window))
		for _, w := range window {
			if v, ok := ivCache[w.path]; ok {
				ivs = append(ivs, v)
			}
		}
		if !ok || len(ivs) == 0 {
			continue
		}

		iv30Str, rankStr, pctStr := rankAndPercentile(ivs)
		if err := rewriteWithFields(uf, iv30Str, rankStr, pctStr); err != nil {
			logger.Errorf("fields: %s: rewrite failed: %v\n", uf.path, err)
		}
	}
	return nil
}

func hasRequiredColumns(cols map[string]int) bool {
	_, hasDelta := cols[requiredDelta]
	_, hasIV := cols[requiredIV]
	_, hasID := cols[requiredID]
	return hasDelta && hasIV && hasID
}

func readUniverseFile(path string, d time.Time) (universeFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return universeFile{}, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	headerLine, err := readHeaderLine(f)
	if err != nil {
		return universeFile{}, err
	}
	header := strings.Split(strings.TrimPrefix(headerLine, "#"), ",")
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	rows, err := r.ReadAll()
	if err != nil {
		return universeFile{}, fmt.Errorf("read rows: %w", err)
	}
	return universeFile{path: path, date: d, header: header, cols: cols, rows: rows}, nil
}

// readHeaderLine consumes exactly the file's first "#..." line, leaving
// the file's cursor positioned at the start of the CSV data for the
// caller's subsequent csv.Reader pass.
func readHeaderLine(f *os.File) (string, error) {
	buf := make([]byte, 0, 256)
	one := make([]byte, 1)
	for {
		n, err := f.Read(one)
		if n == 0 || err != nil {
			return string(buf), err
		}
		if one[0] == '\n' {
			f.Seek(int64(len(buf)+1), 0)
			return string(buf), nil
		}
		buf = append(buf, one[0])
	}
}

// trailingWindow returns files[j] for every j <= i whose date is within
// lookbackDays of files[i].date, inclusive of files[i] itself.
func trailingWindow(files []universeFile, i, lookbackDays int) []universeFile {
	cutoff := files[i].date.AddDate(0, 0, -lookbackDays)
	var out []universeFile
	for j := 0; j <= i; j++ {
		if files[j].date.After(cutoff) || files[j].date.Equal(cutoff) {
			out = append(out, files[j])
		}
	}
	return out
}

// rankAndPercentile computes iv_30 (the latest element), the trailing
// rank ((latest-min)/(max-min)) and percentile (fraction of the window
// strictly below latest), returning empty strings for rank and
// percentile when fewer than two observations are available.
func rankAndPercentile(ivs []float64) (iv30, rank, percentile string) {
	latest := ivs[len(ivs)-1]
	iv30 = formatIV(latest)
	if len(ivs) < 2 {
		return iv30, "", ""
	}

	min, max := utils.MinMax(ivs)
	below := 0
	for _, v := range ivs {
		if v < latest {
			below++
		}
	}

	if max == min {
		rank = "0"
	} else {
		rank = formatIV((latest - min) / (max - min))
	}
	percentile = formatIV(float64(below) / float64(len(ivs)))
	return iv30, rank, percentile
}

func formatIV(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// rewriteWithFields extends uf's header with iv_30,iv_rank,iv_percentile
// and appends the same triple to every data row (the source's literal
// row-broadcast behavior), then writes the file back in place.
func rewriteWithFields(uf universeFile, iv30, rank, percentile string) error {
	f, err := os.Create(uf.path)
	if err != nil {
		return err
	}
	defer f.Close()

	header := append(append([]string{}, uf.header...), "iv_30", "iv_rank", "iv_percentile")
	if _, err := f.WriteString("#" + strings.Join(header, ",") + "\n"); err != nil {
		return err
	}

	w := csv.NewWriter(f)
	extra := []string{iv30, rank, percentile}
	for _, row := range uf.rows {
		w.Write(append(append([]string{}, row...), extra...))
	}
	w.Flush()
	return w.Error()
}
