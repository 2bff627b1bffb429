// Package dataset implements the local working copy of the published OHLCV
// dataset: CSV loading with timestamp coercion, merging of freshly fetched
// bars with published rows winning timestamp conflicts, and the full rewrite
// performed at the end of every run.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/mczielinski/kaggle-bitcoin/internal/models"
)

// csvHeader is the column order of the published CSV.
var csvHeader = []string{"Timestamp", "Open", "High", "Low", "Close", "Volume"}

// Dataset is the in-memory working copy of the published CSV. Bars are held
// in ascending timestamp order with at most one bar per minute bucket once
// Merge has run.
type Dataset struct {
	// Path is the CSV file the dataset was loaded from and is rewritten to
	Path string

	// Bars holds the dataset rows in ascending timestamp order
	Bars []models.Bar

	// DroppedRows counts rows discarded at load time for unusable timestamps
	DroppedRows int

	logger *slog.Logger
}

// Load reads the dataset CSV at path. Rows whose timestamp cannot be coerced
// to a positive Unix time are dropped and counted rather than propagated; a
// missing file, empty file, or unexpected header is a fatal error because
// there is nothing safe to merge against.
func Load(path string, logger *slog.Logger) (*Dataset, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.ReuseRecord = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("dataset file %s is empty", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset header: %w", err)
	}
	if err := validateHeader(header); err != nil {
		return nil, fmt.Errorf("dataset file %s: %w", path, err)
	}

	d := &Dataset{Path: path, logger: logger}

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read dataset row: %w", err)
		}
		if len(record) != len(csvHeader) {
			d.DroppedRows++
			continue
		}

		ts, ok := coerceTimestamp(record[0])
		if !ok {
			d.DroppedRows++
			logger.Debug("dropping row with unusable timestamp", "raw", record[0])
			continue
		}

		d.Bars = append(d.Bars, models.Bar{
			Timestamp: ts,
			Open:      record[1],
			High:      record[2],
			Low:       record[3],
			Close:     record[4],
			Volume:    record[5],
		})
	}

	if d.DroppedRows > 0 {
		logger.Warn("dropped dataset rows with unusable timestamps",
			"dropped", d.DroppedRows,
			"kept", len(d.Bars))
	}

	// Published data is expected to arrive sorted; guard anyway so every
	// downstream consumer can rely on the order.
	if !sort.SliceIsSorted(d.Bars, func(i, j int) bool { return d.Bars[i].Timestamp < d.Bars[j].Timestamp }) {
		sort.Slice(d.Bars, func(i, j int) bool { return d.Bars[i].Timestamp < d.Bars[j].Timestamp })
	}

	return d, nil
}

// validateHeader checks the CSV header matches the published column layout.
func validateHeader(header []string) error {
	if len(header) != len(csvHeader) {
		return fmt.Errorf("unexpected header %v, want %v", header, csvHeader)
	}
	for i, name := range header {
		if i == 0 {
			// Tolerate a UTF-8 BOM on the first cell.
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if name != csvHeader[i] {
			return fmt.Errorf("unexpected header column %q at position %d, want %q", name, i, csvHeader[i])
		}
	}
	return nil
}

// coerceTimestamp parses a CSV timestamp cell into Unix seconds. Historical
// versions of the dataset carried float-typed timestamps, so an integer parse
// falls back to a float parse before the row is given up on.
func coerceTimestamp(raw string) (int64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		if v <= 0 {
			return 0, false
		}
		return v, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		v := int64(f)
		if v <= 0 {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

// LastTimestamp returns the dataset's newest bar timestamp. The second
// return value is false when the dataset has no rows.
func (d *Dataset) LastTimestamp() (int64, bool) {
	if len(d.Bars) == 0 {
		return 0, false
	}
	return d.Bars[len(d.Bars)-1].Timestamp, true
}

// Merge combines the dataset rows with freshly fetched bars: existing rows
// first, then fetched bars in arrival order, deduplicated keeping the first
// occurrence per timestamp so the published bar always wins a conflict, then
// sorted ascending. Merge is idempotent and returns the number of timestamps
// added to the dataset. When nothing was fetched the rows are left exactly
// as loaded, so the subsequent rewrite reproduces the file unchanged.
func (d *Dataset) Merge(fetched []models.Bar) int {
	if len(fetched) == 0 {
		return 0
	}

	existing := make(map[int64]struct{}, len(d.Bars))
	for _, b := range d.Bars {
		existing[b.Timestamp] = struct{}{}
	}

	combined := make([]models.Bar, 0, len(d.Bars)+len(fetched))
	combined = append(combined, d.Bars...)
	combined = append(combined, fetched...)

	seen := make(map[int64]struct{}, len(combined))
	merged := make([]models.Bar, 0, len(combined))
	added := 0
	for _, b := range combined {
		if _, dup := seen[b.Timestamp]; dup {
			continue
		}
		seen[b.Timestamp] = struct{}{}
		if _, had := existing[b.Timestamp]; !had {
			added++
		}
		merged = append(merged, b)
	}

	if !sort.SliceIsSorted(merged, func(i, j int) bool { return merged[i].Timestamp < merged[j].Timestamp }) {
		sort.Slice(merged, func(i, j int) bool { return merged[i].Timestamp < merged[j].Timestamp })
	}

	d.Bars = merged
	return added
}

// WriteCSV rewrites the full dataset to its path. The file is written to a
// temporary sibling and renamed into place so a failed run never leaves a
// truncated dataset behind. WriteCSV runs unconditionally at the end of a
// sync, even when no new rows were added.
func (d *Dataset) WriteCSV() error {
	dir := filepath.Dir(d.Path)
	tmp, err := os.CreateTemp(dir, filepath.Base(d.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary dataset file: %w", err)
	}
	tmpName := tmp.Name()

	w := csv.NewWriter(tmp)
	writeErr := w.Write(csvHeader)
	if writeErr == nil {
		record := make([]string, len(csvHeader))
		for _, b := range d.Bars {
			record[0] = strconv.FormatInt(b.Timestamp, 10)
			record[1] = b.Open
			record[2] = b.High
			record[3] = b.Low
			record[4] = b.Close
			record[5] = b.Volume
			if writeErr = w.Write(record); writeErr != nil {
				break
			}
		}
	}
	if writeErr == nil {
		w.Flush()
		writeErr = w.Error()
	}
	if closeErr := tmp.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write dataset file: %w", writeErr)
	}

	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set dataset file permissions: %w", err)
	}
	if err := os.Rename(tmpName, d.Path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace dataset file: %w", err)
	}

	return nil
}

// MissingInRange counts minute buckets inside the half-open range that have
// no bar after a merge, along with the first and last missing bucket. The
// walk starts on the grid anchored at the range start.
func (d *Dataset) MissingInRange(r models.TimeRange) (count int, first, last int64) {
	i := sort.Search(len(d.Bars), func(i int) bool { return d.Bars[i].Timestamp >= r.Start })
	present := make(map[int64]struct{}, r.Bars())
	for ; i < len(d.Bars) && d.Bars[i].Timestamp < r.End; i++ {
		present[d.Bars[i].Timestamp] = struct{}{}
	}

	for t := r.Start; t < r.End; t += models.BarIntervalSeconds {
		if _, ok := present[t]; ok {
			continue
		}
		if count == 0 {
			first = t
		}
		last = t
		count++
	}
	return count, first, last
}
