package dataset

import (
	"fmt"
	"log/slog"

	"github.com/parquet-go/parquet-go"

	"github.com/mczielinski/kaggle-bitcoin/internal/models"
)

// parquetBar is the row shape of the parquet mirror. Analytics consumers of
// the published dataset get typed numeric columns instead of decimal text.
type parquetBar struct {
	Timestamp int64   `parquet:"timestamp"`
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// ExportParquet writes the dataset rows to path as a parquet mirror of the
// CSV. Rows whose fields fail decimal parsing are skipped with a warning
// rather than failing the export.
func (d *Dataset) ExportParquet(path string) error {
	logger := d.logger
	if logger == nil {
		logger = slog.Default()
	}

	rows := make([]parquetBar, 0, len(d.Bars))
	for _, b := range d.Bars {
		row, err := toParquetBar(b)
		if err != nil {
			logger.Warn("skipping row in parquet export", "timestamp", b.Timestamp, "error", err)
			continue
		}
		rows = append(rows, row)
	}

	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("failed to write parquet file: %w", err)
	}
	return nil
}

func toParquetBar(b models.Bar) (parquetBar, error) {
	open, err := b.GetOpenDecimal()
	if err != nil {
		return parquetBar{}, fmt.Errorf("open: %w", err)
	}
	high, err := b.GetHighDecimal()
	if err != nil {
		return parquetBar{}, fmt.Errorf("high: %w", err)
	}
	low, err := b.GetLowDecimal()
	if err != nil {
		return parquetBar{}, fmt.Errorf("low: %w", err)
	}
	close, err := b.GetCloseDecimal()
	if err != nil {
		return parquetBar{}, fmt.Errorf("close: %w", err)
	}
	volume, err := b.GetVolumeDecimal()
	if err != nil {
		return parquetBar{}, fmt.Errorf("volume: %w", err)
	}

	return parquetBar{
		Timestamp: b.Timestamp,
		Open:      open.InexactFloat64(),
		High:      high.InexactFloat64(),
		Low:       low.InexactFloat64(),
		Close:     close.InexactFloat64(),
		Volume:    volume.InexactFloat64(),
	}, nil
}
