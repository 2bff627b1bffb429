package sync

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mczielinski/kaggle-bitcoin/internal/config"
	"github.com/mczielinski/kaggle-bitcoin/internal/dataset"
	"github.com/mczielinski/kaggle-bitcoin/internal/models"
)

// BarFetcher fetches the minute bars covering one half-open window.
type BarFetcher interface {
	FetchOHLC(ctx context.Context, pair string, r models.TimeRange) ([]models.Bar, error)
}

// DatasetStore abstracts the remote dataset host.
type DatasetStore interface {
	DownloadDataset(ctx context.Context, slug, dir string) ([]string, error)
	DownloadMetadata(ctx context.Context, slug, dir string) (string, error)
	PublishVersion(ctx context.Context, slug, dir string, files []string, notes string) error
}

// Report summarizes one synchronization pass.
type Report struct {
	RunID        string
	GapDetected  bool
	Gap          models.TimeRange
	Chunks       int
	FailedChunks int
	FetchedBars  int
	AddedRows    int
	TotalRows    int
	DroppedRows  int
	MissingBars  int
}

// Syncer drives one end-to-end synchronization pass over the dataset.
//
// The pass is strictly sequential: download, load, detect, fetch chunk by
// chunk, merge, audit, rewrite, and optionally export and publish. There is
// no locking; operators are expected to prevent concurrent runs.
type Syncer struct {
	store   DatasetStore
	fetcher BarFetcher
	policy  GapDetectionPolicy
	cfg     *config.Config
	logger  *slog.Logger
	now     func() time.Time
}

// NewSyncer creates a syncer wiring the dataset store, the bar fetcher and
// the gap detection policy together.
func NewSyncer(store DatasetStore, fetcher BarFetcher, policy GapDetectionPolicy, cfg *config.Config, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		store:   store,
		fetcher: fetcher,
		policy:  policy,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Run executes one synchronization pass and returns its report. The dataset
// file is rewritten on every successful pass, whether or not new bars were
// fetched, so a run with no gap still refreshes the artifact.
func (s *Syncer) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.New().String()[:8]}
	logger := s.logger.With("run_id", report.RunID)

	logger.Info("starting dataset sync",
		"pair", s.cfg.Pair,
		"dataset", s.cfg.Dataset.Slug,
		"policy", s.policy.Name(),
	)

	// Pull the published dataset into the working directory. Without it
	// there is nothing to merge against, so failures here are fatal.
	files, err := s.store.DownloadDataset(ctx, s.cfg.Dataset.Slug, s.cfg.Dataset.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("failed to download dataset: %w", err)
	}
	logger.Info("downloaded dataset", "files", len(files))

	// The metadata file keeps the dataset description intact across
	// republishes, so it is only needed when publishing.
	if s.cfg.Dataset.Publish {
		if _, err := s.store.DownloadMetadata(ctx, s.cfg.Dataset.Slug, s.cfg.Dataset.WorkDir); err != nil {
			return nil, fmt.Errorf("failed to download dataset metadata: %w", err)
		}
	}

	path := filepath.Join(s.cfg.Dataset.WorkDir, s.cfg.Dataset.File)
	ds, err := dataset.Load(path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	report.DroppedRows = ds.DroppedRows
	logger.Info("loaded dataset", "rows", len(ds.Bars), "dropped_rows", ds.DroppedRows)

	fetched := s.fetchMissingBars(ctx, logger, report, ds)

	report.AddedRows = ds.Merge(fetched)
	report.TotalRows = len(ds.Bars)
	if report.GapDetected && report.AddedRows == 0 {
		logger.Info("no new data available", "gap", report.Gap.String())
	} else {
		logger.Info("merged fetched bars",
			"fetched", report.FetchedBars,
			"added", report.AddedRows,
			"total_rows", report.TotalRows,
		)
	}

	// Coverage audit: the synced window should be contiguous on the minute
	// grid after the merge. Residual holes are worth a warning but do not
	// fail the run; the exchange is allowed to have minutes without trades.
	if report.GapDetected {
		missing, first, last := ds.MissingInRange(report.Gap)
		report.MissingBars = missing
		if missing > 0 {
			logger.Warn("synced range has missing minute buckets",
				"missing", missing,
				"first_missing", time.Unix(first, 0).UTC().Format(time.RFC3339),
				"last_missing", time.Unix(last, 0).UTC().Format(time.RFC3339),
			)
		}
	}

	if err := ds.WriteCSV(); err != nil {
		return nil, fmt.Errorf("failed to rewrite dataset: %w", err)
	}
	logger.Info("rewrote dataset", "path", ds.Path, "rows", report.TotalRows)

	if s.cfg.Dataset.ParquetExport {
		parquetPath := filepath.Join(s.cfg.Dataset.WorkDir, s.cfg.Dataset.ParquetFile)
		if err := ds.ExportParquet(parquetPath); err != nil {
			return nil, fmt.Errorf("failed to export parquet mirror: %w", err)
		}
		logger.Info("exported parquet mirror", "path", parquetPath)
	}

	if s.cfg.Dataset.Publish {
		// Publish exactly the artifacts this run produced. The working dir
		// also holds the metadata file and whatever the operator keeps there.
		publishFiles := []string{s.cfg.Dataset.File}
		if s.cfg.Dataset.ParquetExport {
			publishFiles = append(publishFiles, s.cfg.Dataset.ParquetFile)
		}
		notes := fmt.Sprintf("Automated update %s (%d new rows)",
			s.now().UTC().Format("2006-01-02"), report.AddedRows)
		if err := s.store.PublishVersion(ctx, s.cfg.Dataset.Slug, s.cfg.Dataset.WorkDir, publishFiles, notes); err != nil {
			return nil, fmt.Errorf("failed to publish dataset version: %w", err)
		}
		logger.Info("published dataset version", "files", publishFiles, "notes", notes)
	}

	logger.Info("dataset sync complete",
		"gap_detected", report.GapDetected,
		"chunks", report.Chunks,
		"failed_chunks", report.FailedChunks,
		"added", report.AddedRows,
		"total_rows", report.TotalRows,
	)
	return report, nil
}

// fetchMissingBars detects the gap and walks its chunks in order, collecting
// everything the exchange returns. Chunk failures are logged and skipped; the
// merge step and the unconditional rewrite still run.
func (s *Syncer) fetchMissingBars(ctx context.Context, logger *slog.Logger, report *Report, ds *dataset.Dataset) []models.Bar {
	last, ok := ds.LastTimestamp()
	if !ok {
		logger.Warn("dataset has no rows, skipping fetch")
		return nil
	}

	gap, ok := s.policy.Detect(last, s.now())
	if !ok {
		logger.Info("dataset is current", "last_timestamp", last)
		return nil
	}
	report.GapDetected = true
	report.Gap = gap

	chunks := splitRange(gap, s.cfg.Sync.ChunkSpan)
	report.Chunks = len(chunks)
	logger.Info("detected gap",
		"gap", gap.String(),
		"bars", gap.Bars(),
		"chunks", len(chunks),
	)

	var fetched []models.Bar
	for i, chunk := range chunks {
		if ctx.Err() != nil {
			logger.Warn("aborting fetch loop",
				"error", ctx.Err(),
				"remaining_chunks", len(chunks)-i,
			)
			break
		}

		bars, err := s.fetcher.FetchOHLC(ctx, s.cfg.Pair, chunk)
		if err != nil {
			report.FailedChunks++
			logger.Warn("chunk fetch failed, continuing",
				"chunk", i+1,
				"of", len(chunks),
				"range", chunk.String(),
				"error", err,
			)
			continue
		}
		if len(bars) == 0 {
			logger.Debug("no data returned for chunk",
				"chunk", i+1,
				"of", len(chunks),
				"range", chunk.String(),
			)
			continue
		}

		fetched = append(fetched, bars...)
		report.FetchedBars += len(bars)
		logger.Debug("fetched chunk",
			"chunk", i+1,
			"of", len(chunks),
			"bars", len(bars),
		)
	}

	return fetched
}
