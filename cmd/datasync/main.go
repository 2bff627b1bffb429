// datasync - incremental Kaggle dataset synchronizer
//
// This application brings the published bitcoin minute-bar dataset up to date:
// it downloads the current dataset from Kaggle, detects how far it lags behind
// the exchange, fetches the missing bars from Bitstamp in chunks, merges them
// in, rewrites the dataset file, and optionally publishes a new version.
//
// The tool takes no arguments. Configuration comes from config.yaml and
// DATASYNC_* environment variables; Kaggle credentials come from
// KAGGLE_USERNAME and KAGGLE_KEY.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mczielinski/kaggle-bitcoin/internal/bitstamp"
	"github.com/mczielinski/kaggle-bitcoin/internal/config"
	"github.com/mczielinski/kaggle-bitcoin/internal/kaggle"
	"github.com/mczielinski/kaggle-bitcoin/internal/logger"
	"github.com/mczielinski/kaggle-bitcoin/internal/sync"
)

const (
	Version = "1.0.0"
	AppName = "datasync"
)

// Exit codes following standard conventions
const (
	ExitSuccess     = 0
	ExitConfigError = 1
	ExitSyncError   = 2
	ExitInterrupt   = 130
)

func main() {
	// Setup signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load configuration: %v\n", err)
		os.Exit(ExitConfigError)
	}

	logManager, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to set up logging: %v\n", err)
		os.Exit(ExitConfigError)
	}
	defer logManager.Close()

	log := logManager.Logger()
	log.Info("starting dataset sync",
		"app", AppName,
		"version", Version,
		"pair", cfg.Pair,
		"dataset", cfg.Dataset.Slug,
		"policy", cfg.Sync.Policy,
	)

	policy, err := sync.NewPolicy(cfg.Sync)
	if err != nil {
		log.Error("invalid sync configuration", "error", err)
		os.Exit(ExitConfigError)
	}

	store := kaggle.NewClient(cfg.Kaggle, logManager.Component("kaggle"))
	fetcher := bitstamp.NewClient(cfg.Bitstamp, logManager.Component("bitstamp"))
	syncer := sync.NewSyncer(store, fetcher, policy, cfg, logManager.Component("sync"))

	report, err := syncer.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("dataset sync interrupted", "error", err)
			os.Exit(ExitInterrupt)
		}
		log.Error("dataset sync failed", "error", err)
		os.Exit(ExitSyncError)
	}

	log.Info("dataset sync succeeded",
		"run_id", report.RunID,
		"gap_detected", report.GapDetected,
		"chunks", report.Chunks,
		"failed_chunks", report.FailedChunks,
		"added", report.AddedRows,
		"total_rows", report.TotalRows,
	)
}
