// Package sync implements the incremental dataset synchronization pass:
// detect the gap between the published dataset and the present, fetch the
// missing minute bars in chunks, merge them in, and rewrite the dataset.
package sync

import (
	"fmt"
	"time"

	"github.com/mczielinski/kaggle-bitcoin/internal/config"
	"github.com/mczielinski/kaggle-bitcoin/internal/models"
)

// Policy names accepted by NewPolicy and the sync.policy config key.
const (
	PolicyBuffer   = "buffer"
	PolicyWholeDay = "whole-day"
)

// GapDetectionPolicy decides whether the dataset lags the present and, if so,
// which half-open window [start, end) needs fetching.
//
// Policies read only the dataset's newest timestamp and the current time.
// ok=false means the dataset is current, which is not an error.
type GapDetectionPolicy interface {
	// Name identifies the policy in logs and configuration.
	Name() string

	// Detect returns the fetch window for a dataset whose newest bar sits at
	// lastTimestamp. ok is false when there is nothing to fetch.
	Detect(lastTimestamp int64, now time.Time) (r models.TimeRange, ok bool)
}

// BufferPolicy fetches everything between the dataset's newest bar and a
// safety buffer behind the present. The buffer keeps the window clear of the
// still-forming candles at the exchange edge.
type BufferPolicy struct {
	SafetyBuffer time.Duration
}

func (p BufferPolicy) Name() string { return PolicyBuffer }

// Detect returns [lastTimestamp, now-buffer) with the cutoff truncated to the
// minute grid. The window starts at the newest existing bar on purpose: the
// refetched boundary bar is dropped again during merge.
func (p BufferPolicy) Detect(lastTimestamp int64, now time.Time) (models.TimeRange, bool) {
	cutoff := now.UTC().Add(-p.SafetyBuffer).Truncate(time.Minute).Unix()
	if cutoff <= lastTimestamp {
		return models.TimeRange{}, false
	}
	return models.TimeRange{Start: lastTimestamp, End: cutoff}, true
}

// WholeDayPolicy fetches only complete UTC days: from the first midnight
// after the dataset's newest bar up to today's midnight. A partially elapsed
// day is never fetched.
type WholeDayPolicy struct{}

func (WholeDayPolicy) Name() string { return PolicyWholeDay }

func (WholeDayPolicy) Detect(lastTimestamp int64, now time.Time) (models.TimeRange, bool) {
	dayAfterLast := midnightUTC(time.Unix(lastTimestamp, 0)).Add(24 * time.Hour)
	today := midnightUTC(now)
	if !dayAfterLast.Before(today) {
		return models.TimeRange{}, false
	}
	return models.TimeRange{Start: dayAfterLast.Unix(), End: today.Unix()}, true
}

func midnightUTC(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// NewPolicy builds the gap detection policy named by the configuration.
func NewPolicy(cfg config.SyncConfig) (GapDetectionPolicy, error) {
	switch cfg.Policy {
	case PolicyBuffer:
		return BufferPolicy{SafetyBuffer: cfg.SafetyBuffer}, nil
	case PolicyWholeDay:
		return WholeDayPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown gap detection policy %q", cfg.Policy)
	}
}
