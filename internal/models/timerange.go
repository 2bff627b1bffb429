package models

import (
	"errors"
	"fmt"
	"time"
)

// BarIntervalSeconds is the resolution of the dataset: one bar per minute.
const BarIntervalSeconds int64 = 60

// TimeRange represents a half-open window [Start, End) of Unix seconds.
// It is the unit of work produced by gap detection and consumed by the
// chunked fetcher: bars with Start <= Timestamp < End belong to the range.
type TimeRange struct {
	// Start is the inclusive lower bound in Unix seconds (UTC)
	Start int64 `json:"start"`

	// End is the exclusive upper bound in Unix seconds (UTC)
	End int64 `json:"end"`
}

// NewTimeRange creates a TimeRange and validates that it is well formed.
// Returns an error if the bounds are not positive or End is not after Start.
func NewTimeRange(start, end int64) (TimeRange, error) {
	r := TimeRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return TimeRange{}, fmt.Errorf("invalid time range: %w", err)
	}
	return r, nil
}

// Validate checks that the range bounds are positive and ordered.
func (r TimeRange) Validate() error {
	if r.Start <= 0 {
		return errors.New("range start must be a positive Unix time")
	}
	if r.End <= r.Start {
		return errors.New("range end must be after range start")
	}
	return nil
}

// IsZero returns true for the zero value, used to signal "no gap".
func (r TimeRange) IsZero() bool {
	return r.Start == 0 && r.End == 0
}

// Duration returns the span of the range.
func (r TimeRange) Duration() time.Duration {
	return time.Duration(r.End-r.Start) * time.Second
}

// Seconds returns the span of the range in whole seconds.
func (r TimeRange) Seconds() int64 {
	return r.End - r.Start
}

// Bars returns the number of minute buckets the range covers, rounding up
// when the span is not an exact multiple of the bar interval.
func (r TimeRange) Bars() int64 {
	span := r.End - r.Start
	return (span + BarIntervalSeconds - 1) / BarIntervalSeconds
}

// Contains reports whether the timestamp falls inside the half-open window.
func (r TimeRange) Contains(ts int64) bool {
	return ts >= r.Start && ts < r.End
}

// String returns a human-readable representation of the range with both
// Unix and UTC renderings of the bounds.
// This method implements the fmt.Stringer interface.
func (r TimeRange) String() string {
	return fmt.Sprintf("[%d, %d) (%s .. %s)",
		r.Start, r.End,
		time.Unix(r.Start, 0).UTC().Format(time.RFC3339),
		time.Unix(r.End, 0).UTC().Format(time.RFC3339))
}
