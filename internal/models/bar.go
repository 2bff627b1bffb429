// Package models provides data structures and validation for minute-resolution
// OHLCV market data. This package contains the core data models shared across
// the dataset, exchange, and sync packages.
package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Bar represents OHLCV price and volume data for a single minute bucket.
// The Timestamp is the bar's open time in Unix seconds (UTC) and is the
// unique key of a dataset row. Prices and volume are kept as decimal
// strings so values round-trip through CSV without floating point drift.
type Bar struct {
	Timestamp int64  `json:"timestamp"`
	Open      string `json:"open"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Close     string `json:"close"`
	Volume    string `json:"volume"`
}

// ValidationError represents a bar validation error with specific field context.
// It provides structured error information including the field name that failed
// validation and a descriptive error message.
type ValidationError struct {
	Field   string // Field is the name of the field that failed validation
	Message string // Message is a descriptive error message explaining the validation failure
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %s: %s", e.Field, e.Message)
}

// Validate performs comprehensive validation on the bar data.
// It validates that the timestamp is positive, all price fields are valid
// decimal numbers greater than zero, volume is non-negative, and OHLC
// relationships are correct (high >= max(open, close), low <= min(open, close)).
// Returns a ValidationError if any validation fails.
func (b *Bar) Validate() error {
	if b.Timestamp <= 0 {
		return &ValidationError{Field: "timestamp", Message: "timestamp must be a positive Unix time"}
	}

	open, err := decimal.NewFromString(b.Open)
	if err != nil {
		return &ValidationError{Field: "open", Message: fmt.Sprintf("invalid open price format: %v", err)}
	}

	high, err := decimal.NewFromString(b.High)
	if err != nil {
		return &ValidationError{Field: "high", Message: fmt.Sprintf("invalid high price format: %v", err)}
	}

	low, err := decimal.NewFromString(b.Low)
	if err != nil {
		return &ValidationError{Field: "low", Message: fmt.Sprintf("invalid low price format: %v", err)}
	}

	close, err := decimal.NewFromString(b.Close)
	if err != nil {
		return &ValidationError{Field: "close", Message: fmt.Sprintf("invalid close price format: %v", err)}
	}

	volume, err := decimal.NewFromString(b.Volume)
	if err != nil {
		return &ValidationError{Field: "volume", Message: fmt.Sprintf("invalid volume format: %v", err)}
	}

	// All prices must be > 0
	zero := decimal.Zero
	if open.LessThanOrEqual(zero) {
		return &ValidationError{Field: "open", Message: "open price must be greater than 0"}
	}
	if high.LessThanOrEqual(zero) {
		return &ValidationError{Field: "high", Message: "high price must be greater than 0"}
	}
	if low.LessThanOrEqual(zero) {
		return &ValidationError{Field: "low", Message: "low price must be greater than 0"}
	}
	if close.LessThanOrEqual(zero) {
		return &ValidationError{Field: "close", Message: "close price must be greater than 0"}
	}

	// Volume must be >= 0
	if volume.LessThan(zero) {
		return &ValidationError{Field: "volume", Message: "volume must be greater than or equal to 0"}
	}

	// High >= max(Open, Close)
	maxOpenClose := decimal.Max(open, close)
	if high.LessThan(maxOpenClose) {
		return &ValidationError{
			Field:   "high",
			Message: fmt.Sprintf("high price (%s) must be greater than or equal to max(open, close) (%s)", high, maxOpenClose),
		}
	}

	// Low <= min(Open, Close)
	minOpenClose := decimal.Min(open, close)
	if low.GreaterThan(minOpenClose) {
		return &ValidationError{
			Field:   "low",
			Message: fmt.Sprintf("low price (%s) must be less than or equal to min(open, close) (%s)", low, minOpenClose),
		}
	}

	return nil
}

// GetOpenDecimal returns the open price as a decimal.Decimal for precise calculations.
// Returns an error if the open price string cannot be parsed as a decimal.
func (b *Bar) GetOpenDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(b.Open)
}

// GetHighDecimal returns the high price as a decimal.Decimal for precise calculations.
// Returns an error if the high price string cannot be parsed as a decimal.
func (b *Bar) GetHighDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(b.High)
}

// GetLowDecimal returns the low price as a decimal.Decimal for precise calculations.
// Returns an error if the low price string cannot be parsed as a decimal.
func (b *Bar) GetLowDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(b.Low)
}

// GetCloseDecimal returns the close price as a decimal.Decimal for precise calculations.
// Returns an error if the close price string cannot be parsed as a decimal.
func (b *Bar) GetCloseDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(b.Close)
}

// GetVolumeDecimal returns the volume as a decimal.Decimal for precise calculations.
// Returns an error if the volume string cannot be parsed as a decimal.
func (b *Bar) GetVolumeDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(b.Volume)
}

// String returns a human-readable string representation of the bar.
// This method implements the fmt.Stringer interface.
func (b *Bar) String() string {
	return fmt.Sprintf("Bar{Timestamp: %d, O: %s, H: %s, L: %s, C: %s, V: %s}",
		b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume)
}

// NewBar creates a new Bar instance with the provided values and validates it.
// All price and volume values should be provided as decimal strings. The
// timestamp is the bar's open time in Unix seconds.
// Returns a ValidationError if any validation fails.
//
// Example:
//
//	bar, err := NewBar(1700000000, "100.50", "101.00", "100.00", "100.75", "1000.5")
func NewBar(timestamp int64, open, high, low, close, volume string) (*Bar, error) {
	bar := &Bar{
		Timestamp: timestamp,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    volume,
	}

	if err := bar.Validate(); err != nil {
		return nil, fmt.Errorf("failed to create bar: %w", err)
	}

	return bar, nil
}
