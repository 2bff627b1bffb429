package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimestamp int64 = 1704110400 // 2024-01-01T12:00:00Z

func TestNewBar_ValidData(t *testing.T) {
	tests := []struct {
		name     string
		open     string
		high     string
		low      string
		close    string
		volume   string
		expected bool
	}{
		{
			name:     "valid_bullish_bar",
			open:     "100.00",
			high:     "105.50",
			low:      "99.25",
			close:    "104.00",
			volume:   "1500.75",
			expected: true,
		},
		{
			name:     "valid_bearish_bar",
			open:     "100.00",
			high:     "102.00",
			low:      "95.50",
			close:    "96.75",
			volume:   "2000.00",
			expected: true,
		},
		{
			name:     "valid_zero_volume",
			open:     "100.00",
			high:     "100.50",
			low:      "99.50",
			close:    "100.25",
			volume:   "0",
			expected: true,
		},
		{
			name:     "valid_high_precision",
			open:     "100.123456789",
			high:     "100.987654321",
			low:      "99.111111111",
			close:    "100.555555555",
			volume:   "1234.567890123",
			expected: true,
		},
		{
			name:     "invalid_negative_volume",
			open:     "100.00",
			high:     "105.00",
			low:      "95.00",
			close:    "102.00",
			volume:   "-1",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar, err := NewBar(testTimestamp, tt.open, tt.high, tt.low, tt.close, tt.volume)

			if tt.expected {
				assert.NoError(t, err)
				require.NotNil(t, bar)
				assert.Equal(t, testTimestamp, bar.Timestamp)
				assert.Equal(t, tt.open, bar.Open)
				assert.Equal(t, tt.high, bar.High)
				assert.Equal(t, tt.low, bar.Low)
				assert.Equal(t, tt.close, bar.Close)
				assert.Equal(t, tt.volume, bar.Volume)
			} else {
				assert.Error(t, err)
				assert.Nil(t, bar)
			}
		})
	}
}

func TestBar_Validate_FieldErrors(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Bar)
		errorField string
	}{
		{
			name:       "zero_timestamp",
			mutate:     func(b *Bar) { b.Timestamp = 0 },
			errorField: "timestamp",
		},
		{
			name:       "negative_timestamp",
			mutate:     func(b *Bar) { b.Timestamp = -1 },
			errorField: "timestamp",
		},
		{
			name:       "invalid_open_format",
			mutate:     func(b *Bar) { b.Open = "invalid" },
			errorField: "open",
		},
		{
			name:       "invalid_high_format",
			mutate:     func(b *Bar) { b.High = "not_a_number" },
			errorField: "high",
		},
		{
			name:       "empty_close",
			mutate:     func(b *Bar) { b.Close = "" },
			errorField: "close",
		},
		{
			name:       "zero_open_price",
			mutate:     func(b *Bar) { b.Open = "0" },
			errorField: "open",
		},
		{
			name:       "negative_low_price",
			mutate:     func(b *Bar) { b.Low = "-5.00" },
			errorField: "low",
		},
		{
			name:       "negative_volume",
			mutate:     func(b *Bar) { b.Volume = "-100" },
			errorField: "volume",
		},
		{
			name:       "high_below_open",
			mutate:     func(b *Bar) { b.High = "99.00" },
			errorField: "high",
		},
		{
			name:       "low_above_close",
			mutate:     func(b *Bar) { b.Low = "103.00" },
			errorField: "low",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := &Bar{
				Timestamp: testTimestamp,
				Open:      "100.00",
				High:      "105.00",
				Low:       "95.00",
				Close:     "102.00",
				Volume:    "1000.00",
			}
			tt.mutate(bar)

			err := bar.Validate()
			require.Error(t, err)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.errorField, validationErr.Field)
		})
	}
}

func TestBar_DecimalGetters(t *testing.T) {
	bar := &Bar{
		Timestamp: testTimestamp,
		Open:      "100.50",
		High:      "105.25",
		Low:       "99.75",
		Close:     "104.00",
		Volume:    "1500.123",
	}

	open, err := bar.GetOpenDecimal()
	require.NoError(t, err)
	assert.True(t, open.Equal(decimal.RequireFromString("100.50")))

	high, err := bar.GetHighDecimal()
	require.NoError(t, err)
	assert.True(t, high.Equal(decimal.RequireFromString("105.25")))

	low, err := bar.GetLowDecimal()
	require.NoError(t, err)
	assert.True(t, low.Equal(decimal.RequireFromString("99.75")))

	close, err := bar.GetCloseDecimal()
	require.NoError(t, err)
	assert.True(t, close.Equal(decimal.RequireFromString("104.00")))

	volume, err := bar.GetVolumeDecimal()
	require.NoError(t, err)
	assert.True(t, volume.Equal(decimal.RequireFromString("1500.123")))
}

func TestBar_String(t *testing.T) {
	bar := &Bar{
		Timestamp: testTimestamp,
		Open:      "1",
		High:      "2",
		Low:       "0.5",
		Close:     "1.5",
		Volume:    "10",
	}

	s := bar.String()
	assert.Contains(t, s, "1704110400")
	assert.Contains(t, s, "O: 1")
	assert.Contains(t, s, "V: 10")
}
