package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTimeRange(t *testing.T) {
	tests := []struct {
		name        string
		start       int64
		end         int64
		expectError bool
	}{
		{
			name:  "valid_range",
			start: 1704067200,
			end:   1704070800,
		},
		{
			name:        "zero_start",
			start:       0,
			end:         1704070800,
			expectError: true,
		},
		{
			name:        "end_equals_start",
			start:       1704067200,
			end:         1704067200,
			expectError: true,
		},
		{
			name:        "end_before_start",
			start:       1704070800,
			end:         1704067200,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewTimeRange(tt.start, tt.end)
			if tt.expectError {
				assert.Error(t, err)
				assert.True(t, r.IsZero())
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.start, r.Start)
				assert.Equal(t, tt.end, r.End)
			}
		})
	}
}

func TestTimeRange_Bars(t *testing.T) {
	tests := []struct {
		name     string
		rng      TimeRange
		expected int64
	}{
		{
			name:     "one_minute",
			rng:      TimeRange{Start: 1704067200, End: 1704067260},
			expected: 1,
		},
		{
			name:     "two_hours",
			rng:      TimeRange{Start: 1704067200, End: 1704067200 + 7200},
			expected: 120,
		},
		{
			name:     "partial_minute_rounds_up",
			rng:      TimeRange{Start: 1704067200, End: 1704067200 + 90},
			expected: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.rng.Bars())
		})
	}
}

func TestTimeRange_Contains(t *testing.T) {
	r := TimeRange{Start: 1704067200, End: 1704067200 + 3600}

	assert.True(t, r.Contains(r.Start), "start bound is inclusive")
	assert.True(t, r.Contains(r.Start+60))
	assert.True(t, r.Contains(r.End-1))
	assert.False(t, r.Contains(r.End), "end bound is exclusive")
	assert.False(t, r.Contains(r.Start-60))
}

func TestTimeRange_DurationAndString(t *testing.T) {
	r := TimeRange{Start: 1704067200, End: 1704067200 + 7200}

	assert.Equal(t, 2*time.Hour, r.Duration())
	assert.Equal(t, int64(7200), r.Seconds())

	s := r.String()
	assert.Contains(t, s, "1704067200")
	assert.Contains(t, s, "2024-01-01T00:00:00Z")
}
