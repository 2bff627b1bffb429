package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mczielinski/kaggle-bitcoin/internal/config"
	"github.com/mczielinski/kaggle-bitcoin/internal/models"
)

const (
	jan1 = int64(1704067200) // 2024-01-01 00:00:00 UTC
	jan2 = jan1 + 86400
	jan3 = jan2 + 86400
	jan4 = jan3 + 86400
)

func TestBufferPolicy_Detect(t *testing.T) {
	policy := BufferPolicy{SafetyBuffer: 30 * time.Minute}

	tests := []struct {
		name          string
		lastTimestamp int64
		now           time.Time
		expected      models.TimeRange
		expectGap     bool
	}{
		{
			name:          "two hour gap",
			lastTimestamp: jan1,
			now:           time.Unix(jan1+9000, 0), // cutoff lands at jan1+7200
			expected:      models.TimeRange{Start: jan1, End: jan1 + 7200},
			expectGap:     true,
		},
		{
			name:          "cutoff truncated to the minute grid",
			lastTimestamp: jan1,
			now:           time.Unix(jan1+9025, 0),
			expected:      models.TimeRange{Start: jan1, End: jan1 + 7200},
			expectGap:     true,
		},
		{
			name:          "dataset current when cutoff equals last bar",
			lastTimestamp: jan1,
			now:           time.Unix(jan1+1800, 0),
			expectGap:     false,
		},
		{
			name:          "dataset ahead of cutoff",
			lastTimestamp: jan1 + 3600,
			now:           time.Unix(jan1+1800, 0),
			expectGap:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := policy.Detect(tt.lastTimestamp, tt.now)
			require.Equal(t, tt.expectGap, ok)
			if tt.expectGap {
				assert.Equal(t, tt.expected, r)
			}
		})
	}
}

func TestWholeDayPolicy_Detect(t *testing.T) {
	policy := WholeDayPolicy{}

	tests := []struct {
		name          string
		lastTimestamp int64
		now           time.Time
		expected      models.TimeRange
		expectGap     bool
	}{
		{
			name:          "two complete days behind",
			lastTimestamp: jan1 + 3600, // mid Jan 1
			now:           time.Unix(jan4+36000, 0),
			expected:      models.TimeRange{Start: jan2, End: jan4},
			expectGap:     true,
		},
		{
			name:          "exactly one complete day behind",
			lastTimestamp: jan2 + 86340, // 23:59 on Jan 2
			now:           time.Unix(jan4, 0),
			expected:      models.TimeRange{Start: jan3, End: jan4},
			expectGap:     true,
		},
		{
			name:          "yesterday already covered",
			lastTimestamp: jan3 + 60, // any bar on Jan 3
			now:           time.Unix(jan4+36000, 0),
			expectGap:     false,
		},
		{
			name:          "last bar today",
			lastTimestamp: jan4 + 600,
			now:           time.Unix(jan4+36000, 0),
			expectGap:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := policy.Detect(tt.lastTimestamp, tt.now)
			require.Equal(t, tt.expectGap, ok)
			if tt.expectGap {
				assert.Equal(t, tt.expected, r)
			}
		})
	}
}

func TestNewPolicy(t *testing.T) {
	t.Run("buffer", func(t *testing.T) {
		policy, err := NewPolicy(config.SyncConfig{Policy: PolicyBuffer, SafetyBuffer: 45 * time.Minute})
		require.NoError(t, err)
		assert.Equal(t, PolicyBuffer, policy.Name())
		assert.Equal(t, BufferPolicy{SafetyBuffer: 45 * time.Minute}, policy)
	})

	t.Run("whole-day", func(t *testing.T) {
		policy, err := NewPolicy(config.SyncConfig{Policy: PolicyWholeDay})
		require.NoError(t, err)
		assert.Equal(t, PolicyWholeDay, policy.Name())
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := NewPolicy(config.SyncConfig{Policy: "hourly"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown gap detection policy")
	})
}
