package sync

import (
	"github.com/mczielinski/kaggle-bitcoin/internal/config"
	"github.com/mczielinski/kaggle-bitcoin/internal/models"
)

// splitRange partitions r into contiguous half-open chunks of at most
// spanSeconds each. Chunks start at r.Start and advance by the full span;
// the final chunk is clipped to r.End. The union of the chunks is exactly r,
// with no gaps and no overlaps.
func splitRange(r models.TimeRange, spanSeconds int64) []models.TimeRange {
	if r.End <= r.Start {
		return nil
	}
	if spanSeconds <= 0 {
		spanSeconds = config.MaxChunkSpanSeconds / 2
	}

	chunks := make([]models.TimeRange, 0, (r.Seconds()+spanSeconds-1)/spanSeconds)
	for start := r.Start; start < r.End; start += spanSeconds {
		end := start + spanSeconds
		if end > r.End {
			end = r.End
		}
		chunks = append(chunks, models.TimeRange{Start: start, End: end})
	}

	return chunks
}
