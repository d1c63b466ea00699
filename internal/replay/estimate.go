// Package replay streams stored samples to the collector at their original
// cadence, choosing between the serial and network transports with retry and
// fallback.
package replay

import (
	"time"

	"github.com/banshee-data/mockdaq/internal/sample"
)

// DefaultInterval is the pacing used when a sequence's timing is unknown
// (100 Hz).
const DefaultInterval = 10 * time.Millisecond

// EstimateInterval derives the inter-sample interval from the first and last
// timestamps: N samples span N-1 intervals. A single sample, an unparseable
// endpoint or a non-increasing span all yield DefaultInterval.
func EstimateInterval(seq sample.Sequence) time.Duration {
	if len(seq) < 2 {
		return DefaultInterval
	}
	first, err := sample.ParseTimestamp(seq[0].Timestamp)
	if err != nil {
		return DefaultInterval
	}
	last, err := sample.ParseTimestamp(seq[len(seq)-1].Timestamp)
	if err != nil {
		return DefaultInterval
	}

	interval := last.Sub(first) / time.Duration(len(seq)-1)
	if interval <= 0 {
		return DefaultInterval
	}
	return interval
}
