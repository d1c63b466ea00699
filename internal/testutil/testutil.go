// Package testutil provides shared test fixtures for sample sequences and
// on-disk stores.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/mockdaq/internal/sample"
)

// TimestampLayout matches the generator's ISO-8601 output.
const TimestampLayout = sample.TimestampLayout

// Epoch is the default start time for fixture sequences.
var Epoch = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

// Sequence returns n deterministic samples starting at start and spaced by
// interval. Every field is derived from the index so mismatches are easy to
// spot in diffs.
func Sequence(n int, start time.Time, interval time.Duration) sample.Sequence {
	seq := make(sample.Sequence, n)
	for i := range seq {
		f := float64(i)
		seq[i] = sample.Sample{
			Timestamp: start.Add(time.Duration(i) * interval).Format(TimestampLayout),
			Latitude:  37.77 + f/100,
			Longitude: -122.42 - f/100,
			Altitude:  10 + f,
			AccelX:    f * 0.1,
			AccelY:    -f * 0.1,
			AccelZ:    9.81,
			GyroX:     f,
			GyroY:     -f,
			GyroZ:     0.5,
			DAC1:      1.25,
			DAC2:      2.5,
			DAC3:      3.75,
			DAC4:      f / 100,
		}
	}
	return seq
}

// SessionID returns a pointer to id.
func SessionID(id int64) *int64 {
	return &id
}

// TempDBPath returns a database path inside the test's temp dir.
func TempDBPath(t testing.TB) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "mockdaq_test.db")
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
