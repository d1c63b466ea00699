// Package report records how closely a replay kept to its schedule and
// renders the result as a chart.
package report

import (
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/mockdaq/internal/security"
)

// Point is one sample's scheduled and actual send offset from the start of
// streaming.
type Point struct {
	Index     int
	Scheduled time.Duration
	Actual    time.Duration
}

// Lag is how late the sample went out. It is never negative for a sender
// that does not send early.
func (p Point) Lag() time.Duration { return p.Actual - p.Scheduled }

// Recorder collects points. Observe matches replay.Sender's Observer hook.
type Recorder struct {
	mu     sync.Mutex
	points []Point
}

func (r *Recorder) Observe(index int, scheduled, actual time.Duration) {
	r.mu.Lock()
	r.points = append(r.points, Point{Index: index, Scheduled: scheduled, Actual: actual})
	r.mu.Unlock()
}

// Points returns a copy of everything observed so far.
func (r *Recorder) Points() []Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Point(nil), r.points...)
}

// Summary describes the lag distribution of a run.
type Summary struct {
	Count  int
	Mean   time.Duration
	StdDev time.Duration
	P50    time.Duration
	P95    time.Duration
	Max    time.Duration
}

func (s Summary) String() string {
	return fmt.Sprintf("samples=%d lag mean=%s stddev=%s p50=%s p95=%s max=%s",
		s.Count, s.Mean, s.StdDev, s.P50, s.P95, s.Max)
}

// Summarize computes lag statistics in seconds and returns them as
// durations. A single point has zero spread.
func Summarize(points []Point) Summary {
	if len(points) == 0 {
		return Summary{}
	}
	lags := make([]float64, len(points))
	for i, p := range points {
		lags[i] = p.Lag().Seconds()
	}
	sort.Float64s(lags)

	mean, std := stat.MeanStdDev(lags, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return Summary{
		Count:  len(lags),
		Mean:   seconds(mean),
		StdDev: seconds(std),
		P50:    seconds(stat.Quantile(0.5, stat.Empirical, lags, nil)),
		P95:    seconds(stat.Quantile(0.95, stat.Empirical, lags, nil)),
		Max:    seconds(lags[len(lags)-1]),
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

// Write renders points to path, as an HTML page for .html or a PNG image for
// .png. The path must be under the working directory or the temp directory.
func Write(path string, points []Point) error {
	if err := security.ValidateOutputPath(path, ".html", ".png"); err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return WritePNG(path, points)
	default:
		return writeHTMLFile(path, points)
	}
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func title(points []Point) (string, string) {
	return "Replay timing", Summarize(points).String()
}

func closeWith(c io.Closer, err *error) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}
