package generate

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/mockdaq/internal/sample"
)

var start = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func inRange(t *testing.T, name string, v, lo, hi float64) {
	t.Helper()
	if v < lo || v > hi {
		t.Errorf("%s = %v, want within [%v, %v]", name, v, lo, hi)
	}
}

func isTwoDecimals(v float64) bool {
	return math.Abs(v*100-math.Round(v*100)) < 1e-6
}

func TestGenerate_UnseededRanges(t *testing.T) {
	g := New(Config{Seed: 1})
	for i, s := range g.Generate(500, start, DefaultInterval) {
		inRange(t, "latitude", s.Latitude, -90, 90)
		inRange(t, "longitude", s.Longitude, -180, 180)
		inRange(t, "altitude", s.Altitude, 0, 1000)
		for _, v := range []float64{s.AccelX, s.AccelY, s.AccelZ} {
			inRange(t, "accel", v, -10, 10)
		}
		for _, v := range []float64{s.GyroX, s.GyroY, s.GyroZ} {
			inRange(t, "gyro", v, -500, 500)
		}
		for _, v := range []float64{s.DAC1, s.DAC2, s.DAC3, s.DAC4} {
			inRange(t, "dac", v, 0, 5)
		}
		if !isTwoDecimals(s.Latitude) || !isTwoDecimals(s.Longitude) {
			t.Fatalf("sample %d: lat/lon not rounded to 2 dp: %v, %v", i, s.Latitude, s.Longitude)
		}
		if s.SessionID != nil {
			t.Fatalf("sample %d: session id should be null", i)
		}
	}
}

func TestGenerate_SeededRanges(t *testing.T) {
	g := New(Config{
		LatSeed: Float(51.5),
		LonSeed: Float(-0.12),
		AltSeed: Float(35),
		Seed:    7,
	})
	for _, s := range g.Generate(500, start, DefaultInterval) {
		inRange(t, "latitude", s.Latitude, 50.5, 52.5)
		inRange(t, "longitude", s.Longitude, -1.12, 0.88)
		inRange(t, "altitude", s.Altitude, 25, 45)
	}
}

func TestGenerate_Timestamps(t *testing.T) {
	seq := New(Config{Seed: 3}).Generate(3, start, 250*time.Millisecond)

	got := []string{seq[0].Timestamp, seq[1].Timestamp, seq[2].Timestamp}
	want := []string{
		"2024-03-01T12:00:00.000000",
		"2024-03-01T12:00:00.250000",
		"2024-03-01T12:00:00.500000",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("timestamps mismatch (-want +got):\n%s", diff)
	}
	for _, ts := range got {
		if _, err := sample.ParseTimestamp(ts); err != nil {
			t.Errorf("ParseTimestamp(%q) error = %v", ts, err)
		}
	}
}

func TestGenerate_DeterministicForSeed(t *testing.T) {
	a := New(Config{Seed: 42}).Generate(20, start, DefaultInterval)
	b := New(Config{Seed: 42}).Generate(20, start, DefaultInterval)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("same seed produced different samples (-a +b):\n%s", diff)
	}

	c := New(Config{Seed: 43}).Generate(20, start, DefaultInterval)
	if cmp.Equal(a, c) {
		t.Error("different seeds produced identical samples")
	}
}

func TestGenerate_ConfigIsCopied(t *testing.T) {
	lat := 10.0
	cfg := Config{LatSeed: &lat, Seed: 9}
	g := New(cfg)

	// Changes to the caller's copy do not reach the generator.
	lat = -80
	cfg.Seed = 1

	if g.Config().Seed != 9 {
		t.Errorf("Config().Seed = %d, want 9", g.Config().Seed)
	}
	if got := *g.Config().LatSeed; got != 10 {
		t.Errorf("Config().LatSeed = %v, want 10", got)
	}
	for _, s := range g.Generate(100, start, DefaultInterval) {
		inRange(t, "latitude", s.Latitude, 9, 11)
	}
}

func TestGenerate_NonPositiveCount(t *testing.T) {
	g := New(Config{Seed: 1})
	if seq := g.Generate(0, start, DefaultInterval); seq != nil {
		t.Errorf("Generate(0) = %v, want nil", seq)
	}
	if seq := g.Generate(-5, start, DefaultInterval); seq != nil {
		t.Errorf("Generate(-5) = %v, want nil", seq)
	}
}
