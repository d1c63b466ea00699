// Package generate fabricates synthetic DAQ samples: a GPS fix, a 3-axis
// accelerometer and gyroscope, and four DAC channels.
package generate

import (
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/mockdaq/internal/sample"
)

// TimestampLayout is ISO-8601 with microseconds and no zone.
const TimestampLayout = sample.TimestampLayout

const (
	DefaultCount    = 100
	DefaultInterval = 10 * time.Millisecond
)

// Spread around a seeded position.
const (
	coordinateJitter = 1.0
	altitudeJitter   = 10.0
)

// Config fixes the generator's anchors. A nil seed draws from the full range
// of that field. Seed selects the random stream; zero uses the current time.
// Config is copied by New and never modified afterwards.
type Config struct {
	LatSeed *float64
	LonSeed *float64
	AltSeed *float64
	Seed    uint64
}

// Float returns a pointer to v, for filling Config seeds.
func Float(v float64) *float64 { return &v }

func (c Config) clone() Config {
	for _, p := range []**float64{&c.LatSeed, &c.LonSeed, &c.AltSeed} {
		if *p != nil {
			*p = Float(**p)
		}
	}
	return c
}

// Generator produces samples from uniform distributions.
type Generator struct {
	cfg Config

	lat, lon, alt    distuv.Uniform
	accel, gyro, dac distuv.Uniform
}

// New creates a generator for cfg.
func New(cfg Config) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)

	return &Generator{
		cfg:   cfg.clone(),
		lat:   around(cfg.LatSeed, coordinateJitter, -90, 90, src),
		lon:   around(cfg.LonSeed, coordinateJitter, -180, 180, src),
		alt:   around(cfg.AltSeed, altitudeJitter, 0, 1000, src),
		accel: distuv.Uniform{Min: -10, Max: 10, Src: src},
		gyro:  distuv.Uniform{Min: -500, Max: 500, Src: src},
		dac:   distuv.Uniform{Min: 0, Max: 5, Src: src},
	}
}

func around(seed *float64, jitter, min, max float64, src rand.Source) distuv.Uniform {
	if seed != nil {
		return distuv.Uniform{Min: *seed - jitter, Max: *seed + jitter, Src: src}
	}
	return distuv.Uniform{Min: min, Max: max, Src: src}
}

// Config returns the configuration the generator was built with.
func (g *Generator) Config() Config {
	return g.cfg.clone()
}

// Sample draws one reading stamped at ts.
func (g *Generator) Sample(ts time.Time) sample.Sample {
	return sample.Sample{
		Timestamp: ts.Format(TimestampLayout),
		Latitude:  round2(g.lat.Rand()),
		Longitude: round2(g.lon.Rand()),
		Altitude:  g.alt.Rand(),
		AccelX:    g.accel.Rand(),
		AccelY:    g.accel.Rand(),
		AccelZ:    g.accel.Rand(),
		GyroX:     g.gyro.Rand(),
		GyroY:     g.gyro.Rand(),
		GyroZ:     g.gyro.Rand(),
		DAC1:      g.dac.Rand(),
		DAC2:      g.dac.Rand(),
		DAC3:      g.dac.Rand(),
		DAC4:      g.dac.Rand(),
	}
}

// Generate returns n samples stamped start, start+interval, ...
func (g *Generator) Generate(n int, start time.Time, interval time.Duration) sample.Sequence {
	if n <= 0 {
		return nil
	}
	seq := make(sample.Sequence, n)
	for i := range seq {
		seq[i] = g.Sample(start.Add(time.Duration(i) * interval))
	}
	return seq
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
