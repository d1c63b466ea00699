package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/banshee-data/mockdaq/internal/config"
	"github.com/banshee-data/mockdaq/internal/generate"
	"github.com/banshee-data/mockdaq/internal/live"
	"github.com/banshee-data/mockdaq/internal/monitoring"
)

func runLive(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("live", out)
	configPath := fs.String("config", "", "Config file (.json, .yaml or .yml)")
	addr := fs.String("addr", "", "Collector WebSocket URL, ws:// or wss:// (overrides config)")
	maxTries := fs.Int("max-tries", 0, "Reconnect attempts after a failed dial (overrides config)")
	interval := fs.Duration("interval", 0, "Time between samples (overrides config)")
	retryDelay := fs.Duration("retry-delay", 0, "Delay between dial attempts (overrides config)")
	n := fs.Int("n", 0, "Stop after this many samples (0 streams until interrupted)")
	seed := fs.Uint64("seed", 0, "Random seed (0 uses the clock)")
	logFile := fs.String("log-file", "", "Also log to this file, rotated at 10MB")
	var lat, lon, alt floatFlag
	fs.Var(&lat, "lat", "Latitude seed; samples fall within ±1 degree")
	fs.Var(&lon, "lon", "Longitude seed; samples fall within ±1 degree")
	fs.Var(&alt, "alt", "Altitude seed; samples fall within ±10 m")
	if err := fs.Parse(args); err != nil {
		return err
	}
	set := setFlags(fs)

	if *logFile != "" {
		lj := monitoring.SetLogFile(*logFile, 10, 3)
		defer lj.Close()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	lc := cfg.LiveConfig()
	if set["addr"] {
		if err := live.ValidateAddr(*addr); err != nil {
			return &config.ConfigError{Field: "-addr", Err: err}
		}
		lc.ForwardAddr = *addr
	}
	if set["max-tries"] {
		if *maxTries < 0 {
			return &config.ConfigError{Field: "-max-tries", Err: fmt.Errorf("must not be negative, got %d", *maxTries)}
		}
		lc.MaxTries = *maxTries
	}
	if set["interval"] {
		if *interval <= 0 {
			return &config.ConfigError{Field: "-interval", Err: fmt.Errorf("must be positive, got %s", *interval)}
		}
		lc.Interval = *interval
	}
	if set["retry-delay"] {
		if *retryDelay < 0 {
			return &config.ConfigError{Field: "-retry-delay", Err: fmt.Errorf("must not be negative, got %s", *retryDelay)}
		}
		lc.RetryDelay = *retryDelay
	}
	if *n < 0 {
		return fmt.Errorf("-n must not be negative, got %d", *n)
	}

	monitoring.Logf("live: streaming to %s every %s (max tries %d)", lc.ForwardAddr, lc.Interval, lc.MaxTries)
	f := &live.Forwarder{
		Config:    lc,
		Generator: generate.New(generate.Config{LatSeed: lat.v, LonSeed: lon.v, AltSeed: alt.v, Seed: *seed}),
		Limit:     *n,
	}
	res, err := f.Run(ctx)
	fmt.Fprintf(out, "Live stream to %s: %s samples over %d connection(s) in %s\n",
		lc.ForwardAddr, humanize.Comma(int64(res.Sent)), res.Connects, res.Elapsed.Round(time.Millisecond))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
