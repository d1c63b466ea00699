package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/banshee-data/mockdaq/internal/config"
	"github.com/banshee-data/mockdaq/internal/db"
	"github.com/banshee-data/mockdaq/internal/monitoring"
	"github.com/banshee-data/mockdaq/internal/replay"
	"github.com/banshee-data/mockdaq/internal/report"
	"github.com/banshee-data/mockdaq/internal/security"
	"github.com/banshee-data/mockdaq/internal/transport"
)

// newEndpoints is replaced in tests.
var newEndpoints = replay.NewEndpoints

type replayOptions struct {
	dbPath      string
	configPath  string
	prefer      string
	fallback    bool
	host        string
	port        int
	serialPort  string
	baud        int
	retries     int
	retryDelay  time.Duration
	interval    time.Duration
	progress    int
	debugListen string
	reportPath  string
	logFile     string

	set map[string]bool
}

func parseReplayFlags(args []string, out io.Writer) (*replayOptions, error) {
	o := &replayOptions{}
	fs := newFlagSet("replay", out)
	fs.StringVar(&o.dbPath, "db", defaultDBPath, "SQLite database path")
	fs.StringVar(&o.configPath, "config", "", "Config file (.json, .yaml or .yml)")
	fs.StringVar(&o.prefer, "prefer", "", "Preferred transport: usb or wifi (overrides config)")
	fs.BoolVar(&o.fallback, "fallback", true, "Fall back to the other transport if the preferred one cannot open (overrides config)")
	fs.StringVar(&o.host, "host", "", "Collector TCP host (overrides config)")
	fs.IntVar(&o.port, "port", 0, "Collector TCP port (overrides config)")
	fs.StringVar(&o.serialPort, "serial-port", "", "Serial device path; skips USB discovery (overrides config)")
	fs.IntVar(&o.baud, "baud", 0, "Serial baud rate (overrides config)")
	fs.IntVar(&o.retries, "retries", 0, "Open attempts per transport (overrides config)")
	fs.DurationVar(&o.retryDelay, "retry-delay", 0, "Delay between open attempts (overrides config)")
	fs.DurationVar(&o.interval, "interval", 0, "Fixed send interval; estimated from timestamps when unset")
	fs.IntVar(&o.progress, "progress-every", replay.DefaultProgressEvery, "Log progress every N samples")
	fs.StringVar(&o.debugListen, "debug-listen", "", "Serve /debug/ status, metrics and SQL console on this address")
	fs.StringVar(&o.reportPath, "report", "", "Write a timing chart (.html or .png)")
	fs.StringVar(&o.logFile, "log-file", "", "Also log to this file, rotated at 10MB")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	o.set = setFlags(fs)
	return o, nil
}

// resolve merges the config file with flags given on the command line.
func (o *replayOptions) resolve() (replay.Policy, transport.SerialConfig, transport.NetworkConfig, error) {
	var (
		policy replay.Policy
		sc     transport.SerialConfig
		nc     transport.NetworkConfig
	)
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return policy, sc, nc, err
	}
	policy, sc, nc = cfg.Policy(), cfg.SerialConfig(), cfg.NetworkConfig()

	if o.set["prefer"] {
		kind, err := transport.ParseKind(o.prefer)
		if err != nil {
			return policy, sc, nc, &config.ConfigError{Field: "-prefer", Err: err}
		}
		policy.Preferred = kind
	}
	if o.set["fallback"] {
		policy.AutoFallback = o.fallback
	}
	if o.set["host"] {
		nc.Host = o.host
	}
	if o.set["port"] {
		if o.port < 1 || o.port > 65535 {
			return policy, sc, nc, &config.ConfigError{Field: "-port", Err: fmt.Errorf("port %d out of range 1-65535", o.port)}
		}
		nc.Port = o.port
	}
	if o.set["serial-port"] {
		sc.Port = o.serialPort
	}
	if o.set["baud"] {
		if o.baud <= 0 {
			return policy, sc, nc, &config.ConfigError{Field: "-baud", Err: fmt.Errorf("must be positive, got %d", o.baud)}
		}
		sc.BaudRate = o.baud
	}
	if o.set["retries"] {
		if o.retries < 1 {
			return policy, sc, nc, &config.ConfigError{Field: "-retries", Err: fmt.Errorf("must be positive, got %d", o.retries)}
		}
		sc.MaxRetries, nc.MaxRetries = o.retries, o.retries
	}
	if o.set["retry-delay"] {
		if o.retryDelay < 0 {
			return policy, sc, nc, &config.ConfigError{Field: "-retry-delay", Err: fmt.Errorf("must not be negative, got %s", o.retryDelay)}
		}
		sc.RetryDelay, nc.RetryDelay = o.retryDelay, o.retryDelay
	}
	return policy, sc, nc, nil
}

func runReplay(ctx context.Context, args []string, out io.Writer) error {
	o, err := parseReplayFlags(args, out)
	if err != nil {
		return err
	}
	if o.logFile != "" {
		lj := monitoring.SetLogFile(o.logFile, 10, 3)
		defer lj.Close()
	}
	if o.reportPath != "" {
		if err := security.ValidateOutputPath(o.reportPath, ".html", ".png"); err != nil {
			return err
		}
	}

	policy, sc, nc, err := o.resolve()
	if err != nil {
		return err
	}

	database, err := db.NewDB(o.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	seq, err := database.FetchOrderedSamples(ctx)
	if errors.Is(err, db.ErrNoSamples) {
		return fmt.Errorf("%w in %s; run 'mockdaq generate' first", err, o.dbPath)
	}
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	reg := prometheus.NewRegistry()
	metrics := monitoring.NewReplayMetrics(reg)
	status := monitoring.NewRunStatus(runID)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if o.debugListen != "" {
		mux := http.NewServeMux()
		monitoring.AttachDebugRoutes(mux, status, reg)
		if err := database.AttachAdminRoutes(mux, o.dbPath); err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := monitoring.ServeDebug(runCtx, o.debugListen, mux); err != nil {
				monitoring.Logf("debug server: %v", err)
			}
		}()
	}

	var rec report.Recorder
	sender := &replay.Sender{
		Interval:      o.interval,
		ProgressEvery: o.progress,
		Metrics:       metrics,
		Status:        status,
		Progress: func(p replay.Progress) {
			monitoring.Logf("replay %s: sent %s/%s samples (%.1f%%) in %s, %.1f samples/s",
				runID, humanize.Comma(int64(p.Sent)), humanize.Comma(int64(p.Total)),
				p.Percent, p.Elapsed.Round(time.Millisecond), p.Rate)
		},
	}
	if o.reportPath != "" {
		sender.Observer = rec.Observe
	}

	interval := o.interval
	if interval <= 0 {
		interval = replay.EstimateInterval(seq)
	}
	monitoring.Logf("replay %s: %s samples at %s intervals, preferring %s (fallback %t)",
		runID, humanize.Comma(int64(len(seq))), interval, policy.Preferred, policy.AutoFallback)

	m := &replay.Manager{
		Policy:    policy,
		Endpoints: newEndpoints(sc, nc),
		Streamer:  sender,
		Metrics:   metrics,
		Status:    status,
		RunID:     runID,
	}
	res, runErr := m.Run(runCtx, seq)
	cancel()
	wg.Wait()

	printResult(out, res, len(seq))
	if o.reportPath != "" && len(rec.Points()) > 0 {
		points := rec.Points()
		if err := report.Write(o.reportPath, points); err != nil {
			monitoring.Logf("failed to write timing report: %v", err)
		} else {
			fmt.Fprintf(out, "Timing: %s\nReport written to %s\n", report.Summarize(points), o.reportPath)
		}
	}
	return runErr
}

func printResult(w io.Writer, res replay.Result, total int) {
	outcome := "failed"
	if res.Success {
		outcome = "succeeded"
	}
	fmt.Fprintf(w, "Replay %s %s: %d/%d samples over %s in %s\n",
		res.RunID, outcome, res.SamplesSent, total, res.Transport, res.Elapsed.Round(time.Millisecond))
	for _, a := range res.Attempts {
		result := "ok"
		if a.Err != nil {
			result = a.Err.Error()
		}
		fmt.Fprintf(w, "  %s attempt %d: %s\n", a.Transport, a.Number, result)
	}
}
