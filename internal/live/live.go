// Package live streams freshly generated samples to a collector over a
// WebSocket, one JSON message per interval, reconnecting when the link drops.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/banshee-data/mockdaq/internal/generate"
	"github.com/banshee-data/mockdaq/internal/monitoring"
	"github.com/banshee-data/mockdaq/internal/timeutil"
)

// TransportLabel is the metrics label for live sends and connects.
const TransportLabel = "websocket"

const (
	DefaultForwardAddr = "ws://127.0.0.1:8080/ws"
	DefaultMaxTries    = 5
	DefaultRetryDelay  = time.Second
)

// HelloMessage is written once on every new connection, before any sample.
var HelloMessage = []byte("S")

// ErrTriesExhausted is returned when the collector stays unreachable after
// MaxTries reconnect attempts.
var ErrTriesExhausted = errors.New("connect attempts exhausted")

// Config controls a live run.
type Config struct {
	ForwardAddr string
	// MaxTries is how many further dials follow a failed one before the run
	// gives up. It resets after every successful connect.
	MaxTries   int
	Interval   time.Duration
	RetryDelay time.Duration
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		ForwardAddr: DefaultForwardAddr,
		MaxTries:    DefaultMaxTries,
		Interval:    generate.DefaultInterval,
		RetryDelay:  DefaultRetryDelay,
	}
}

// ValidateAddr checks that addr is an absolute ws:// or wss:// URL.
func ValidateAddr(addr string) error {
	u, err := url.Parse(addr)
	if err != nil {
		return fmt.Errorf("invalid forward address %q: %w", addr, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("forward address %q must use ws:// or wss://", addr)
	}
	if u.Host == "" {
		return fmt.Errorf("forward address %q has no host", addr)
	}
	return nil
}

// Conn is an open link to the collector.
type Conn interface {
	Write(ctx context.Context, msg []byte) error
	Close() error
}

// Dialer opens a Conn to addr.
type Dialer func(ctx context.Context, addr string) (Conn, error)

// Result summarises a live run.
type Result struct {
	Sent     int
	Connects int
	Elapsed  time.Duration
}

// Forwarder generates one sample per Interval and writes it to the collector
// as JSON. A failed write drops the connection and the next iteration dials
// again; a failed dial waits RetryDelay before the next one.
type Forwarder struct {
	Config    Config
	Generator *generate.Generator

	// Dial defaults to DialWebSocket.
	Dial  Dialer
	Clock timeutil.Clock

	// Limit stops the run after this many samples. Zero runs until ctx ends.
	Limit int

	Metrics *monitoring.ReplayMetrics
}

func (f *Forwarder) clock() timeutil.Clock {
	if f.Clock == nil {
		return timeutil.RealClock{}
	}
	return f.Clock
}

// Run streams until Limit samples are sent, ctx is done, or the connect
// attempts run out. Cancellation is returned as ctx.Err().
func (f *Forwarder) Run(ctx context.Context) (Result, error) {
	clock := f.clock()
	dial := f.Dial
	if dial == nil {
		dial = DialWebSocket
	}
	cfg := f.Config
	addr := cfg.ForwardAddr

	var (
		res   Result
		conn  Conn
		tries = cfg.MaxTries
		start = clock.Now()
	)
	done := func(err error) (Result, error) {
		if conn != nil {
			if cerr := conn.Close(); cerr != nil {
				monitoring.Logf("live: failed to close connection to %s: %v", addr, cerr)
			}
		}
		res.Elapsed = clock.Since(start)
		return res, err
	}

	for f.Limit <= 0 || res.Sent < f.Limit {
		if err := ctx.Err(); err != nil {
			return done(err)
		}

		if conn == nil {
			c, err := dial(ctx, addr)
			if err != nil {
				f.Metrics.OpenAttempt(TransportLabel, monitoring.OutcomeFailure)
				if ctx.Err() != nil {
					return done(ctx.Err())
				}
				monitoring.Logf("live: failed to connect to %s: %v", addr, err)
				if tries <= 0 {
					return done(fmt.Errorf("live %s: %w after %d retries: %v", addr, ErrTriesExhausted, cfg.MaxTries, err))
				}
				tries--
				monitoring.Logf("live: retrying in %s (%d left)", cfg.RetryDelay, tries)
				if err := clock.Sleep(ctx, cfg.RetryDelay); err != nil {
					return done(err)
				}
				continue
			}
			f.Metrics.OpenAttempt(TransportLabel, monitoring.OutcomeSuccess)
			conn = c
			tries = cfg.MaxTries
			res.Connects++
			monitoring.Logf("live: connected to %s", addr)
			if err := conn.Write(ctx, HelloMessage); err != nil {
				monitoring.Logf("live: failed to send initial message: %v", err)
			}
		}

		tick := clock.Now()
		msg, err := json.Marshal(f.Generator.Sample(tick.UTC()))
		if err != nil {
			return done(fmt.Errorf("failed to encode sample: %w", err))
		}
		if err := conn.Write(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return done(ctx.Err())
			}
			monitoring.Logf("live: failed to send to %s: %v", addr, err)
			if cerr := conn.Close(); cerr != nil {
				monitoring.Logf("live: failed to close connection to %s: %v", addr, cerr)
			}
			conn = nil
			continue
		}
		res.Sent++
		f.Metrics.SampleSent(TransportLabel)

		if wait := cfg.Interval - clock.Since(tick); wait > 0 {
			if err := clock.Sleep(ctx, wait); err != nil {
				return done(err)
			}
		}
	}
	return done(nil)
}
