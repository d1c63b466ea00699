package replay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/mockdaq/internal/monitoring"
	"github.com/banshee-data/mockdaq/internal/sample"
	"github.com/banshee-data/mockdaq/internal/timeutil"
	"github.com/banshee-data/mockdaq/internal/transport"
)

var (
	// ErrEmptySequence is returned when there is nothing to replay.
	ErrEmptySequence = errors.New("no samples to replay")

	// ErrTransportsExhausted is returned when no transport in the plan
	// could be opened.
	ErrTransportsExhausted = errors.New("all transports exhausted")
)

// Policy selects the transport order for a run.
type Policy struct {
	Preferred    transport.Kind
	AutoFallback bool
}

// Order returns the transports to try, preferred first.
func (p Policy) Order() []transport.Kind {
	if p.Preferred == transport.KindNone {
		return nil
	}
	if !p.AutoFallback {
		return []transport.Kind{p.Preferred}
	}
	return []transport.Kind{p.Preferred, p.Preferred.Alternate()}
}

// Endpoint is a transport together with its connection retry budget.
type Endpoint struct {
	Transport  transport.Transport
	MaxRetries int
	RetryDelay time.Duration
}

// NewEndpoints builds the serial and network endpoints from their configs.
func NewEndpoints(sc transport.SerialConfig, nc transport.NetworkConfig) map[transport.Kind]Endpoint {
	return map[transport.Kind]Endpoint{
		transport.KindSerial: {
			Transport:  transport.NewSerial(sc),
			MaxRetries: sc.MaxRetries,
			RetryDelay: sc.RetryDelay,
		},
		transport.KindNetwork: {
			Transport:  transport.NewNetwork(nc),
			MaxRetries: nc.MaxRetries,
			RetryDelay: nc.RetryDelay,
		},
	}
}

// Attempt records one call to Transport.Open.
type Attempt struct {
	Transport transport.Kind
	Number    int
	Err       error
}

// Result summarises a run.
type Result struct {
	RunID   string
	Success bool
	// Transport is the transport that was opened, or KindNone.
	Transport   transport.Kind
	SamplesSent int
	Elapsed     time.Duration
	Attempts    []Attempt
}

// Manager runs the connect-retry-fallback plan and hands the first open
// transport to its Streamer.
type Manager struct {
	Policy    Policy
	Endpoints map[transport.Kind]Endpoint

	// Streamer defaults to a Sender sharing the manager's clock, metrics
	// and status.
	Streamer Streamer
	Clock    timeutil.Clock
	Metrics  *monitoring.ReplayMetrics
	Status   *monitoring.RunStatus

	// RunID labels log lines; a random id is used when empty.
	RunID string
}

func (m *Manager) clock() timeutil.Clock {
	if m.Clock == nil {
		return timeutil.RealClock{}
	}
	return m.Clock
}

func (m *Manager) streamer() Streamer {
	if m.Streamer != nil {
		return m.Streamer
	}
	return &Sender{Clock: m.Clock, Metrics: m.Metrics, Status: m.Status}
}

// Run replays seq. Each transport in the policy order gets up to MaxRetries
// open attempts separated by RetryDelay. The first successful open streams
// the whole sequence and ends the run whatever its outcome: a write failure
// is not retried on any transport.
func (m *Manager) Run(ctx context.Context, seq sample.Sequence) (Result, error) {
	clock := m.clock()
	start := clock.Now()
	res := Result{RunID: m.RunID}
	if res.RunID == "" {
		res.RunID = uuid.NewString()
	}
	if len(seq) == 0 {
		return res, ErrEmptySequence
	}

	plan := m.Policy.Order()
	if len(plan) == 0 {
		return res, fmt.Errorf("%w: no transport selected", ErrTransportsExhausted)
	}

	var failures []string
	for step, kind := range plan {
		if step > 0 {
			m.Metrics.Fallback()
			monitoring.Logf("replay %s: falling back to %s", res.RunID, kind)
		}

		ep, ok := m.Endpoints[kind]
		if !ok || ep.Transport == nil {
			monitoring.Logf("replay %s: no %s transport configured", res.RunID, kind)
			failures = append(failures, fmt.Sprintf("%s: not configured", kind))
			continue
		}

		retries := ep.MaxRetries
		if retries < 1 {
			retries = 1
		}

		var lastErr error
		for attempt := 1; attempt <= retries; attempt++ {
			m.Status.Update(func(r *monitoring.RunSnapshot) {
				r.Transport = kind.String()
				r.Attempt = attempt
			})
			monitoring.Logf("replay %s: opening %s (attempt %d/%d)", res.RunID, kind, attempt, retries)

			err := ep.Transport.Open(ctx)
			res.Attempts = append(res.Attempts, Attempt{Transport: kind, Number: attempt, Err: err})
			if err == nil {
				m.Metrics.OpenAttempt(kind.String(), monitoring.OutcomeSuccess)
				return m.stream(ctx, ep.Transport, attempt, seq, res, start)
			}

			lastErr = err
			m.Metrics.OpenAttempt(kind.String(), monitoring.OutcomeFailure)
			m.Status.Update(func(r *monitoring.RunSnapshot) { r.LastError = err.Error() })
			monitoring.Logf("replay %s: %s attempt %d/%d failed: %v", res.RunID, kind, attempt, retries, err)

			if ctxErr := ctx.Err(); ctxErr != nil {
				res.Elapsed = clock.Since(start)
				return res, fmt.Errorf("replay cancelled while opening %s: %w", kind, ctxErr)
			}
			if attempt == retries {
				break
			}
			if ep.RetryDelay > 0 {
				err = clock.Sleep(ctx, ep.RetryDelay)
			} else {
				err = ctx.Err()
			}
			if err != nil {
				res.Elapsed = clock.Since(start)
				return res, fmt.Errorf("replay cancelled while retrying %s: %w", kind, err)
			}
		}
		failures = append(failures, fmt.Sprintf("%s failed after %d attempts: %v", kind, retries, lastErr))
	}

	res.Elapsed = clock.Since(start)
	m.Status.Update(func(r *monitoring.RunSnapshot) {
		r.State = StateAborted.String()
		r.Transport = transport.KindNone.String()
	})
	return res, fmt.Errorf("%w: %s", ErrTransportsExhausted, strings.Join(failures, "; "))
}

func (m *Manager) stream(ctx context.Context, t transport.Transport, attempt int, seq sample.Sequence, res Result, start time.Time) (Result, error) {
	defer func() {
		if err := t.Close(); err != nil {
			monitoring.Logf("replay %s: failed to close %s: %v", res.RunID, t.Kind(), err)
		}
	}()

	kind := t.Kind()
	endpoint := kind.String()
	if a, ok := t.(transport.Addresser); ok && a.Addr() != "" {
		endpoint = fmt.Sprintf("%s %s", kind, a.Addr())
	}
	monitoring.Logf("replay %s: connected over %s (attempt %d), streaming %d samples", res.RunID, endpoint, attempt, len(seq))

	n, err := m.streamer().Stream(ctx, t, seq)
	res.Transport = kind
	res.SamplesSent = n
	res.Elapsed = m.clock().Since(start)
	if err != nil {
		return res, fmt.Errorf("replay over %s (attempt %d) aborted after %d of %d samples: %w", kind, attempt, n, len(seq), err)
	}
	res.Success = true
	return res, nil
}
