package replay

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/banshee-data/mockdaq/internal/monitoring"
	"github.com/banshee-data/mockdaq/internal/sample"
	"github.com/banshee-data/mockdaq/internal/timeutil"
	"github.com/banshee-data/mockdaq/internal/transport"
)

// State is the lifecycle of a Sender within one run.
type State int32

const (
	StateIdle State = iota
	StateConnected
	StateStreaming
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}

// DefaultProgressEvery is how many samples pass between progress reports.
const DefaultProgressEvery = 100

// Progress is reported periodically while streaming and once after the final
// sample.
type Progress struct {
	Sent    int
	Total   int
	Percent float64
	Elapsed time.Duration
	// Rate is the achieved samples per second since the previous report.
	Rate float64
}

// Streamer sends a whole sequence over an open transport.
type Streamer interface {
	Stream(ctx context.Context, t transport.Transport, seq sample.Sequence) (int, error)
}

// Sender paces samples onto a transport. Sample i is sent no earlier than
// start + i*Interval, where start is taken just before sample 0. When the
// sender is behind schedule it sends immediately without sleeping. Time
// spent blocked inside Transport.Send is not compensated beyond that.
//
// A Sender is used by one goroutine at a time.
type Sender struct {
	Clock timeutil.Clock

	// Interval between samples; zero estimates it from the sequence.
	Interval time.Duration

	ProgressEvery int
	Progress      func(Progress)

	// Observer, if set, receives each sample's scheduled and actual offset
	// from start.
	Observer func(index int, scheduled, actual time.Duration)

	Metrics *monitoring.ReplayMetrics
	Status  *monitoring.RunStatus

	state atomic.Int32
}

// State returns the sender's current state.
func (s *Sender) State() State {
	return State(s.state.Load())
}

func (s *Sender) setState(st State) {
	s.state.Store(int32(st))
	s.Status.Update(func(r *monitoring.RunSnapshot) { r.State = st.String() })
}

func (s *Sender) clock() timeutil.Clock {
	if s.Clock == nil {
		return timeutil.RealClock{}
	}
	return s.Clock
}

// Stream sends every sample of seq over t, which must already be open. It
// returns the number of samples delivered. A failed send aborts the rest of
// the sequence and is returned as a *transport.WriteError; a cancelled ctx
// aborts with ctx.Err().
func (s *Sender) Stream(ctx context.Context, t transport.Transport, seq sample.Sequence) (int, error) {
	clock := s.clock()
	interval := s.Interval
	if interval <= 0 {
		interval = EstimateInterval(seq)
	}
	every := s.ProgressEvery
	if every <= 0 {
		every = DefaultProgressEvery
	}
	kind := t.Kind().String()
	total := len(seq)

	s.setState(StateConnected)
	s.Status.Update(func(r *monitoring.RunSnapshot) {
		r.Transport = kind
		r.Total = total
		r.Sent = 0
	})
	s.setState(StateStreaming)

	start := clock.Now()
	lastAt, lastSent := start, 0

	for i, smp := range seq {
		scheduled := time.Duration(i) * interval
		if wait := scheduled - clock.Since(start); wait > 0 {
			if err := clock.Sleep(ctx, wait); err != nil {
				s.setState(StateAborted)
				return i, err
			}
		} else if err := ctx.Err(); err != nil {
			s.setState(StateAborted)
			return i, err
		}

		actual := clock.Since(start)
		if err := t.Send(sample.Encode(smp)); err != nil {
			var we *transport.WriteError
			if !errors.As(err, &we) {
				err = &transport.WriteError{Kind: t.Kind(), Err: err}
			}
			s.setState(StateAborted)
			s.Status.Update(func(r *monitoring.RunSnapshot) { r.LastError = err.Error() })
			return i, err
		}

		sent := i + 1
		s.Metrics.SampleSent(kind)
		s.Metrics.ObserveLag((actual - scheduled).Seconds())
		if s.Observer != nil {
			s.Observer(i, scheduled, actual)
		}

		if sent%every == 0 || sent == total {
			now := clock.Now()
			p := Progress{
				Sent:    sent,
				Total:   total,
				Percent: float64(sent) / float64(total) * 100,
				Elapsed: now.Sub(start),
			}
			if window := now.Sub(lastAt); window > 0 {
				p.Rate = float64(sent-lastSent) / window.Seconds()
			}
			lastAt, lastSent = now, sent

			s.Metrics.SetProgress(float64(sent) / float64(total))
			s.Status.Update(func(r *monitoring.RunSnapshot) { r.Sent = sent })
			if s.Progress != nil {
				s.Progress(p)
			}
		}
	}

	s.setState(StateCompleted)
	return total, nil
}
