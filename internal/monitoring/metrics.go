package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Open attempt outcomes recorded by ReplayMetrics.OpenAttempt.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// ReplayMetrics holds the Prometheus collectors for a replay run. A nil
// *ReplayMetrics is valid and records nothing.
type ReplayMetrics struct {
	SamplesSent  *prometheus.CounterVec
	OpenAttempts *prometheus.CounterVec
	Fallbacks    prometheus.Counter
	SendLag      prometheus.Histogram
	Progress     prometheus.Gauge
}

// NewReplayMetrics creates the replay collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewReplayMetrics(reg prometheus.Registerer) *ReplayMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &ReplayMetrics{
		SamplesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mockdaq_samples_sent_total",
			Help: "Samples written to the collector.",
		}, []string{"transport"}),
		OpenAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mockdaq_open_attempts_total",
			Help: "Transport open attempts by outcome.",
		}, []string{"transport", "outcome"}),
		Fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mockdaq_fallbacks_total",
			Help: "Runs that moved on to the alternate transport.",
		}),
		SendLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mockdaq_send_lag_seconds",
			Help:    "Delay between a sample's scheduled slot and its send.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		Progress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mockdaq_replay_progress_ratio",
			Help: "Fraction of the current sequence sent.",
		}),
	}
	reg.MustRegister(m.SamplesSent, m.OpenAttempts, m.Fallbacks, m.SendLag, m.Progress)
	return m
}

func (m *ReplayMetrics) SampleSent(transport string) {
	if m == nil {
		return
	}
	m.SamplesSent.WithLabelValues(transport).Inc()
}

func (m *ReplayMetrics) OpenAttempt(transport, outcome string) {
	if m == nil {
		return
	}
	m.OpenAttempts.WithLabelValues(transport, outcome).Inc()
}

func (m *ReplayMetrics) Fallback() {
	if m == nil {
		return
	}
	m.Fallbacks.Inc()
}

// ObserveLag records how late a send was relative to its slot, in seconds.
func (m *ReplayMetrics) ObserveLag(seconds float64) {
	if m == nil {
		return
	}
	if seconds < 0 {
		seconds = 0
	}
	m.SendLag.Observe(seconds)
}

func (m *ReplayMetrics) SetProgress(ratio float64) {
	if m == nil {
		return
	}
	m.Progress.Set(ratio)
}
