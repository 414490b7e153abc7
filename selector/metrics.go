package selector

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MaxCandidateLabels caps the distinct candidate label values. Choices of
// candidates seen after the cap are counted under OtherCandidateLabel.
const MaxCandidateLabels = 100

// OtherCandidateLabel is the candidate label for choices past the cap.
const OtherCandidateLabel = "_other"

// Metrics contains the prometheus metrics for the selector
type Metrics struct {
	Choices         *prometheus.CounterVec
	Errors          *prometheus.CounterVec
	RecencyFallback prometheus.Counter
	ChooseDuration  prometheus.Histogram

	mu     sync.Mutex
	labels map[string]struct{}
}

// NewMetrics creates and registers the selector metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		labels: make(map[string]struct{}),

		Choices: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nextspeaker_choices_total",
				Help: "Total number of times each candidate was chosen",
			},
			[]string{"candidate"},
		),

		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nextspeaker_choose_errors_total",
				Help: "Total number of failed choices by error kind",
			},
			[]string{"kind"},
		),

		// every candidate was in the recency window
		RecencyFallback: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "nextspeaker_recency_fallback_total",
				Help: "Total number of choices where recency exclusion was skipped",
			},
		),

		ChooseDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "nextspeaker_choose_duration_seconds",
				Help:    "Time spent choosing a candidate in seconds",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
		),
	}

	reg.MustRegister(
		m.Choices,
		m.Errors,
		m.RecencyFallback,
		m.ChooseDuration,
	)

	return m
}

// TrackChoice records the outcome of one Choose call
func (m *Metrics) TrackChoice(name string, err error, duration time.Duration) {
	m.ChooseDuration.Observe(duration.Seconds())
	if err != nil {
		m.Errors.WithLabelValues(errorKind(err)).Inc()
		return
	}
	m.Choices.WithLabelValues(m.candidateLabel(name)).Inc()
}

func (m *Metrics) candidateLabel(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.labels[name]; ok {
		return name
	}
	if len(m.labels) >= MaxCandidateLabels {
		return OtherCandidateLabel
	}
	m.labels[name] = struct{}{}
	return name
}

// TrackRecencyFallback records that every candidate was recent
func (m *Metrics) TrackRecencyFallback() {
	m.RecencyFallback.Inc()
}
