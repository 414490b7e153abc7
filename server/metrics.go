package server

import (
	"github.com/prometheus/client_golang/prometheus"

	"go.nextspeaker.dev/nextspeaker/roster"
)

// Metrics has gauges describing the stored roster
type Metrics struct {
	Candidates    prometheus.Gauge
	HistoryLength prometheus.Gauge
	Halflife      prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Candidates: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nextspeaker_roster_candidates",
			Help: "Number of candidates in the roster",
		}),
		HistoryLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nextspeaker_roster_history_length",
			Help: "Number of selections in the roster history",
		}),
		Halflife: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nextspeaker_roster_halflife",
			Help: "History halflife in selections",
		}),
	}

	reg.MustRegister(m.Candidates, m.HistoryLength, m.Halflife)

	return m
}

func (m *Metrics) TrackRoster(r roster.Roster) {
	m.Candidates.Set(float64(len(r.Candidates)))
	m.HistoryLength.Set(float64(len(r.History)))
	m.Halflife.Set(r.Halflife)
}
