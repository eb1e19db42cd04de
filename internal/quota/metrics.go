// StudyForge | 2026
// metrics.go

package quota

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts enforcement outcomes per content kind. Full-tier
// checks short-circuit and are recorded under the "bypass" outcome so
// guest pressure stays visible on its own.
type Metrics struct {
	decisions *prometheus.CounterVec
	warnings  *prometheus.CounterVec
}

const (
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
	OutcomeBypass  = "bypass"
	OutcomeError   = "error"
)

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "studyforge",
				Subsystem: "quota",
				Name:      "decisions_total",
				Help:      "Quota enforcement decisions by content kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		warnings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "studyforge",
				Subsystem: "quota",
				Name:      "warnings_total",
				Help:      "Near-limit warnings surfaced to guests by content kind.",
			},
			[]string{"kind"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.decisions, m.warnings)
	}

	return m
}

func (m *Metrics) Decision(kind ContentKind, outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(string(kind), outcome).Inc()
}

func (m *Metrics) Warning(kind ContentKind) {
	if m == nil {
		return
	}
	m.warnings.WithLabelValues(string(kind)).Inc()
}
