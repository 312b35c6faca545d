package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AuthMetrics counts credential flow outcomes and lockouts. It satisfies usecase.AuthMetrics.
type AuthMetrics struct {
	Outcomes *prometheus.CounterVec
	Lockouts prometheus.Counter
}

// NewAuthMetrics registers the auth collectors with reg, or the default registerer when nil.
func NewAuthMetrics(reg prometheus.Registerer) (*AuthMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	outcomes, err := Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "auth",
		Name:      "outcomes_total",
		Help:      "Credential flow results partitioned by flow and outcome kind.",
	}, []string{"flow", "outcome"}))
	if err != nil {
		return nil, err
	}

	lockouts, err := Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "auth",
		Name:      "lockouts_total",
		Help:      "Accounts locked after reaching the failed attempt threshold.",
	}))
	if err != nil {
		return nil, err
	}

	return &AuthMetrics{Outcomes: outcomes, Lockouts: lockouts}, nil
}

func (m *AuthMetrics) ObserveOutcome(flow, outcome string) {
	if m == nil || m.Outcomes == nil {
		return
	}
	m.Outcomes.WithLabelValues(flow, outcome).Inc()
}

func (m *AuthMetrics) IncLockout() {
	if m == nil || m.Lockouts == nil {
		return
	}
	m.Lockouts.Inc()
}
