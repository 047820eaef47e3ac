package authapi

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts auth API outcomes. A nil *Metrics records nothing.
type Metrics struct {
	logins  *prometheus.CounterVec
	logouts *prometheus.CounterVec
}

// NewMetrics registers the auth counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "haven",
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "haven",
			Subsystem: "auth",
			Name:      "logouts_total",
			Help:      "Successful logouts by scope (device or all).",
		}, []string{"scope"}),
	}
	reg.MustRegister(m.logins, m.logouts)
	return m
}

func (m *Metrics) login(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) logout(scope string) {
	if m == nil {
		return
	}
	m.logouts.WithLabelValues(scope).Inc()
}
