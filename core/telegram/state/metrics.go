package state

import "github.com/prometheus/client_golang/prometheus"

const (
	outcomeStarted   = "started"
	outcomeCompleted = "completed"
	outcomeCancelled = "cancelled"
	outcomeExited    = "exited"
	outcomeEvicted   = "evicted"
	outcomeFailed    = "failed"
	outcomeUnknown   = "unknown"
	outcomeForbidden = "forbidden"
)

// Metrics holds the executor's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	// Active tracks live sessions.
	Active prometheus.Gauge
	// Commands counts session outcomes.
	// Labels: command, outcome (started|completed|cancelled|exited|evicted|failed|unknown|forbidden)
	Commands *prometheus.CounterVec
	// Validation counts rejected replies.
	// Labels: command
	Validation *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coursebot_sessions_active",
			Help: "Number of command sessions currently in progress",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coursebot_commands_total",
			Help: "Command sessions by command and outcome",
		}, []string{"command", "outcome"}),
		Validation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coursebot_validation_errors_total",
			Help: "Replies rejected by step validation",
		}, []string{"command"}),
	}
	if reg != nil {
		reg.MustRegister(m.Active, m.Commands, m.Validation)
	}
	return m
}

func (m *Metrics) active(n int) {
	if m == nil {
		return
	}
	m.Active.Set(float64(n))
}

func (m *Metrics) outcome(command, outcome string) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(command, outcome).Inc()
}

func (m *Metrics) validation(command string) {
	if m == nil {
		return
	}
	m.Validation.WithLabelValues(command).Inc()
}
