package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	tele "gopkg.in/telebot.v4"
)

// UpdateMetrics counts inbound updates. A nil *UpdateMetrics records nothing.
type UpdateMetrics struct {
	// Updates counts updates by kind (message|callback|other).
	Updates *prometheus.CounterVec
	// Duration observes how long middleware and handlers took per update.
	Duration prometheus.Histogram
	// Rejected counts updates dropped before routing.
	// Labels: reason (rate_limited|banned)
	Rejected *prometheus.CounterVec
}

// NewUpdateMetrics creates the collectors and registers them with reg when it
// is not nil.
func NewUpdateMetrics(reg prometheus.Registerer) *UpdateMetrics {
	m := &UpdateMetrics{
		Updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coursebot_updates_total",
			Help: "Telegram updates received by kind",
		}, []string{"kind"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "coursebot_update_duration_seconds",
			Help:    "Time spent handling a Telegram update",
			Buckets: prometheus.DefBuckets,
		}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coursebot_updates_rejected_total",
			Help: "Telegram updates dropped before routing",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.Updates, m.Duration, m.Rejected)
	}
	return m
}

// Middleware counts the update and observes its handling time.
func (m *UpdateMetrics) Middleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if m == nil {
			return next(c)
		}
		m.Updates.WithLabelValues(updateKind(c.Update())).Inc()
		start := time.Now()
		err := next(c)
		m.Duration.Observe(time.Since(start).Seconds())
		return err
	}
}

func (m *UpdateMetrics) reject(reason string) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(reason).Inc()
}

func updateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	}
	return "other"
}
