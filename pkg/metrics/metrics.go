package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the intake pipeline collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	messagesTotal    *prometheus.CounterVec
	duplicatesTotal  prometheus.Counter
	rateLimitedTotal prometheus.Counter
	droppedTotal     *prometheus.CounterVec
	grievancesTotal  *prometheus.CounterVec
	aiParseTotal     *prometheus.CounterVec
	turnDuration     *prometheus.HistogramVec
	storeDegraded    prometheus.Gauge
	sendErrorsTotal  prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		messagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "igrs_inbound_messages_total",
				Help: "Inbound WhatsApp messages accepted for processing, by type.",
			},
			[]string{"type"},
		),
		duplicatesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "igrs_duplicate_messages_total",
			Help: "Inbound messages dropped as redeliveries.",
		}),
		rateLimitedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "igrs_rate_limited_messages_total",
			Help: "Inbound messages rejected by the per-user rate limit.",
		}),
		droppedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "igrs_dropped_jobs_total",
				Help: "Jobs rejected because a worker queue was full.",
			},
			[]string{"kind"},
		),
		grievancesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "igrs_grievances_created_total",
				Help: "Grievances created, by source.",
			},
			[]string{"source"},
		),
		aiParseTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "igrs_ai_parse_total",
				Help: "AI free-form parse jobs, by outcome.",
			},
			[]string{"outcome"},
		),
		turnDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "igrs_job_duration_seconds",
				Help:    "Duration of worker jobs, by kind.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		storeDegraded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "igrs_session_store_degraded",
			Help: "1 while the session store runs on the in-memory fallback.",
		}),
		sendErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "igrs_outbound_send_errors_total",
			Help: "Outbound messages that failed after retries.",
		}),
	}
}

func (m *Metrics) IncMessage(kind string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncDuplicate() {
	if m == nil {
		return
	}
	m.duplicatesTotal.Inc()
}

func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.rateLimitedTotal.Inc()
}

func (m *Metrics) IncDropped(kind string) {
	if m == nil {
		return
	}
	m.droppedTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncGrievance(source string) {
	if m == nil {
		return
	}
	m.grievancesTotal.WithLabelValues(source).Inc()
}

// Outcomes recorded by IncAIParse.
const (
	AIParseComplete = "complete"
	AIParsePartial  = "partial"
	AIParseFailed   = "failed"
	AIParseAborted  = "aborted"
)

func (m *Metrics) IncAIParse(outcome string) {
	if m == nil {
		return
	}
	m.aiParseTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveJob(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.turnDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) SetStoreDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.storeDegraded.Set(1)
		return
	}
	m.storeDegraded.Set(0)
}

func (m *Metrics) IncSendError() {
	if m == nil {
		return
	}
	m.sendErrorsTotal.Inc()
}
