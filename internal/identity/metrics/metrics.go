package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the identity pipeline.
type Metrics struct {
	PayloadsParsed        *prometheus.CounterVec
	CredentialsDetected   prometheus.Counter
	ValidationsTotal      prometheus.Counter
	ValidationScores      prometheus.Histogram
	ReconciliationsTotal  *prometheus.CounterVec
	CredentialsMatched    prometheus.Counter
	PresentationsCreated  *prometheus.CounterVec
	IdentitiesCreated     prometheus.Counter
}

// New creates and registers all identity pipeline metrics.
func New() *Metrics {
	return &Metrics{
		PayloadsParsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idem_payloads_parsed_total",
			Help: "Total payloads processed, by outcome (parsed, rejected, credential)",
		}, []string{"outcome"}),
		CredentialsDetected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "idem_credentials_detected_total",
			Help: "Total payloads recognized as verifiable credentials",
		}),
		ValidationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "idem_validations_total",
			Help: "Total identity record validations run",
		}),
		ValidationScores: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "idem_validation_score",
			Help:    "Distribution of validation scores",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
		ReconciliationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idem_reconciliations_total",
			Help: "Total reconciliation runs, by result (merged, no_match, failed)",
		}, []string{"result"}),
		CredentialsMatched: promauto.NewCounter(prometheus.CounterOpts{
			Name: "idem_reconciliation_credentials_matched_total",
			Help: "Total credentials matched across reconciliation runs",
		}),
		PresentationsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idem_presentations_created_total",
			Help: "Total presentations built, by mode (full, selective)",
		}, []string{"mode"}),
		IdentitiesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "idem_identities_created_total",
			Help: "Total identity records created from ingested payloads",
		}),
	}
}

func (m *Metrics) ObservePayloadParsed(outcome string) {
	m.PayloadsParsed.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementCredentialsDetected() {
	m.CredentialsDetected.Inc()
}

func (m *Metrics) ObserveValidation(score int) {
	m.ValidationsTotal.Inc()
	m.ValidationScores.Observe(float64(score))
}

func (m *Metrics) ObserveReconciliation(result string, matched int) {
	m.ReconciliationsTotal.WithLabelValues(result).Inc()
	if matched > 0 {
		m.CredentialsMatched.Add(float64(matched))
	}
}

func (m *Metrics) IncrementPresentations(mode string) {
	m.PresentationsCreated.WithLabelValues(mode).Inc()
}

func (m *Metrics) IncrementIdentitiesCreated() {
	m.IdentitiesCreated.Inc()
}
