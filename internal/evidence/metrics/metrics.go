package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the evidence module.
type Metrics struct {
	// Upload outcomes by evidence type and result
	Uploads *prometheus.CounterVec

	// Full upload pipeline latency (validate through audit)
	UploadLatency prometheus.Histogram

	// Artifact retrievals by result ("ok", "integrity_failure", "not_found")
	ArtifactReads *prometheus.CounterVec

	// Integrity failures deserve their own counter for alerting
	IntegrityFailures prometheus.Counter
}

// New creates a Metrics instance with all evidence module metrics registered.
func New() *Metrics {
	return &Metrics{
		Uploads: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pfascert_evidence_uploads_total",
			Help: "Total evidence uploads by type and outcome",
		}, []string{"type", "outcome"}),

		UploadLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pfascert_evidence_upload_duration_seconds",
			Help:    "Duration of the full evidence upload pipeline",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		ArtifactReads: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pfascert_evidence_artifact_reads_total",
			Help: "Total artifact retrievals by result",
		}, []string{"result"}),

		IntegrityFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pfascert_evidence_integrity_failures_total",
			Help: "Total hash mismatches detected on artifact reads",
		}),
	}
}

// IncrementUpload records an upload outcome.
func (m *Metrics) IncrementUpload(evidenceType, outcome string) {
	if m != nil {
		m.Uploads.WithLabelValues(evidenceType, outcome).Inc()
	}
}

// ObserveUploadLatency records the duration of an upload.
func (m *Metrics) ObserveUploadLatency(d time.Duration) {
	if m != nil {
		m.UploadLatency.Observe(d.Seconds())
	}
}

// IncrementArtifactRead records an artifact retrieval result.
func (m *Metrics) IncrementArtifactRead(result string) {
	if m != nil {
		m.ArtifactReads.WithLabelValues(result).Inc()
	}
}

// IncrementIntegrityFailure records a hash mismatch.
func (m *Metrics) IncrementIntegrityFailure() {
	if m != nil {
		m.IntegrityFailures.Inc()
	}
}
