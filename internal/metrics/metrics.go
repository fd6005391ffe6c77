package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks import job progress and geocoder outcomes. It implements
// job.Recorder and geocode.Recorder.
type Metrics struct {
	ImportItems    *prometheus.CounterVec
	GeocodeLookups *prometheus.CounterVec
	Batches        prometheus.Counter
	Running        prometheus.Gauge
}

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ImportItems: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parasol_import_items_total",
			Help: "Records processed by the import job, by result (imported, skipped, error)",
		}, []string{"result"}),
		GeocodeLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parasol_geocode_lookups_total",
			Help: "Geocoder lookups by result (hit, miss, error)",
		}, []string{"result"}),
		Batches: factory.NewCounter(prometheus.CounterOpts{
			Name: "parasol_job_batches_total",
			Help: "Pages fetched by the import job",
		}),
		Running: factory.NewGauge(prometheus.GaugeOpts{
			Name: "parasol_job_running",
			Help: "1 while an import job is running",
		}),
	}
}

// ItemProcessed records one record outcome.
func (m *Metrics) ItemProcessed(result string) {
	m.ImportItems.WithLabelValues(result).Inc()
}

// BatchCompleted records one processed page.
func (m *Metrics) BatchCompleted() {
	m.Batches.Inc()
}

// JobRunning flips the running gauge.
func (m *Metrics) JobRunning(running bool) {
	if running {
		m.Running.Set(1)
		return
	}
	m.Running.Set(0)
}

// GeocodeLookup records one geocoder outcome.
func (m *Metrics) GeocodeLookup(result string) {
	m.GeocodeLookups.WithLabelValues(result).Inc()
}
