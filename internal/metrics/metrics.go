package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the loading pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Load metrics
	LoadsTotal   *prometheus.CounterVec
	LoadDuration *prometheus.HistogramVec
	LoadStates   *prometheus.CounterVec

	// Parse metrics
	FilesParsedTotal    *prometheus.CounterVec
	LossyInstancesTotal prometheus.Counter

	// Cache metrics
	CacheLookupsTotal *prometheus.CounterVec

	// Organizer output
	StudiesOrganizedTotal   prometheus.Counter
	InstancesOrganizedTotal prometheus.Counter
}

// New creates and registers all collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LoadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "study_loader_loads_total",
				Help: "Load calls by source kind and outcome",
			},
			[]string{"kind", "outcome"},
		),

		LoadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "study_loader_load_duration_seconds",
				Help:    "Load call duration",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"kind"},
		),

		LoadStates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "study_loader_state_transitions_total",
				Help: "Orchestrator state transitions",
			},
			[]string{"state"},
		),

		FilesParsedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "study_loader_files_parsed_total",
				Help: "Files handed to the parser by result",
			},
			[]string{"result"},
		),

		LossyInstancesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "study_loader_lossy_instances_total",
				Help: "Instances stored with a lossy transfer syntax",
			},
		),

		CacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "study_loader_cache_lookups_total",
				Help: "Study cache lookups by result",
			},
			[]string{"result"},
		),

		StudiesOrganizedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "study_loader_studies_organized_total",
				Help: "Studies produced by the organizer",
			},
		),

		InstancesOrganizedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "study_loader_instances_organized_total",
				Help: "Instances produced by the organizer",
			},
		),
	}
}

// RecordLoad records the outcome and duration of one load call
func (m *Metrics) RecordLoad(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.LoadsTotal.WithLabelValues(kind, outcome).Inc()
	m.LoadDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordState counts one state transition
func (m *Metrics) RecordState(state string) {
	if m == nil {
		return
	}
	m.LoadStates.WithLabelValues(state).Inc()
}

// RecordFile counts one parser result (parsed, not_dicom, no_pixel_data, failed)
func (m *Metrics) RecordFile(result string) {
	if m == nil {
		return
	}
	m.FilesParsedTotal.WithLabelValues(result).Inc()
}

// RecordLossy counts one instance with lossy compression
func (m *Metrics) RecordLossy() {
	if m == nil {
		return
	}
	m.LossyInstancesTotal.Inc()
}

// RecordCacheLookup counts a hit or a miss
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordOrganized counts organizer output
func (m *Metrics) RecordOrganized(studies, instances int) {
	if m == nil {
		return
	}
	m.StudiesOrganizedTotal.Add(float64(studies))
	m.InstancesOrganizedTotal.Add(float64(instances))
}
