package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ternarybob/benchdash/internal/attributes"
)

const namespace = "benchdash"

// Service owns a private Prometheus registry for reconciliation and upload metrics
type Service struct {
	registry *prometheus.Registry

	reconciliations  *prometheus.CounterVec
	appendedValues   prometheus.Counter
	unusedValues     prometheus.Counter
	mintedIDs        prometheus.Counter
	reusedIDs        prometheus.Counter
	reconcileSeconds prometheus.Histogram
	runsUploaded     prometheus.Counter
}

// NewService creates the metrics service and registers its collectors
func NewService() *Service {
	s := &Service{
		registry: prometheus.NewRegistry(),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliations_total",
			Help:      "Attribute lookup reconciliations by mode (preview or apply).",
		}, []string{"mode"}),
		appendedValues: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dictionary_values_appended_total",
			Help:      "Values appended to attribute dictionaries.",
		}),
		unusedValues: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dictionary_values_marked_unused_total",
			Help:      "Dictionary values newly marked unused.",
		}),
		mintedIDs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "test_identities_minted_total",
			Help:      "Fresh test identities assigned.",
		}),
		reusedIDs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "test_identities_reused_total",
			Help:      "Test identities carried over from the previous lookup.",
		}),
		reconcileSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Time spent reconciling a run against the lookup.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		runsUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_uploaded_total",
			Help:      "Benchmark runs accepted by the results service.",
		}),
	}

	s.registry.MustRegister(
		s.reconciliations,
		s.appendedValues,
		s.unusedValues,
		s.mintedIDs,
		s.reusedIDs,
		s.reconcileSeconds,
		s.runsUploaded,
		collectors.NewGoCollector(),
	)

	return s
}

// ObserveReconcile records one reconciliation and what it changed
func (s *Service) ObserveReconcile(mode string, report attributes.Report, elapsed time.Duration) {
	s.reconciliations.WithLabelValues(mode).Inc()
	s.appendedValues.Add(float64(report.AppendedCount()))
	s.unusedValues.Add(float64(report.NewlyUnusedCount()))
	s.mintedIDs.Add(float64(len(report.MintedIdentities)))
	s.reusedIDs.Add(float64(len(report.ReusedIdentities)))
	s.reconcileSeconds.Observe(elapsed.Seconds())
}

// ObserveUpload records an accepted run upload
func (s *Service) ObserveUpload() {
	s.runsUploaded.Inc()
}

// Registry exposes the private registry
func (s *Service) Registry() *prometheus.Registry {
	return s.registry
}

// Handler serves the registry in the Prometheus exposition format
func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
