package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/docluster/resource"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// PrometheusCollector implements docluster.MetricsCollector.
type PrometheusCollector struct {
	runs          *prometheus.CounterVec
	runLatency    prometheus.Histogram
	runDocuments  prometheus.Counter
	algorithms    *prometheus.CounterVec
	algLatency    *prometheus.HistogramVec
	fallbacks     *prometheus.CounterVec
	degraded      prometheus.Counter
	fusions       *prometheus.CounterVec
	fusedClusters prometheus.Histogram
	batches       *prometheus.CounterVec
	batchLatency  prometheus.Histogram
	cache         *prometheus.CounterVec

	ns  string
	reg prometheus.Registerer
}

type options struct {
	namespace  string
	registerer prometheus.Registerer
}

// Option configures a PrometheusCollector.
type Option func(*options)

// WithNamespace prefixes every metric name. Defaults to "docluster".
func WithNamespace(ns string) Option {
	return func(o *options) {
		o.namespace = ns
	}
}

// WithRegisterer registers the metrics with r instead of the default
// registerer.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = r
	}
}

// NewPrometheusCollector creates and registers the collector's metrics.
// It panics if a metric with the same name is already registered.
func NewPrometheusCollector(optFns ...Option) *PrometheusCollector {
	opts := options{
		namespace:  "docluster",
		registerer: prometheus.DefaultRegisterer,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	ns := opts.namespace

	c := &PrometheusCollector{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "runs_total",
			Help:      "Clustering runs by status.",
		}, []string{"status"}),
		runLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "run_duration_seconds",
			Help:      "Wall time of clustering runs.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		runDocuments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "run_documents_total",
			Help:      "Documents submitted to clustering runs.",
		}),
		algorithms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "algorithm_runs_total",
			Help:      "Algorithm invocations by algorithm and status.",
		}, []string{"algorithm", "status"}),
		algLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "algorithm_duration_seconds",
			Help:      "Latency of algorithm invocations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"algorithm"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "fallbacks_total",
			Help:      "Transitions from a failed algorithm to its fallback.",
		}, []string{"from", "to"}),
		degraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "degraded_runs_total",
			Help:      "Runs where every algorithm failed.",
		}),
		fusions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "fusions_total",
			Help:      "Fusion steps by method and status.",
		}, []string{"method", "status"}),
		fusedClusters: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "fused_clusters",
			Help:      "Clusters produced per fusion step.",
			Buckets:   prometheus.LinearBuckets(1, 4, 8),
		}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "batches_total",
			Help:      "Batches of batched runs by status.",
		}, []string{"status"}),
		batchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "batch_duration_seconds",
			Help:      "Wall time of single batches.",
			Buckets:   prometheus.DefBuckets,
		}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by outcome.",
		}, []string{"result"}),
		ns:  ns,
		reg: opts.registerer,
	}

	c.reg.MustRegister(
		c.runs, c.runLatency, c.runDocuments,
		c.algorithms, c.algLatency, c.fallbacks, c.degraded,
		c.fusions, c.fusedClusters,
		c.batches, c.batchLatency, c.cache,
	)
	return c
}

func status(err error) string {
	if err != nil {
		return statusError
	}
	return statusSuccess
}

// RecordRun implements docluster.MetricsCollector.
func (c *PrometheusCollector) RecordRun(docs int, d time.Duration, err error) {
	c.runs.WithLabelValues(status(err)).Inc()
	c.runLatency.Observe(d.Seconds())
	c.runDocuments.Add(float64(docs))
}

// RecordAlgorithm implements docluster.MetricsCollector.
func (c *PrometheusCollector) RecordAlgorithm(algorithm string, d time.Duration, err error) {
	c.algorithms.WithLabelValues(algorithm, status(err)).Inc()
	c.algLatency.WithLabelValues(algorithm).Observe(d.Seconds())
}

// RecordFallback implements docluster.MetricsCollector.
func (c *PrometheusCollector) RecordFallback(from, to string) {
	c.fallbacks.WithLabelValues(from, to).Inc()
}

// RecordDegraded implements docluster.MetricsCollector.
func (c *PrometheusCollector) RecordDegraded() {
	c.degraded.Inc()
}

// RecordFusion implements docluster.MetricsCollector.
func (c *PrometheusCollector) RecordFusion(method string, clusters int, _ time.Duration, err error) {
	c.fusions.WithLabelValues(method, status(err)).Inc()
	if err == nil {
		c.fusedClusters.Observe(float64(clusters))
	}
}

// RecordBatch implements docluster.MetricsCollector.
func (c *PrometheusCollector) RecordBatch(_ int, d time.Duration, err error) {
	c.batches.WithLabelValues(status(err)).Inc()
	c.batchLatency.Observe(d.Seconds())
}

// RecordCache implements docluster.MetricsCollector.
func (c *PrometheusCollector) RecordCache(hit bool) {
	if hit {
		c.cache.WithLabelValues("hit").Inc()
		return
	}
	c.cache.WithLabelValues("miss").Inc()
}

// WatchResources exports the reserved memory of rc as a gauge.
func (c *PrometheusCollector) WatchResources(rc *resource.Controller) error {
	return c.reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: c.ns,
		Name:      "reserved_memory_bytes",
		Help:      "Memory reserved from the resource controller.",
	}, func() float64 {
		return float64(rc.MemoryUsage())
	}))
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
