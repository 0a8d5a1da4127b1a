package observability_test

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docluster"
	"github.com/hupe1980/docluster/model"
	"github.com/hupe1980/docluster/observability"
	"github.com/hupe1980/docluster/resource"
	"github.com/hupe1980/docluster/testutil"
)

var _ docluster.MetricsCollector = (*observability.PrometheusCollector)(nil)

func counter(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		var total float64
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
		return total
	}
	return 0
}

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	pc := observability.NewPrometheusCollector(observability.WithRegisterer(reg))

	pc.RecordRun(10, time.Millisecond, nil)
	pc.RecordRun(5, time.Millisecond, errors.New("boom"))
	pc.RecordAlgorithm("kmeans", time.Millisecond, nil)
	pc.RecordAlgorithm("gmm", time.Millisecond, errors.New("singular"))
	pc.RecordFallback("gmm", "kmeans")
	pc.RecordDegraded()
	pc.RecordFusion("consensus", 3, time.Millisecond, nil)
	pc.RecordFusion("cascade", 0, time.Millisecond, errors.New("x"))
	pc.RecordBatch(100, time.Millisecond, nil)
	pc.RecordCache(true)
	pc.RecordCache(false)
	pc.RecordCache(false)

	tests := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"docluster_runs_total", map[string]string{"status": "success"}, 1},
		{"docluster_runs_total", map[string]string{"status": "error"}, 1},
		{"docluster_run_documents_total", nil, 15},
		{"docluster_run_duration_seconds", nil, 2},
		{"docluster_algorithm_runs_total", map[string]string{"algorithm": "gmm", "status": "error"}, 1},
		{"docluster_algorithm_runs_total", map[string]string{"status": "success"}, 1},
		{"docluster_algorithm_duration_seconds", nil, 2},
		{"docluster_fallbacks_total", map[string]string{"from": "gmm", "to": "kmeans"}, 1},
		{"docluster_degraded_runs_total", nil, 1},
		{"docluster_fusions_total", map[string]string{"method": "cascade", "status": "error"}, 1},
		{"docluster_fused_clusters", nil, 1},
		{"docluster_batches_total", nil, 1},
		{"docluster_cache_lookups_total", map[string]string{"result": "hit"}, 1},
		{"docluster_cache_lookups_total", map[string]string{"result": "miss"}, 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, counter(t, reg, tt.name, tt.labels), "%s %v", tt.name, tt.labels)
	}
}

func TestPrometheusCollector_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	observability.NewPrometheusCollector(observability.WithRegisterer(reg))
	assert.Panics(t, func() {
		observability.NewPrometheusCollector(observability.WithRegisterer(reg))
	})
	assert.NotPanics(t, func() {
		observability.NewPrometheusCollector(observability.WithRegisterer(reg), observability.WithNamespace("other"))
	})
}

func TestPrometheusCollector_WatchResources(t *testing.T) {
	reg := prometheus.NewRegistry()
	pc := observability.NewPrometheusCollector(observability.WithRegisterer(reg))
	rc := resource.NewController(resource.Config{})
	require.NoError(t, pc.WatchResources(rc))

	held, err := rc.AcquireMemory(context.Background(), 4096)
	require.NoError(t, err)
	defer rc.ReleaseMemory(held)

	assert.Equal(t, 4096.0, counter(t, reg, "docluster_reserved_memory_bytes", nil))
}

func TestPrometheusCollector_WithEngine(t *testing.T) {
	reg := prometheus.NewRegistry()
	pc := observability.NewPrometheusCollector(observability.WithRegisterer(reg))
	eng, err := docluster.New(docluster.WithSeed(1), docluster.WithMetricsCollector(pc))
	require.NoError(t, err)

	docs, _ := testutil.ScenarioA()
	_, err = eng.Run(context.Background(), docs, docluster.WithAlgorithm(model.KMeans), docluster.WithTargetK(2))
	require.NoError(t, err)

	assert.Equal(t, 1.0, counter(t, reg, "docluster_runs_total", map[string]string{"status": "success"}))
	assert.Equal(t, 1.0, counter(t, reg, "docluster_algorithm_runs_total", map[string]string{"algorithm": "kmeans"}))
	assert.Equal(t, float64(len(docs)), counter(t, reg, "docluster_run_documents_total", nil))

	problems, err := promtest.GatherAndLint(reg)
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	pc := observability.NewPrometheusCollector(observability.WithRegisterer(reg))
	pc.RecordDegraded()

	srv := httptest.NewServer(observability.Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "docluster_degraded_runs_total 1")
}
