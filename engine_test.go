package docluster_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docluster"
	"github.com/hupe1980/docluster/cluster"
	"github.com/hupe1980/docluster/model"
	"github.com/hupe1980/docluster/testutil"
)

type failingClusterer struct{ err error }

func (f failingClusterer) Cluster([]model.FeatureVector, model.Params) (*cluster.Outcome, error) {
	return nil, f.err
}

type panickingClusterer struct{}

func (panickingClusterer) Cluster([]model.FeatureVector, model.Params) (*cluster.Outcome, error) {
	panic("boom")
}

type blockingClusterer struct{ release chan struct{} }

func (b blockingClusterer) Cluster(vectors []model.FeatureVector, params model.Params) (*cluster.Outcome, error) {
	<-b.release
	return cluster.KMeans{}.Cluster(vectors, params)
}

type mapCache struct {
	mu   sync.Mutex
	data map[model.CacheKey]*model.Result
	puts int
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[model.CacheKey]*model.Result)}
}

func (c *mapCache) Get(_ context.Context, key model.CacheKey) (*model.Result, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.data[key]
	return res, ok, nil
}

func (c *mapCache) Put(_ context.Context, key model.CacheKey, res *model.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = res
	c.puts++
	return nil
}

func newEngine(t *testing.T, opts ...docluster.Option) *docluster.Engine {
	t.Helper()
	e, err := docluster.New(append([]docluster.Option{docluster.WithSeed(1)}, opts...)...)
	require.NoError(t, err)
	return e
}

func assertCoverage(t *testing.T, docs []model.Document, clusters []model.Cluster) {
	t.Helper()
	cov := testutil.Coverage(testutil.Members(clusters))
	assert.Len(t, cov, len(docs))
	for _, d := range docs {
		assert.Equal(t, 1, cov[d.ID], d.ID)
	}
}

func TestRun_ScenarioA(t *testing.T) {
	docs, topics := testutil.ScenarioA()
	e := newEngine(t)

	res, err := e.Run(context.Background(), docs, docluster.WithAlgorithm(model.KMeans), docluster.WithTargetK(2))
	require.NoError(t, err)
	require.Len(t, res.Clusters, 2)
	assert.GreaterOrEqual(t, testutil.Purity(testutil.Members(res.Clusters), topics), 0.9)

	assert.Equal(t, model.KMeans, res.Strategy.Primary)
	assert.Equal(t, []model.Algorithm{model.KMeans}, res.Performance.Actual.Executed)
	assert.Equal(t, 0, res.Performance.Actual.FallbacksUsed)
	assert.Equal(t, 2, res.Performance.Actual.ClusterCount)
	assert.InDelta(t, 6.0, res.Performance.Actual.AvgClusterSize, 1e-9)
	assert.Positive(t, res.Performance.Predicted.Duration)
	assert.Positive(t, res.Performance.Predicted.MemoryBytes)
}

func TestRun_Empty(t *testing.T) {
	e := newEngine(t)
	res, err := e.Run(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.NotNil(t, res.Clusters)
	assert.Empty(t, res.Clusters)
}

func TestRun_SingleDocument(t *testing.T) {
	docs := []model.Document{{ID: "only", Text: "adaptive clustering of a single document"}}

	for _, alg := range model.Algorithms {
		t.Run(alg.String(), func(t *testing.T) {
			e := newEngine(t)
			res, err := e.Run(context.Background(), docs, docluster.WithAlgorithm(alg))
			require.NoError(t, err)
			require.Len(t, res.Clusters, 1)
			assert.Equal(t, []string{"only"}, res.Clusters[0].Members)
			assert.False(t, res.Performance.Actual.Degraded)
		})
	}
}

func TestRun_UnknownAlgorithm(t *testing.T) {
	docs, _ := testutil.ScenarioA()
	e := newEngine(t)

	_, err := e.Run(context.Background(), docs, docluster.WithAlgorithmName("bogus"))
	require.Error(t, err)
	assert.ErrorIs(t, err, docluster.ErrConfiguration)

	var cfgErr *docluster.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "algorithm", cfgErr.Field)
	assert.Equal(t, "bogus", cfgErr.Value)
}

func TestRun_InvalidRunOptions(t *testing.T) {
	docs, _ := testutil.ScenarioA()
	e := newEngine(t)

	tests := []struct {
		name string
		opt  docluster.RunOption
	}{
		{"negative k", docluster.WithTargetK(-1)},
		{"unknown algorithm value", docluster.WithAlgorithm(model.Algorithm(42))},
		{"unknown fusion method", docluster.WithFusionMethod("majority")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Run(context.Background(), docs, tt.opt)
			assert.ErrorIs(t, err, docluster.ErrConfiguration)
		})
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  docluster.Option
	}{
		{"dimension", docluster.WithDimension(-1)},
		{"batch size", docluster.WithBatchSize(0)},
		{"merge threshold", docluster.WithBatchMergeThreshold(1.5)},
		{"workers", docluster.WithMaxWorkers(-1)},
		{"memory", docluster.WithMemoryLimit(-1)},
		{"fusion method", docluster.WithDefaultFusionMethod("majority")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := docluster.New(tt.opt)
			assert.ErrorIs(t, err, docluster.ErrConfiguration)
		})
	}
}

func TestRun_Coverage(t *testing.T) {
	rng := testutil.NewRNG(3)
	docs, _ := rng.Corpus(60, 8, "clustering", "ledger", "cooking")

	for _, alg := range model.Algorithms {
		t.Run(alg.String(), func(t *testing.T) {
			e := newEngine(t)
			res, err := e.Run(context.Background(), docs, docluster.WithAlgorithm(alg), docluster.WithTargetK(3))
			require.NoError(t, err)
			assertCoverage(t, docs, res.Clusters)
			if alg == model.Hybrid {
				require.Len(t, res.Hybrid, len(res.Clusters))
				for i, h := range res.Hybrid {
					assert.Equal(t, h.Members, res.Clusters[i].Members)
				}
			}
		})
	}

	t.Run("selected", func(t *testing.T) {
		e := newEngine(t)
		res, err := e.Run(context.Background(), docs)
		require.NoError(t, err)
		assertCoverage(t, docs, res.Clusters)
		assert.Len(t, res.Strategy.Fallbacks, 2)
	})
}

func TestRun_Deterministic(t *testing.T) {
	rng := testutil.NewRNG(5)
	docs, _ := rng.Corpus(40, 6, "astronomy", "cooking")

	a, err := newEngine(t).Run(context.Background(), docs)
	require.NoError(t, err)
	b, err := newEngine(t).Run(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, testutil.Members(a.Clusters), testutil.Members(b.Clusters))
	assert.Equal(t, a.Strategy.Primary, b.Strategy.Primary)
}

func TestRun_ConcurrentOnLearnedTable(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(8)
	corpora := make([][]model.Document, 3)
	for i := range corpora {
		corpora[i], _ = rng.Corpus(24, 6, "astronomy", "cooking", "ledger")
	}

	eng := newEngine(t)
	want := make([][][]string, len(corpora))
	for _, docs := range corpora {
		_, err := eng.Run(ctx, docs, docluster.WithoutCache())
		require.NoError(t, err)
	}
	for i, docs := range corpora {
		res, err := eng.Run(ctx, docs, docluster.WithoutCache())
		require.NoError(t, err)
		want[i] = testutil.Members(res.Clusters)
	}

	var wg sync.WaitGroup
	got := make([][][]string, len(corpora)*4)
	errs := make([]error, len(got))
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := eng.Run(ctx, corpora[i%len(corpora)], docluster.WithoutCache())
			errs[i] = err
			if err == nil {
				got[i] = testutil.Members(res.Clusters)
			}
		}()
	}
	wg.Wait()
	for i := range got {
		require.NoError(t, errs[i])
		assert.Equal(t, want[i%len(corpora)], got[i])
	}
}

func TestRun_FusionOverride(t *testing.T) {
	docs, _ := testutil.ScenarioA()
	e := newEngine(t)

	res, err := e.Run(context.Background(), docs, docluster.WithAlgorithm(model.Hybrid), docluster.WithFusionMethod("cascade"))
	require.NoError(t, err)
	assert.Equal(t, "cascade", res.Strategy.FusionMethod)
	require.NotEmpty(t, res.Hybrid)
	for _, h := range res.Hybrid {
		assert.Equal(t, "cascade", h.Provenance.Method)
	}
	assert.Len(t, res.Performance.Actual.Executed, 2)
}

func TestRun_Fallback(t *testing.T) {
	docs, _ := testutil.ScenarioA()
	metrics := &docluster.BasicMetricsCollector{}
	e := newEngine(t,
		docluster.WithMetricsCollector(metrics),
		docluster.WithClustererFactory(func(alg model.Algorithm) (cluster.Clusterer, error) {
			if alg == model.KMeans {
				return failingClusterer{err: errors.New("diverged")}, nil
			}
			return cluster.New(alg)
		}),
	)

	res, err := e.Run(context.Background(), docs, docluster.WithAlgorithm(model.KMeans))
	require.NoError(t, err)
	actual := res.Performance.Actual
	assert.Equal(t, 1, actual.FallbacksUsed)
	require.Len(t, actual.Executed, 2)
	assert.Equal(t, model.KMeans, actual.Executed[0])
	assert.Equal(t, res.Strategy.Fallbacks[0], actual.Executed[1])
	assert.False(t, actual.Degraded)
	assert.Contains(t, actual.Warnings[0], "diverged")
	assertCoverage(t, docs, res.Clusters)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.FallbackCount)
	assert.Equal(t, int64(2), stats.AlgorithmCount)
	assert.Equal(t, int64(1), stats.AlgorithmErrors)
}

func TestRun_Degraded(t *testing.T) {
	docs, _ := testutil.ScenarioA()

	tests := []struct {
		name    string
		factory func(model.Algorithm) (cluster.Clusterer, error)
	}{
		{"errors", func(model.Algorithm) (cluster.Clusterer, error) {
			return failingClusterer{err: errors.New("singular")}, nil
		}},
		{"panics", func(model.Algorithm) (cluster.Clusterer, error) {
			return panickingClusterer{}, nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := &docluster.BasicMetricsCollector{}
			e := newEngine(t, docluster.WithClustererFactory(tt.factory), docluster.WithMetricsCollector(metrics))

			res, err := e.Run(context.Background(), docs, docluster.WithAlgorithm(model.KMeans))
			require.NoError(t, err)
			require.Len(t, res.Clusters, 1)
			assert.Len(t, res.Clusters[0].Members, len(docs))

			actual := res.Performance.Actual
			assert.True(t, actual.Degraded)
			assert.Equal(t, 2, actual.FallbacksUsed)
			assert.InDelta(t, docluster.DegradedConfidence, actual.Confidence, 1e-12)
			assert.Len(t, actual.Executed, 3)
			assert.Contains(t, actual.Warnings, docluster.ErrAllAlgorithmsFailed.Error())
			assert.Equal(t, int64(1), metrics.GetStats().DegradedCount)
		})
	}
}

func TestRun_DegradedHybrid(t *testing.T) {
	docs, _ := testutil.ScenarioA()
	e := newEngine(t, docluster.WithClustererFactory(func(model.Algorithm) (cluster.Clusterer, error) {
		return panickingClusterer{}, nil
	}))

	res, err := e.Run(context.Background(), docs, docluster.WithAlgorithm(model.Hybrid))
	require.NoError(t, err)
	require.Len(t, res.Clusters, 1)
	assert.True(t, res.Performance.Actual.Degraded)
	assert.Empty(t, res.Hybrid)
}

func TestRun_ConfigurationErrorSurfaces(t *testing.T) {
	docs, _ := testutil.ScenarioA()
	e := newEngine(t, docluster.WithClustererFactory(func(alg model.Algorithm) (cluster.Clusterer, error) {
		return failingClusterer{err: &model.ConfigurationError{Field: "eps", Value: "0", Reason: "must be positive"}}, nil
	}))

	_, err := e.Run(context.Background(), docs)
	assert.ErrorIs(t, err, docluster.ErrConfiguration)
}

func TestRun_Abandon(t *testing.T) {
	docs, _ := testutil.ScenarioA()
	release := make(chan struct{})
	defer close(release)

	metrics := &docluster.BasicMetricsCollector{}
	e := newEngine(t,
		docluster.WithMetricsCollector(metrics),
		docluster.WithClustererFactory(func(model.Algorithm) (cluster.Clusterer, error) {
			return blockingClusterer{release: release}, nil
		}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := e.Run(ctx, docs)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, res)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, int64(1), metrics.GetStats().RunErrors)
}

func TestRun_CanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newEngine(t).Run(ctx, []model.Document{{ID: "a", Text: "x"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_Cache(t *testing.T) {
	docs, _ := testutil.ScenarioA()
	cache := newMapCache()
	metrics := &docluster.BasicMetricsCollector{}
	e := newEngine(t, docluster.WithResultCache(cache), docluster.WithMetricsCollector(metrics))
	ctx := context.Background()

	first, err := e.Run(ctx, docs)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.puts)

	second, err := e.Run(ctx, docs)
	require.NoError(t, err)
	assert.Same(t, first, second)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(1), stats.CacheMisses)

	t.Run("different k", func(t *testing.T) {
		res, err := e.Run(ctx, docs, docluster.WithTargetK(4))
		require.NoError(t, err)
		assert.NotSame(t, first, res)
		assert.Equal(t, 2, cache.puts)
	})

	t.Run("bypassed", func(t *testing.T) {
		for _, opt := range []docluster.RunOption{
			docluster.WithoutCache(),
			docluster.WithAlgorithm(model.DBSCAN),
			docluster.WithFusionMethod("weighted"),
		} {
			res, err := e.Run(ctx, docs, opt)
			require.NoError(t, err)
			assert.NotSame(t, first, res)
		}
		assert.Equal(t, 2, cache.puts)
	})
}

func TestRunSource(t *testing.T) {
	src := docluster.NewJSONLinesSource(bytes.NewBufferString(
		`{"id":"a","text":"garlic butter sauce simmer"}` + "\n" +
			`{"id":"b","title":"oven","body":"flour butter","tags":["recipe"]}` + "\n",
	))
	res, err := newEngine(t).RunSource(context.Background(), src)
	require.NoError(t, err)
	cov := testutil.Coverage(testutil.Members(res.Clusters))
	assert.Equal(t, map[string]int{"a": 1, "b": 1}, cov)
}

func TestJSONLinesSource(t *testing.T) {
	t.Run("documents", func(t *testing.T) {
		src := docluster.NewJSONLinesSource(bytes.NewBufferString(
			`{"id":"a","text":"plain"}` + "\n\n" +
				`{"title":"Title","body":"Body","tags":["x","y"]}` + "\n",
		))
		docs, err := src.Documents(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []model.Document{
			{ID: "a", Text: "plain"},
			{ID: "3", Text: "Title Body x y"},
		}, docs)
	})

	t.Run("invalid", func(t *testing.T) {
		src := docluster.NewJSONLinesSource(bytes.NewBufferString("{\"id\":\"a\"}\nnot json\n"))
		_, err := src.Documents(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
	})
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := docluster.NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	docs, _ := testutil.ScenarioA()

	_, err := newEngine(t, docluster.WithLogger(logger)).Run(context.Background(), docs)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"run_id"`)
	assert.Contains(t, out, "strategy selected")
	assert.Contains(t, out, "run completed")
}

func TestBasicMetricsCollector(t *testing.T) {
	m := &docluster.BasicMetricsCollector{}
	m.RecordRun(10, 2*time.Millisecond, nil)
	m.RecordRun(20, 4*time.Millisecond, errors.New("x"))
	m.RecordCache(true)
	m.RecordCache(false)
	m.RecordCache(false)
	m.RecordFusion("ensemble", 3, time.Millisecond, nil)

	s := m.GetStats()
	assert.Equal(t, int64(2), s.RunCount)
	assert.Equal(t, int64(1), s.RunErrors)
	assert.Equal(t, int64(30), s.RunDocuments)
	assert.Equal(t, (3 * time.Millisecond).Nanoseconds(), s.RunAvgNanos)
	assert.Equal(t, int64(1), s.CacheHits)
	assert.Equal(t, int64(2), s.CacheMisses)
	assert.Equal(t, int64(1), s.FusionCount)
}
