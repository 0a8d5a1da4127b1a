package docluster

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/hupe1980/docluster/analyze"
	"github.com/hupe1980/docluster/cluster"
	"github.com/hupe1980/docluster/embedding"
	"github.com/hupe1980/docluster/model"
	"github.com/hupe1980/docluster/resource"
	"github.com/hupe1980/docluster/strategy"
	"github.com/hupe1980/docluster/vectorize"
)

type (
	// Document is a unit of input text.
	Document = model.Document
	// Result is the bundle returned by a run.
	Result = model.Result
)

// Engine is the clustering orchestrator. It is safe for concurrent use;
// the only state shared between runs is the embedding table.
//
// Term registration is serialized, so each run claims the slots of its new
// terms as one block. Which concurrent run registers first still decides
// slot order, and with it which terms fall past the table dimension.
// Results are reproducible across concurrent runs only when the table
// already holds every term, e.g. a table learned up front or frozen.
type Engine struct {
	learnMu    sync.Mutex
	opts       options
	table      *embedding.Table
	vectorizer *vectorize.Vectorizer
	analyzer   *analyze.Analyzer
	selector   *strategy.Selector
	predictor  *strategy.Predictor
	rc         *resource.Controller
	logger     *Logger
	metrics    MetricsCollector
}

// New creates an Engine.
func New(optFns ...Option) (*Engine, error) {
	opts, err := applyOptions(optFns)
	if err != nil {
		return nil, err
	}

	table := opts.table
	if table == nil {
		table = embedding.NewTable(opts.dimension, opts.seed)
	}
	vec, err := vectorize.New(table, opts.vectorizerOpts...)
	if err != nil {
		return nil, err
	}

	rc := opts.controller
	if rc == nil {
		rc = resource.NewController(opts.resourceConfig)
	}

	return &Engine{
		opts:       opts,
		table:      table,
		vectorizer: vec,
		analyzer:   analyze.New(append([]analyze.Option{analyze.WithSeed(opts.seed)}, opts.analyzerOpts...)...),
		selector:   strategy.NewSelector(strategy.WithSeed(opts.seed), strategy.WithFusionMethod(opts.fusionMethod)),
		predictor:  strategy.NewPredictor(),
		rc:         rc,
		logger:     opts.logger,
		metrics:    opts.metrics,
	}, nil
}

// Table returns the embedding table the engine vectorizes with.
func (e *Engine) Table() *embedding.Table { return e.table }

// Run clusters docs. An empty corpus yields an empty result, never an
// error. Configuration problems are returned as *ConfigurationError.
//
// Algorithms cannot be interrupted; when ctx is done Run returns ctx.Err()
// at once and the abandoned pipeline finishes in the background.
func (e *Engine) Run(ctx context.Context, docs []model.Document, optFns ...RunOption) (*model.Result, error) {
	ro, err := applyRunOptions(optFns)
	if err != nil {
		return nil, err
	}
	return e.abandonable(ctx, len(docs), func(ctx context.Context, logger *Logger) (*model.Result, error) {
		return e.cached(ctx, logger, docs, ro, func() (*model.Result, error) {
			res, _, err := e.pipeline(ctx, logger, docs, ro)
			return res, err
		})
	})
}

// RunSource loads the documents of src and runs them.
func (e *Engine) RunSource(ctx context.Context, src DocumentSource, optFns ...RunOption) (*model.Result, error) {
	docs, err := src.Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("docluster: load documents: %w", err)
	}
	return e.Run(ctx, docs, optFns...)
}

// abandonable runs fn in its own goroutine and stops waiting for it when
// ctx is done.
func (e *Engine) abandonable(ctx context.Context, docs int, fn func(context.Context, *Logger) (*model.Result, error)) (*model.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	logger := e.logger.WithRun()

	type outcome struct {
		res *model.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: panicError(r)}
			}
		}()
		res, err := fn(ctx, logger)
		done <- outcome{res: res, err: err}
	}()

	var o outcome
	select {
	case <-ctx.Done():
		o.err = ctx.Err()
	case o = <-done:
	}

	clusters := 0
	if o.res != nil {
		clusters = len(o.res.Clusters)
	}
	logger.LogRun(ctx, docs, clusters, time.Since(start), o.err)
	e.metrics.RecordRun(docs, time.Since(start), o.err)
	return o.res, o.err
}

// cached consults the result cache around compute. Cache failures are
// logged and otherwise ignored.
func (e *Engine) cached(ctx context.Context, logger *Logger, docs []model.Document, ro runOptions, compute func() (*model.Result, error)) (*model.Result, error) {
	if e.opts.cache == nil || ro.noCache || len(docs) == 0 || ro.forced || ro.fusionMethod != "" {
		return compute()
	}

	key := model.CacheKey{Fingerprint: model.Fingerprint(docs), TargetK: ro.targetK}
	res, hit, err := e.opts.cache.Get(ctx, key)
	logger.LogCache(ctx, "get", key, hit, err)
	if err == nil {
		e.metrics.RecordCache(hit)
		if hit {
			return res, nil
		}
	}

	res, err = compute()
	if err != nil {
		return nil, err
	}
	perr := e.opts.cache.Put(ctx, key, res)
	logger.LogCache(ctx, "put", key, false, perr)
	return res, nil
}

func (e *Engine) learn(docs []model.Document) {
	e.learnMu.Lock()
	defer e.learnMu.Unlock()
	e.vectorizer.Learn(docs)
}

// pipeline is one synchronous run: vectorize, analyze, select, predict,
// execute, measure. It also returns the vectors for batch merging.
func (e *Engine) pipeline(ctx context.Context, logger *Logger, docs []model.Document, ro runOptions) (*model.Result, []model.FeatureVector, error) {
	start := time.Now()
	if len(docs) == 0 {
		return model.EmptyResult(), nil, nil
	}

	e.learn(docs)
	vectors := e.vectorizer.VectorizeAll(docs)

	c := e.analyzer.Analyze(vectors)
	st := e.selector.Select(c, ro.targetK)
	if ro.forced {
		st = e.selector.SelectWith(c, ro.targetK, ro.algorithm)
	}
	if st.Primary == model.Hybrid && ro.fusionMethod != "" {
		st.FusionMethod = ro.fusionMethod
	}
	pred := e.predictor.Predict(c, st)
	logger.LogStrategy(ctx, c, st, pred)

	ex, err := e.execute(ctx, logger, vectors, c, st)
	if err != nil {
		return nil, nil, err
	}

	actual := measure(ex.clusters)
	actual.Confidence = ex.confidence
	actual.Duration = time.Since(start)
	actual.Executed = ex.executed
	actual.FallbacksUsed = ex.fallbacksUsed
	actual.Degraded = ex.degraded
	actual.Warnings = ex.warnings

	return &model.Result{
		Clusters:        ex.clusters,
		Hybrid:          ex.hybrid,
		Strategy:        st,
		Characteristics: c,
		Performance: model.Performance{
			Predicted: pred,
			Actual:    actual,
		},
	}, vectors, nil
}

// measure computes the size statistics of the non-noise clusters.
// Uniformity is 1 minus the coefficient of variation of the sizes.
func measure(clusters []model.Cluster) model.ActualPerformance {
	var sizes []float64
	for _, c := range clusters {
		if !c.Noise {
			sizes = append(sizes, float64(c.Size()))
		}
	}
	a := model.ActualPerformance{
		ClusterCount: len(sizes),
		Quality:      cluster.Quality(clusters),
	}
	if len(sizes) == 0 {
		return a
	}
	mean, variance := stat.PopMeanVariance(sizes, nil)
	a.AvgClusterSize = mean
	a.Uniformity = 1
	if mean > 0 {
		a.Uniformity = math.Max(0, math.Min(1, 1-math.Sqrt(variance)/mean))
	}
	return a
}
