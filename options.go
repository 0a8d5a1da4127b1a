package docluster

import (
	"fmt"
	"log/slog"

	"github.com/hupe1980/docluster/analyze"
	"github.com/hupe1980/docluster/cluster"
	"github.com/hupe1980/docluster/embedding"
	"github.com/hupe1980/docluster/fusion"
	"github.com/hupe1980/docluster/model"
	"github.com/hupe1980/docluster/resource"
	"github.com/hupe1980/docluster/vectorize"
)

const (
	// DefaultBatchSize is the number of documents per batch of RunBatched.
	DefaultBatchSize = 1000

	// DefaultBatchMergeThreshold is the keyword Jaccard similarity from
	// which clusters of different batches merge.
	DefaultBatchMergeThreshold = 0.5

	// DegradedConfidence is the confidence of the single cluster returned
	// when every algorithm failed.
	DegradedConfidence = 0.1
)

type options struct {
	table          *embedding.Table
	dimension      int
	seed           int64
	vectorizerOpts []vectorize.Option
	analyzerOpts   []analyze.Option
	fusionOpts     []fusion.Option
	fusionMethod   string
	cache          ResultCache
	controller     *resource.Controller
	resourceConfig resource.Config
	batchSize      int
	mergeThreshold float64
	newClusterer   func(model.Algorithm) (cluster.Clusterer, error)
	metrics        MetricsCollector
	logger         *Logger
}

// Option configures an Engine.
type Option func(*options)

// WithEmbeddingTable sets the caller-owned term table. Share one table
// across engines and runs to keep vectors comparable. Without it the
// engine creates a private table of WithDimension size.
func WithEmbeddingTable(t *embedding.Table) Option {
	return func(o *options) {
		o.table = t
	}
}

// WithDimension sets the vector dimension of the private embedding table.
func WithDimension(dim int) Option {
	return func(o *options) {
		o.dimension = dim
	}
}

// WithSeed seeds the embedding table, the analyzer's pair sampling and
// every algorithm. Equal seeds give equal results.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithVectorizerOptions passes options to the vectorizer.
func WithVectorizerOptions(opts ...vectorize.Option) Option {
	return func(o *options) {
		o.vectorizerOpts = append(o.vectorizerOpts, opts...)
	}
}

// WithHybridVectors switches the vectorizer to blended four-channel
// vectors.
func WithHybridVectors(enabled bool) Option {
	return WithVectorizerOptions(vectorize.WithHybrid(enabled))
}

// WithAnalyzerOptions passes options to the characteristics analyzer.
func WithAnalyzerOptions(opts ...analyze.Option) Option {
	return func(o *options) {
		o.analyzerOpts = append(o.analyzerOpts, opts...)
	}
}

// WithFusionOptions passes options to every fusion step.
func WithFusionOptions(opts ...fusion.Option) Option {
	return func(o *options) {
		o.fusionOpts = append(o.fusionOpts, opts...)
	}
}

// WithDefaultFusionMethod sets the fusion method of hybrid strategies.
func WithDefaultFusionMethod(method string) Option {
	return func(o *options) {
		o.fusionMethod = method
	}
}

// WithResultCache configures the persistence collaborator consulted
// before and updated after every run.
func WithResultCache(c ResultCache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// WithResourceController shares a resource controller. It takes
// precedence over WithMaxWorkers and WithMemoryLimit.
func WithResourceController(c *resource.Controller) Option {
	return func(o *options) {
		o.controller = c
	}
}

// WithMaxWorkers bounds the number of batches clustered in parallel.
func WithMaxWorkers(n int) Option {
	return func(o *options) {
		o.resourceConfig.MaxWorkers = n
	}
}

// WithMemoryLimit bounds the estimated memory of concurrently running
// batches.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.resourceConfig.MemoryLimitBytes = bytes
	}
}

// WithBatchSize sets the chunk size of RunBatched.
func WithBatchSize(n int) Option {
	return func(o *options) {
		o.batchSize = n
	}
}

// WithBatchMergeThreshold sets the keyword Jaccard similarity from which
// clusters of different batches merge.
func WithBatchMergeThreshold(t float64) Option {
	return func(o *options) {
		o.mergeThreshold = t
	}
}

// WithClustererFactory replaces the algorithm implementations.
func WithClustererFactory(fn func(model.Algorithm) (cluster.Clusterer, error)) Option {
	return func(o *options) {
		o.newClusterer = fn
	}
}

// WithMetricsCollector configures a metrics collector for monitoring runs.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &docluster.BasicMetricsCollector{}
//	engine, _ := docluster.New(docluster.WithMetricsCollector(metrics))
//	// ... run ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metrics = mc
	}
}

// WithLogger configures structured logging.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) (options, error) {
	o := options{
		dimension:      embedding.DefaultDimension,
		seed:           1,
		batchSize:      DefaultBatchSize,
		mergeThreshold: DefaultBatchMergeThreshold,
		newClusterer:   cluster.New,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metrics == nil {
		o.metrics = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.newClusterer == nil {
		o.newClusterer = cluster.New
	}

	switch {
	case o.table == nil && o.dimension < 1:
		return o, &ConfigurationError{Field: "dimension", Value: fmt.Sprint(o.dimension), Reason: "must be at least 1"}
	case o.batchSize < 1:
		return o, &ConfigurationError{Field: "batch_size", Value: fmt.Sprint(o.batchSize), Reason: "must be at least 1"}
	case o.mergeThreshold < 0 || o.mergeThreshold > 1:
		return o, &ConfigurationError{Field: "batch_merge_threshold", Value: fmt.Sprint(o.mergeThreshold), Reason: "must be in [0,1]"}
	case o.resourceConfig.MaxWorkers < 0:
		return o, &ConfigurationError{Field: "max_workers", Value: fmt.Sprint(o.resourceConfig.MaxWorkers), Reason: "must not be negative"}
	case o.resourceConfig.MemoryLimitBytes < 0:
		return o, &ConfigurationError{Field: "memory_limit", Value: fmt.Sprint(o.resourceConfig.MemoryLimitBytes), Reason: "must not be negative"}
	}
	if o.fusionMethod != "" {
		if _, err := fusion.ParseMethod(o.fusionMethod); err != nil {
			return o, err
		}
	}
	return o, nil
}

type runOptions struct {
	targetK      int
	algorithm    model.Algorithm
	forced       bool
	fusionMethod string
	noCache      bool
	err          error
}

// RunOption configures a single run.
type RunOption func(*runOptions)

// WithTargetK requests k clusters. Zero lets the engine pick k from the
// corpus size.
func WithTargetK(k int) RunOption {
	return func(o *runOptions) {
		o.targetK = k
	}
}

// WithAlgorithm forces the primary algorithm. Fallbacks still apply.
func WithAlgorithm(alg model.Algorithm) RunOption {
	return func(o *runOptions) {
		o.algorithm = alg
		o.forced = true
	}
}

// WithAlgorithmName forces the primary algorithm by key. Unknown keys make
// the run fail with a ConfigurationError.
func WithAlgorithmName(name string) RunOption {
	return func(o *runOptions) {
		alg, err := model.ParseAlgorithm(name)
		if err != nil {
			o.err = err
			return
		}
		o.algorithm = alg
		o.forced = true
	}
}

// WithFusionMethod overrides the fusion method for this run.
func WithFusionMethod(method string) RunOption {
	return func(o *runOptions) {
		o.fusionMethod = method
	}
}

// WithoutCache skips the result cache for this run.
func WithoutCache() RunOption {
	return func(o *runOptions) {
		o.noCache = true
	}
}

func applyRunOptions(optFns []RunOption) (runOptions, error) {
	var o runOptions
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.err != nil {
		return o, o.err
	}
	if o.targetK < 0 {
		return o, &ConfigurationError{Field: "target_k", Value: fmt.Sprint(o.targetK), Reason: "must not be negative"}
	}
	if o.forced && !o.algorithm.Valid() {
		return o, &ConfigurationError{Field: "algorithm", Value: o.algorithm.String(), Reason: "unknown algorithm"}
	}
	if o.fusionMethod != "" {
		if _, err := fusion.ParseMethod(o.fusionMethod); err != nil {
			return o, err
		}
	}
	return o, nil
}
