package docluster

import (
	"context"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/docluster/cluster"
	"github.com/hupe1980/docluster/fusion"
	"github.com/hupe1980/docluster/model"
)

// batchResult is the outcome of one chunk.
type batchResult struct {
	res     *model.Result
	vectors []model.FeatureVector
}

// RunBatched clusters docs in chunks of the configured batch size to bound
// peak memory. The terms of all documents are registered in the embedding
// table first, by a single writer; the chunks then run in parallel within
// the worker and memory budgets. Clusters of different chunks whose
// keyword sets are similar enough merge, so the result still covers every
// document exactly once.
//
// Corpora no larger than one batch are handled exactly like Run.
func (e *Engine) RunBatched(ctx context.Context, docs []model.Document, optFns ...RunOption) (*model.Result, error) {
	ro, err := applyRunOptions(optFns)
	if err != nil {
		return nil, err
	}
	return e.abandonable(ctx, len(docs), func(ctx context.Context, logger *Logger) (*model.Result, error) {
		return e.cached(ctx, logger, docs, ro, func() (*model.Result, error) {
			if len(docs) <= e.opts.batchSize {
				res, _, err := e.pipeline(ctx, logger, docs, ro)
				return res, err
			}
			return e.batched(ctx, logger, docs, ro)
		})
	})
}

func (e *Engine) batched(ctx context.Context, logger *Logger, docs []model.Document, ro runOptions) (*model.Result, error) {
	start := time.Now()
	e.learn(docs)

	chunks := slices.Collect(slices.Chunk(docs, e.opts.batchSize))
	out := make([]batchResult, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.rc.Workers())
	for i, chunk := range chunks {
		g.Go(func() error {
			blog := logger.WithBatch(i)
			reserved, err := e.rc.AcquireMemory(gctx, e.batchMemory(len(chunk)))
			if err != nil {
				return err
			}
			defer e.rc.ReleaseMemory(reserved)

			bstart := time.Now()
			res, vectors, err := e.pipeline(gctx, blog, chunk, ro)
			blog.LogBatch(gctx, i, len(chunk), time.Since(bstart), err)
			e.metrics.RecordBatch(len(chunk), time.Since(bstart), err)
			if err != nil {
				return fmt.Errorf("batch %d: %w", i, err)
			}
			out[i] = batchResult{res: res, vectors: vectors}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return e.mergeBatches(out, time.Since(start)), nil
}

// batchMemory estimates the peak bytes of clustering n documents: the
// vectors plus one dense distance matrix.
func (e *Engine) batchMemory(n int) int64 {
	const f64 = 8
	return int64(n)*int64(e.table.Dimension())*f64 + int64(n)*int64(n)*f64
}

// mergeBatches folds the chunk results into one. Clusters are visited in
// batch order; each joins the earlier merged cluster with the most similar
// keyword set when that similarity reaches the merge threshold, and starts
// a new one otherwise. Noise of every batch ends up in one noise cluster.
func (e *Engine) mergeBatches(batches []batchResult, elapsed time.Duration) *model.Result {
	var (
		vectors  []model.FeatureVector
		groups   [][]int
		keywords [][]string
		noise    []int
	)
	res := &model.Result{}
	actual := &res.Performance.Actual
	pred := &res.Performance.Predicted

	for bi, b := range batches {
		offset := len(vectors)
		vectors = append(vectors, b.vectors...)
		pos := make(map[string]int, len(b.vectors))
		for i, v := range b.vectors {
			pos[v.DocumentID] = offset + i
		}

		for _, c := range b.res.Clusters {
			idx := make([]int, 0, len(c.Members))
			for _, id := range c.Members {
				idx = append(idx, pos[id])
			}
			if c.Noise {
				noise = append(noise, idx...)
				continue
			}

			best, bestJ := -1, e.opts.mergeThreshold
			for gi, kw := range keywords {
				if j := fusion.SetJaccard(c.Keywords, kw); j >= bestJ && (best < 0 || j > bestJ) {
					best, bestJ = gi, j
				}
			}
			if best < 0 || len(c.Keywords) == 0 {
				groups = append(groups, idx)
				keywords = append(keywords, c.Keywords)
				continue
			}
			groups[best] = append(groups[best], idx...)
		}

		if bi == 0 {
			res.Strategy = b.res.Strategy
		}
		p := b.res.Performance
		pred.Duration += p.Predicted.Duration
		pred.MemoryBytes = max(pred.MemoryBytes, p.Predicted.MemoryBytes)
		pred.Accuracy += p.Predicted.Accuracy / float64(len(batches))
		actual.Confidence += p.Actual.Confidence * float64(len(b.vectors))
		actual.FallbacksUsed += p.Actual.FallbacksUsed
		actual.Degraded = actual.Degraded || p.Actual.Degraded
		for _, alg := range p.Actual.Executed {
			if !slices.Contains(actual.Executed, alg) {
				actual.Executed = append(actual.Executed, alg)
			}
		}
		for _, w := range p.Actual.Warnings {
			actual.Warnings = append(actual.Warnings, fmt.Sprintf("batch %d: %s", bi, w))
		}
	}

	res.Clusters = make([]model.Cluster, 0, len(groups)+1)
	for id, idx := range groups {
		res.Clusters = append(res.Clusters, cluster.NewCluster(id, vectors, idx))
	}
	if len(noise) > 0 {
		c := cluster.NewCluster(model.NoiseClusterID, vectors, noise)
		c.Noise = true
		res.Clusters = append(res.Clusters, c)
	}
	res.Characteristics = e.analyzer.Analyze(vectors)

	m := measure(res.Clusters)
	m.Confidence = actual.Confidence / float64(max(len(vectors), 1))
	m.Duration = elapsed
	m.Executed = actual.Executed
	m.FallbacksUsed = actual.FallbacksUsed
	m.Degraded = actual.Degraded
	m.Warnings = actual.Warnings
	*actual = m
	return res
}
