package docluster

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/docluster/cluster"
	"github.com/hupe1980/docluster/fusion"
	"github.com/hupe1980/docluster/model"
)

// execution is what the executor hands back to the pipeline.
type execution struct {
	clusters      []model.Cluster
	hybrid        []model.HybridCluster
	confidence    float64
	executed      []model.Algorithm
	fallbacksUsed int
	degraded      bool
	warnings      []string
}

// execute runs the strategy. A concrete primary runs first and each
// fallback only after the previous algorithm failed. A Hybrid primary runs
// every fallback and fuses the results. When nothing succeeds the run
// degrades to one cluster holding every document.
func (e *Engine) execute(ctx context.Context, logger *Logger, vectors []model.FeatureVector, c model.DataCharacteristics, st model.Strategy) (*execution, error) {
	ex := &execution{}

	var results []model.AlgorithmResult
	if st.Primary == model.Hybrid {
		for _, alg := range st.Fallbacks {
			res, err := e.attempt(ctx, logger, ex, alg, vectors, st.Params)
			if err != nil {
				if errors.Is(err, ErrConfiguration) {
					return nil, err
				}
				continue
			}
			results = append(results, res)
		}
	} else {
		candidates := st.Candidates()
		for i, alg := range candidates {
			if i > 0 {
				ex.fallbacksUsed++
				logger.LogFallback(ctx, candidates[i-1], alg)
				e.metrics.RecordFallback(candidates[i-1].String(), alg.String())
			}
			res, err := e.attempt(ctx, logger, ex, alg, vectors, st.Params)
			if err != nil {
				if errors.Is(err, ErrConfiguration) {
					return nil, err
				}
				if ctx.Err() != nil {
					break
				}
				continue
			}
			results = append(results, res)
			break
		}
	}

	switch len(results) {
	case 0:
		logger.LogDegraded(ctx, len(vectors))
		e.metrics.RecordDegraded()
		ex.warnings = append(ex.warnings, ErrAllAlgorithmsFailed.Error())
		ex.degraded = true
		ex.confidence = DegradedConfidence
		ex.clusters = []model.Cluster{cluster.NewCluster(0, vectors, allIndices(len(vectors)))}
	case 1:
		ex.clusters = results[0].Clusters
		ex.confidence = results[0].Confidence
	default:
		e.fuse(ctx, logger, ex, results, vectors, c, st)
	}
	return ex, nil
}

// attempt runs one algorithm, turning panics into errors and recording
// convergence warnings.
func (e *Engine) attempt(ctx context.Context, logger *Logger, ex *execution, alg model.Algorithm, vectors []model.FeatureVector, params model.Params) (res model.AlgorithmResult, err error) {
	ex.executed = append(ex.executed, alg)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = &AlgorithmError{Algorithm: alg, cause: panicError(r)}
		}
		elapsed := time.Since(start)
		logger.LogAlgorithm(ctx, alg, len(res.Clusters), elapsed, err)
		e.metrics.RecordAlgorithm(alg.String(), elapsed, err)
		if err != nil {
			ex.warnings = append(ex.warnings, err.Error())
		}
	}()

	if err := ctx.Err(); err != nil {
		return res, err
	}
	c, err := e.opts.newClusterer(alg)
	if err != nil {
		return res, err
	}
	out, err := c.Cluster(vectors, params)
	if err != nil {
		if errors.Is(err, ErrConfiguration) {
			return res, err
		}
		return res, &AlgorithmError{Algorithm: alg, cause: err}
	}

	res = model.AlgorithmResult{
		Algorithm:     alg,
		Clusters:      out.Clusters,
		Quality:       cluster.Quality(out.Clusters),
		Confidence:    out.Confidence,
		ExecutionTime: time.Since(start),
		Iterations:    out.Iterations,
		Converged:     out.Converged,
	}
	if !out.Converged {
		w := &ConvergenceWarning{Algorithm: alg, Iterations: out.Iterations}
		ex.warnings = append(ex.warnings, w.Error())
	}
	return res, nil
}

// fuse merges several results. If fusion fails the most confident result
// is used as is.
func (e *Engine) fuse(ctx context.Context, logger *Logger, ex *execution, results []model.AlgorithmResult, vectors []model.FeatureVector, c model.DataCharacteristics, st model.Strategy) {
	method, err := fusion.ParseMethod(st.FusionMethod)
	if err != nil {
		method = fusion.Adaptive
	}

	ids := make([]string, len(vectors))
	pos := make(map[string]int, len(vectors))
	for i, v := range vectors {
		ids[i] = v.DocumentID
		pos[v.DocumentID] = i
	}

	start := time.Now()
	opts := append([]fusion.Option{
		fusion.WithUniverse(ids),
		fusion.WithVectors(vectors),
		fusion.WithCharacteristics(c),
	}, e.opts.fusionOpts...)
	hybrid, err := fusion.Fuse(results, method, opts...)
	resolved := method.Resolve(c).String()
	logger.LogFusion(ctx, resolved, len(results), len(hybrid), err)
	e.metrics.RecordFusion(resolved, len(hybrid), time.Since(start), err)

	if err != nil {
		best := results[0]
		for _, r := range results[1:] {
			if r.Confidence > best.Confidence {
				best = r
			}
		}
		ex.warnings = append(ex.warnings, err.Error())
		ex.clusters = best.Clusters
		ex.confidence = best.Confidence
		return
	}

	ex.hybrid = hybrid
	ex.clusters = make([]model.Cluster, len(hybrid))
	var conf, total float64
	for i, h := range hybrid {
		idx := make([]int, 0, len(h.Members))
		for _, id := range h.Members {
			idx = append(idx, pos[id])
		}
		ex.clusters[i] = cluster.NewCluster(h.ID, vectors, idx)
		conf += h.Confidence * float64(len(h.Members))
		total += float64(len(h.Members))
	}
	if total > 0 {
		ex.confidence = conf / total
	}
}

func allIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
