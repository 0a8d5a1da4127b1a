package strategy

import (
	"math"
	"time"

	"github.com/hupe1980/docluster/model"
)

// Predictor estimates the cost of a strategy. Its output is informational:
// it never changes what gets executed.
type Predictor struct{}

// NewPredictor creates a Predictor.
func NewPredictor() *Predictor {
	return &Predictor{}
}

// Predict estimates wall time, peak memory and accuracy of running s on a
// corpus with characteristics c.
func (p *Predictor) Predict(c model.DataCharacteristics, s model.Strategy) model.Prediction {
	algs := []model.Algorithm{s.Primary}
	if s.Primary == model.Hybrid {
		algs = s.Fallbacks
	}

	var (
		dur time.Duration
		mem int64
	)
	for _, alg := range algs {
		dur += duration(alg, c, s.Params)
		mem = max(mem, memory(alg, c, s.Params))
	}

	acc := profiles[s.Primary].accuracy * sizePenalty(c.Size) * dimensionPenalty(c.Dimensionality)
	return model.Prediction{
		Duration:    dur,
		MemoryBytes: mem,
		Accuracy:    clamp01(acc),
	}
}

// ops is the cost model of one algorithm in abstract operations.
func ops(alg model.Algorithm, c model.DataCharacteristics, params model.Params) float64 {
	n := float64(c.Size)
	d := float64(max(c.Dimensionality, 1))
	k := float64(max(params.K, 1))
	iters := float64(max(params.MaxIterations, 1))

	switch alg {
	case model.KMeans:
		// Lloyd iterations rarely run to the cap.
		return n * k * d * math.Min(iters, 25)
	case model.GMM:
		return n * k * d * math.Min(iters, 50)
	case model.DBSCAN:
		return n * n * d
	case model.Hierarchical:
		return n*n*d + n*n*math.Log2(n+1)
	default:
		return 0
	}
}

func duration(alg model.Algorithm, c model.DataCharacteristics, params model.Params) time.Duration {
	return time.Duration(ops(alg, c, params) * profiles[alg].nanosPerOp)
}

func memory(alg model.Algorithm, c model.DataCharacteristics, params model.Params) int64 {
	const f64 = 8
	n := int64(c.Size)
	d := int64(max(c.Dimensionality, 1))
	k := int64(max(params.K, 1))

	bytes := n * d * f64 // vectors
	switch alg {
	case model.DBSCAN, model.Hierarchical:
		bytes += n * n * f64
	case model.GMM:
		bytes += n*k*f64 + 2*k*d*f64
	case model.KMeans:
		bytes += 2 * k * d * f64
	}
	return bytes
}
