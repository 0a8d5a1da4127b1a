package strategy

import (
	"math"

	"github.com/hupe1980/docluster/model"
)

// profile is the base performance profile of an algorithm.
type profile struct {
	accuracy         float64
	speed            float64
	scalability      float64
	interpretability float64

	// nanosPerOp converts the cost model into wall time.
	nanosPerOp float64
	// quadratic marks algorithms holding a full n×n matrix.
	quadratic bool
}

var profiles = map[model.Algorithm]profile{
	model.KMeans:       {accuracy: 0.75, speed: 0.9, scalability: 0.85, interpretability: 0.7, nanosPerOp: 1.5},
	model.DBSCAN:       {accuracy: 0.7, speed: 0.6, scalability: 0.5, interpretability: 0.6, nanosPerOp: 1.2, quadratic: true},
	model.Hierarchical: {accuracy: 0.75, speed: 0.4, scalability: 0.3, interpretability: 0.95, nanosPerOp: 2.0, quadratic: true},
	model.GMM:          {accuracy: 0.8, speed: 0.5, scalability: 0.6, interpretability: 0.5, nanosPerOp: 4.0},
	model.Hybrid:       {accuracy: 0.85, speed: 0.35, scalability: 0.4, interpretability: 0.6, nanosPerOp: 0},
}

// sizePenalty shrinks towards zero as the corpus grows past a thousand
// documents; it is 1 for small corpora.
func sizePenalty(size int) float64 {
	if size <= 1000 {
		return 1
	}
	return 1 / (1 + 0.25*math.Log10(float64(size)/1000))
}

// dimensionPenalty does the same for vocabulary size.
func dimensionPenalty(dim int) float64 {
	if dim <= 100 {
		return 1
	}
	return 1 / (1 + 0.1*math.Log10(float64(dim)/100))
}

func expected(alg model.Algorithm, c model.DataCharacteristics) model.ExpectedPerformance {
	p := profiles[alg]
	sp := sizePenalty(c.Size)
	scal := p.scalability
	if p.quadratic {
		scal *= sp
	}
	return model.ExpectedPerformance{
		Accuracy:         clamp01(p.accuracy * dimensionPenalty(c.Dimensionality)),
		Speed:            clamp01(p.speed * sp),
		Scalability:      clamp01(scal),
		Interpretability: clamp01(p.interpretability),
	}
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
