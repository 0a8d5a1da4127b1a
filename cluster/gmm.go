package cluster

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/docluster/distance"
	"github.com/hupe1980/docluster/model"
)

const streamGMM = 0x676d6d

// minComponentMass keeps a component alive when it loses all
// responsibility.
const minComponentMass = 1e-10

// GMM is a Gaussian mixture fitted by expectation-maximization.
//
// The likelihood uses an isotropic approximation: each component's scalar
// variance is the trace of its diagonal covariance divided by the
// dimension. The M-step still estimates the full diagonal.
type GMM struct{}

// EMStep records one EM iteration.
type EMStep struct {
	LogLikelihood float64
	// WeightSum is the sum of the mixture weights after the M-step.
	WeightSum float64
}

// Mixture is a fitted mixture model.
type Mixture struct {
	Weights []float64
	// Means is k×D.
	Means *mat.Dense
	// Covariances holds the diagonal covariance of each component, k×D,
	// regularizer included.
	Covariances *mat.Dense
	// Responsibilities is n×k from the final E-step.
	Responsibilities *mat.Dense
	// Labels is the arg-max responsibility of every point.
	Labels     []int
	History    []EMStep
	Iterations int
	Converged  bool
}

// Variance returns the isotropic variance of component c.
func (m *Mixture) Variance(c int) float64 {
	_, dim := m.Covariances.Dims()
	return floats.Sum(m.Covariances.RawRowView(c)) / float64(dim)
}

// FitMixture runs EM on values until the log-likelihood gain falls below
// params.Tolerance or the iteration cap is hit. Means are seeded per
// params.Init (InitKMeans runs a full k-means first). params must already
// be validated.
func FitMixture(values [][]float64, params model.Params) *Mixture {
	n := len(values)
	if n == 0 {
		return &Mixture{Converged: true}
	}
	dim := len(values[0])

	means := initialMeans(values, params)
	k, _ := means.Dims()

	cov := mat.NewDense(k, dim, nil)
	global := globalVariance(values)
	for c := 0; c < k; c++ {
		row := cov.RawRowView(c)
		for d := range row {
			row[d] = global[d] + params.Regularization
		}
	}

	m := &Mixture{
		Weights:          make([]float64, k),
		Means:            means,
		Covariances:      cov,
		Responsibilities: mat.NewDense(n, k, nil),
	}
	for c := range m.Weights {
		m.Weights[c] = 1 / float64(k)
	}

	prev := math.Inf(-1)
	for iter := 1; iter <= params.MaxIterations; iter++ {
		ll := m.expectation(values, params.Regularization)
		m.maximization(values, params.Regularization)
		m.History = append(m.History, EMStep{LogLikelihood: ll, WeightSum: floats.Sum(m.Weights)})
		m.Iterations = iter

		if iter > 1 && math.Abs(ll-prev) < params.Tolerance {
			m.Converged = true
			break
		}
		prev = ll
	}

	// Responsibilities of the final parameters drive the hard assignment.
	m.expectation(values, params.Regularization)
	m.Labels = make([]int, n)
	for i := range m.Labels {
		m.Labels[i] = floats.MaxIdx(m.Responsibilities.RawRowView(i))
	}
	return m
}

// expectation fills the responsibilities and returns the log-likelihood.
func (m *Mixture) expectation(values [][]float64, reg float64) float64 {
	k := len(m.Weights)
	dim := float64(len(values[0]))
	logTerms := make([]float64, k)

	variances := make([]float64, k)
	for c := range variances {
		variances[c] = math.Max(m.Variance(c), reg)
		if variances[c] <= 0 {
			variances[c] = model.DefaultRegularization
		}
	}

	var ll float64
	for i, x := range values {
		for c := 0; c < k; c++ {
			if m.Weights[c] <= 0 {
				logTerms[c] = math.Inf(-1)
				continue
			}
			v := variances[c]
			sq := distance.SquaredL2(x, m.Means.RawRowView(c))
			logTerms[c] = math.Log(m.Weights[c]) - 0.5*dim*math.Log(2*math.Pi*v) - sq/(2*v)
		}
		lse := floats.LogSumExp(logTerms)
		ll += lse

		row := m.Responsibilities.RawRowView(i)
		for c := range row {
			row[c] = math.Exp(logTerms[c] - lse)
		}
	}
	return ll
}

// maximization re-estimates weights, means and diagonal covariances.
func (m *Mixture) maximization(values [][]float64, reg float64) {
	n := len(values)
	k := len(m.Weights)

	for c := 0; c < k; c++ {
		var mass float64
		for i := 0; i < n; i++ {
			mass += m.Responsibilities.At(i, c)
		}
		if mass < minComponentMass {
			// Keep mean and covariance; the weight decays to (almost) zero.
			m.Weights[c] = minComponentMass
			continue
		}
		m.Weights[c] = mass / float64(n)

		mean := m.Means.RawRowView(c)
		clear(mean)
		for i, x := range values {
			floats.AddScaled(mean, m.Responsibilities.At(i, c), x)
		}
		floats.Scale(1/mass, mean)

		cov := m.Covariances.RawRowView(c)
		clear(cov)
		for i, x := range values {
			r := m.Responsibilities.At(i, c)
			for d, xd := range x {
				diff := xd - mean[d]
				cov[d] += r * diff * diff
			}
		}
		for d := range cov {
			cov[d] = cov[d]/mass + reg
		}
	}

	// Renormalize so the weights sum to exactly one.
	floats.Scale(1/floats.Sum(m.Weights), m.Weights)
}

func initialMeans(values [][]float64, params model.Params) *mat.Dense {
	if params.Init == model.InitKMeans {
		p := params
		p.Init = model.InitFarthest
		return mat.DenseCopyOf(FitKMeans(values, p).Centroids)
	}
	seeds := seedCentroids(values, params.K, params.Init, newRand(params.Seed, streamGMM))
	means := mat.NewDense(len(seeds), len(values[0]), nil)
	for c, i := range seeds {
		means.SetRow(c, values[i])
	}
	return means
}

func globalVariance(values [][]float64) []float64 {
	dim := len(values[0])
	mean := make([]float64, dim)
	for _, x := range values {
		floats.Add(mean, x)
	}
	floats.Scale(1/float64(len(values)), mean)

	out := make([]float64, dim)
	for _, x := range values {
		for d, xd := range x {
			diff := xd - mean[d]
			out[d] += diff * diff
		}
	}
	floats.Scale(1/float64(len(values)), out)
	return out
}

// Cluster implements Clusterer.
func (GMM) Cluster(vectors []model.FeatureVector, params model.Params) (*Outcome, error) {
	params, values, err := prepare(vectors, params)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return emptyOutcome(), nil
	}
	if out, ok := reducedOutcome(vectors, values, params.K); ok {
		return out, nil
	}

	mix := FitMixture(values, params)
	clusters := buildClusters(vectors, mix.Labels)

	// Confidence is the mean arg-max responsibility.
	var sure float64
	for i := range values {
		sure += floats.Max(mix.Responsibilities.RawRowView(i))
	}
	conf := sure / float64(len(values))
	if !mix.Converged {
		conf *= unconvergedPenalty
	}

	return &Outcome{
		Clusters:   clusters,
		Iterations: mix.Iterations,
		Converged:  mix.Converged,
		Confidence: clamp01(conf),
	}, nil
}
