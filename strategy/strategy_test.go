package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docluster/model"
)

func TestEstimateK(t *testing.T) {
	tests := []struct {
		size, target, want int
	}{
		{0, 0, 1},
		{1, 0, 1},
		{5, 0, 2},
		{30, 0, 3},
		{100, 0, 5},
		{500, 0, 8},
		{2000, 0, 12},
		{10000, 0, 20},
		{100, 7, 7},
		{4, 7, 4},
		{1, 2, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EstimateK(tt.size, tt.target), "size=%d target=%d", tt.size, tt.target)
	}
}

func TestSelector_Params(t *testing.T) {
	s := NewSelector(WithSeed(42))
	p := s.Params(model.DataCharacteristics{Size: 1000, NoiseLevel: 0.5}, 0)

	assert.Equal(t, 12, p.K)
	assert.InDelta(t, 0.5, p.Eps, 1e-9)
	assert.Equal(t, 10, p.MinPts)
	assert.Equal(t, model.LinkageWard, p.Linkage)
	assert.Equal(t, int64(42), p.Seed)
	require.NoError(t, p.Validate())

	small := s.Params(model.DataCharacteristics{Size: 20}, 0)
	assert.Equal(t, 3, small.MinPts)
	assert.InDelta(t, 0.3, small.Eps, 1e-9)
}

func TestSelector_Select(t *testing.T) {
	s := NewSelector()

	tests := []struct {
		name string
		c    model.DataCharacteristics
		want model.Algorithm
	}{
		{
			name: "SmallInterpretable",
			c:    model.DataCharacteristics{Size: 50, ClusterShape: model.ShapeElongated},
			want: model.Hierarchical,
		},
		{
			name: "NoisyIrregular",
			c:    model.DataCharacteristics{Size: 3000, NoiseLevel: 0.6, ClusterShape: model.ShapeIrregular, Distribution: model.DistributionSparse},
			want: model.DBSCAN,
		},
		{
			name: "ComplexLarge",
			c:    model.DataCharacteristics{Size: 20000, DomainComplexity: model.ComplexityHigh, Distribution: model.DistributionMixed, ClusterShape: model.ShapeMixed, NoiseLevel: 0.3},
			want: model.Hybrid,
		},
		{
			name: "SphericalClustered",
			c:    model.DataCharacteristics{Size: 800, ClusterShape: model.ShapeSpherical, Distribution: model.DistributionClustered},
			want: model.KMeans,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := s.Select(tt.c, 0)
			assert.Equal(t, tt.want, st.Primary)
			require.Len(t, st.Fallbacks, 2)
			for _, f := range st.Fallbacks {
				assert.True(t, f.IsConcrete())
				assert.NotEqual(t, st.Primary, f)
			}
			// Fallbacks are ordered by descending score.
			assert.GreaterOrEqual(t, st.Scores[st.Fallbacks[0]], st.Scores[st.Fallbacks[1]])
			for _, v := range []float64{st.Expected.Accuracy, st.Expected.Speed, st.Expected.Scalability, st.Expected.Interpretability} {
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 1.0)
			}
		})
	}
}

func TestSelector_Hybrid(t *testing.T) {
	s := NewSelector(WithFusionMethod("cascade"))
	c := model.DataCharacteristics{Size: 500}

	st := s.SelectWith(c, 4, model.Hybrid)
	assert.Equal(t, model.Hybrid, st.Primary)
	assert.Equal(t, "cascade", st.FusionMethod)
	assert.Equal(t, 4, st.Params.K)
	assert.Len(t, st.Fallbacks, 2)

	forced := s.SelectWith(c, 0, model.GMM)
	assert.Equal(t, model.GMM, forced.Primary)
	assert.NotContains(t, forced.Fallbacks, model.GMM)
	assert.Empty(t, forced.FusionMethod)
}

func TestScores_Range(t *testing.T) {
	s := NewSelector()
	scores := s.Scores(model.DataCharacteristics{Size: 100, NoiseLevel: 2})
	require.Len(t, scores, len(model.Algorithms))
	for alg, v := range scores {
		assert.GreaterOrEqual(t, v, 0.0, alg.String())
		assert.LessOrEqual(t, v, 1.0, alg.String())
	}
}

func TestPredictor(t *testing.T) {
	p := NewPredictor()
	s := NewSelector()

	small := model.DataCharacteristics{Size: 100, Dimensionality: 50}
	large := model.DataCharacteristics{Size: 10000, Dimensionality: 5000}

	for _, alg := range model.Algorithms {
		t.Run(alg.String(), func(t *testing.T) {
			ps := p.Predict(small, s.SelectWith(small, 0, alg))
			pl := p.Predict(large, s.SelectWith(large, 0, alg))

			assert.Greater(t, pl.Duration, ps.Duration)
			assert.Greater(t, pl.MemoryBytes, ps.MemoryBytes)
			assert.GreaterOrEqual(t, ps.Accuracy, pl.Accuracy)
			assert.Greater(t, ps.Accuracy, 0.0)
			assert.LessOrEqual(t, ps.Accuracy, 1.0)
		})
	}

	// The distance matrix dominates once n exceeds the dimensionality.
	tall := model.DataCharacteristics{Size: 10000, Dimensionality: 100}
	km := p.Predict(tall, s.SelectWith(tall, 0, model.KMeans))
	db := p.Predict(tall, s.SelectWith(tall, 0, model.DBSCAN))
	assert.Greater(t, db.MemoryBytes, 10*km.MemoryBytes)
}
