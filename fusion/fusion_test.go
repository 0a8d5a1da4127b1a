package fusion

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docluster/model"
	"github.com/hupe1980/docluster/testutil"
)

func ids(prefix string, from, to int) []string {
	out := make([]string, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, fmt.Sprintf("%s%d", prefix, i))
	}
	return out
}

func result(alg model.Algorithm, conf, quality float64, groups ...[]string) model.AlgorithmResult {
	r := model.AlgorithmResult{Algorithm: alg, Confidence: conf, Quality: quality}
	for i, g := range groups {
		r.Clusters = append(r.Clusters, model.Cluster{ID: i, Members: g})
	}
	return r
}

func noise(r model.AlgorithmResult, members ...string) model.AlgorithmResult {
	r.Clusters = append(r.Clusters, model.Cluster{ID: model.NoiseClusterID, Members: members, Noise: true})
	return r
}

// coverage returns how often each id appears across the clusters.
func coverage(clusters []model.HybridCluster) map[string]int {
	seen := make(map[string]int)
	for _, c := range clusters {
		for _, m := range c.Members {
			seen[m]++
		}
	}
	return seen
}

func sorted(s []string) []string {
	out := slices.Clone(s)
	slices.Sort(out)
	return out
}

var methods = []Method{Ensemble, Cascade, Weighted, Adaptive}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in   string
		want Method
	}{
		{"ensemble", Ensemble},
		{"Cascade", Cascade},
		{" weighted ", Weighted},
		{"adaptive", Adaptive},
		{"", Adaptive},
	}
	for _, tt := range tests {
		got, err := ParseMethod(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		if tt.in != "" {
			assert.Equal(t, got, must(ParseMethod(got.String())))
		}
	}

	_, err := ParseMethod("voting")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrConfiguration))
}

func must(m Method, err error) Method {
	if err != nil {
		panic(err)
	}
	return m
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		c    model.DataCharacteristics
		want Method
	}{
		{"HighComplexity", model.DataCharacteristics{Size: 10, DomainComplexity: model.ComplexityHigh}, Ensemble},
		{"Large", model.DataCharacteristics{Size: 1000}, Ensemble},
		{"Medium", model.DataCharacteristics{Size: 10, DomainComplexity: model.ComplexityMedium}, Weighted},
		{"Low", model.DataCharacteristics{Size: 10}, Cascade},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Adaptive.Resolve(tt.c))
			assert.Equal(t, Cascade, Cascade.Resolve(tt.c))
		})
	}
}

func TestFuse_Empty(t *testing.T) {
	for _, m := range methods {
		out, err := Fuse(nil, m)
		require.NoError(t, err)
		assert.Empty(t, out)
	}
}

func TestFuse_InvalidOptions(t *testing.T) {
	r := []model.AlgorithmResult{result(model.KMeans, 1, 1, ids("d", 0, 4))}

	_, err := Fuse(r, Method(42))
	assert.ErrorIs(t, err, model.ErrConfiguration)

	_, err = Fuse(r, Cascade, WithMinClusterSize(0))
	assert.ErrorIs(t, err, model.ErrConfiguration)

	_, err = Fuse(r, Cascade, WithJaccardThreshold(1.5))
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestFuse_Agreement(t *testing.T) {
	a, b := ids("a", 0, 5), ids("b", 0, 5)
	results := []model.AlgorithmResult{
		result(model.KMeans, 0.9, 0.8, a, b),
		result(model.GMM, 0.7, 0.6, b, a),
	}

	for _, m := range methods {
		t.Run(m.String(), func(t *testing.T) {
			out, err := Fuse(results, m)
			require.NoError(t, err)
			require.Len(t, out, 2)

			got := [][]string{sorted(out[0].Members), sorted(out[1].Members)}
			assert.ElementsMatch(t, [][]string{sorted(a), sorted(b)}, got)
			for _, c := range out {
				assert.InDelta(t, 1.0, c.Provenance.Agreement, 1e-9)
				assert.ElementsMatch(t, []string{"kmeans", "gmm"}, c.Provenance.Algorithms)
				assert.Equal(t, "kmeans", c.SourceAlgorithm)
				assert.Greater(t, c.Confidence, 0.0)
				assert.LessOrEqual(t, c.Confidence, 1.0)
				assert.Equal(t, m.Resolve(model.DataCharacteristics{Size: 10}).String(), c.Provenance.Method)
			}
		})
	}
}

func TestFuse_Completeness(t *testing.T) {
	rng := testutil.NewRNG(7)
	universe := ids("d", 0, 60)

	random := func(alg model.Algorithm, k int, drop float64) model.AlgorithmResult {
		groups := make([][]string, k)
		var dropped []string
		for _, id := range universe {
			if rng.Float64() < drop {
				dropped = append(dropped, id)
				continue
			}
			g := rng.Intn(k)
			groups[g] = append(groups[g], id)
		}
		r := result(alg, rng.Float64(), rng.Float64())
		for i, g := range groups {
			if len(g) > 0 {
				r.Clusters = append(r.Clusters, model.Cluster{ID: i, Members: g})
			}
		}
		if alg == model.DBSCAN && len(dropped) > 0 {
			r = noise(r, dropped...)
		}
		return r
	}

	for trial := range 10 {
		results := []model.AlgorithmResult{
			random(model.KMeans, 2+trial%4, 0.1),
			random(model.DBSCAN, 3, 0.3),
			random(model.GMM, 5, 0),
		}
		for _, m := range methods {
			t.Run(fmt.Sprintf("%s/%d", m, trial), func(t *testing.T) {
				out, err := Fuse(results, m, WithUniverse(universe))
				require.NoError(t, err)

				seen := coverage(out)
				assert.Len(t, seen, len(universe))
				for _, id := range universe {
					assert.Equal(t, 1, seen[id], id)
				}
			})
		}
	}
}

func TestFuse_UniverseBeyondResults(t *testing.T) {
	results := []model.AlgorithmResult{result(model.KMeans, 1, 1, ids("d", 0, 4))}
	universe := append(ids("d", 0, 4), "lonely")

	for _, m := range methods {
		out, err := Fuse(results, m, WithUniverse(universe))
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.ElementsMatch(t, universe, out[0].Members)
	}
}

func TestFuse_NoClusters(t *testing.T) {
	results := []model.AlgorithmResult{noise(result(model.DBSCAN, 0.2, 0), "x", "y")}
	out, err := Fuse(results, Ensemble)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.ElementsMatch(t, []string{"x", "y"}, out[0].Members)
	assert.Empty(t, out[0].SourceAlgorithm)
}

func TestCascade(t *testing.T) {
	base := result(model.Hierarchical, 0.5, 0.9, []string{"a", "b", "c"}, []string{"x", "y", "z"})
	other := result(model.KMeans, 0.9, 0.4, []string{"a", "b", "c", "d"}, []string{"x", "y", "w"})

	out, err := Fuse([]model.AlgorithmResult{other, base}, Cascade)
	require.NoError(t, err)
	require.Len(t, out, 2)

	// The highest-quality run is the base; matches contribute new members.
	assert.Equal(t, []string{"a", "b", "c", "d"}, sorted(out[0].Members))
	assert.Equal(t, []string{"w", "x", "y", "z"}, sorted(out[1].Members))
	assert.ElementsMatch(t, []string{"kmeans", "hierarchical"}, out[0].Provenance.Algorithms)
	assert.Equal(t, "cascade", out[0].Provenance.Method)
}

func TestCascade_Threshold(t *testing.T) {
	base := result(model.Hierarchical, 0.5, 0.9, []string{"a", "b", "c", "d"}, []string{"e", "f", "g", "h"})
	// Jaccard({a,p,q,r}, {a,b,c,d}) = 1/7, below the threshold.
	other := result(model.KMeans, 0.5, 0.1, []string{"a", "p", "q", "r"})

	out, err := Fuse([]model.AlgorithmResult{base, other}, Cascade, WithMinClusterSize(1))
	require.NoError(t, err)

	seen := coverage(out)
	for _, id := range []string{"p", "q", "r"} {
		assert.Equal(t, 1, seen[id])
	}
	// Unmatched members are placed, not grouped on their own.
	assert.Len(t, out, 2)
}

func TestMergeSmall(t *testing.T) {
	big1 := []string{"a1", "a2", "a3", "a4"}
	big2 := []string{"b1", "b2", "b3", "b4"}
	results := []model.AlgorithmResult{
		result(model.KMeans, 0.9, 0.9, big1, big2, []string{"s1", "s2"}),
		// GMM puts the small pair with the b-group.
		result(model.GMM, 0.4, 0.5, big1, append(slices.Clone(big2), "s1", "s2")),
	}

	out, err := Fuse(results, Ensemble, WithMinClusterSize(3))
	require.NoError(t, err)
	require.Len(t, out, 2)

	var merged model.HybridCluster
	for _, c := range out {
		if slices.Contains(c.Members, "b1") {
			merged = c
		}
	}
	assert.ElementsMatch(t, append(slices.Clone(big2), "s1", "s2"), merged.Members)
	assert.Equal(t, []int{2}, merged.Provenance.MergedFrom)
}

func TestMergeSmall_ByCentroid(t *testing.T) {
	vectors := testutil.FeatureVectors([][]float64{
		{1, 0}, {1, 0.1}, {0.9, 0}, // v0..v2
		{0, 1}, {0.1, 1}, {0, 0.9}, // v3..v5
		{0.05, 1}, // v6
	})
	results := []model.AlgorithmResult{
		result(model.KMeans, 1, 1, []string{"v0", "v1", "v2"}, []string{"v3", "v4", "v5"}, []string{"v6"}),
	}

	out, err := Fuse(results, Cascade, WithVectors(vectors))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.ElementsMatch(t, []string{"v3", "v4", "v5", "v6"}, out[1].Members)
	assert.Len(t, out[1].Centroid, 2)
}

func TestPlaceUnassigned_NearestCentroid(t *testing.T) {
	vectors := testutil.FeatureVectors([][]float64{
		{1, 0}, {1, 0.1}, {0.9, 0},
		{0, 1}, {0.1, 1}, {0, 0.9},
		{0.95, 0.05}, {0.02, 1},
	})
	universe := make([]string, len(vectors))
	for i, v := range vectors {
		universe[i] = v.DocumentID
	}
	results := []model.AlgorithmResult{
		noise(result(model.DBSCAN, 0.8, 0.9, []string{"v0", "v1", "v2"}, []string{"v3", "v4", "v5"}), "v6", "v7"),
	}

	for _, m := range []Method{Ensemble, Cascade, Weighted} {
		t.Run(m.String(), func(t *testing.T) {
			out, err := Fuse(results, m, WithUniverse(universe), WithVectors(vectors))
			require.NoError(t, err)
			require.Len(t, out, 2)
			assert.Contains(t, out[0].Members, "v6")
			assert.Contains(t, out[1].Members, "v7")
		})
	}
}

func TestWeighted_BlendsCentroids(t *testing.T) {
	a := result(model.KMeans, 1, 1, []string{"a", "b", "c"})
	a.Clusters[0].Centroid = []float64{1, 0}
	b := result(model.GMM, 1, 1, []string{"a", "b", "c"})
	b.Clusters[0].Centroid = []float64{0, 1}

	out, err := Fuse([]model.AlgorithmResult{a, b}, Weighted)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, out[0].Centroid, 1e-9)
}

func TestSetJaccard(t *testing.T) {
	tests := []struct {
		a, b []string
		want float64
	}{
		{nil, nil, 0},
		{[]string{"x"}, nil, 0},
		{[]string{"x", "y"}, []string{"y", "x"}, 1},
		{[]string{"x", "y"}, []string{"y", "z"}, 1.0 / 3},
		{[]string{"x", "x", "y"}, []string{"x"}, 0.5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, SetJaccard(tt.a, tt.b), 1e-9, "%v %v", tt.a, tt.b)
	}
}
