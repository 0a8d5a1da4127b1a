package cluster

import (
	"cmp"
	"encoding/binary"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/hupe1980/docluster/distance"
	"github.com/hupe1980/docluster/model"
)

// DefaultKeywordCount is the number of keywords attached to a cluster.
const DefaultKeywordCount = 5

// dedupe groups bit-identical vectors. groupOf[i] is the index of i's
// group in first-seen order.
func dedupe(values [][]float64) (groupOf []int, distinct int) {
	groupOf = make([]int, len(values))
	seen := make(map[string]int, len(values))
	buf := make([]byte, 0, 8*16)
	for i, v := range values {
		buf = buf[:0]
		for _, x := range v {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(x))
		}
		g, ok := seen[string(buf)]
		if !ok {
			g = len(seen)
			seen[string(buf)] = g
		}
		groupOf[i] = g
	}
	return groupOf, len(seen)
}

// buildClusters turns per-point labels into clusters. Labels need not be
// contiguous; negative labels go to the noise cluster. Clusters are
// numbered from 0 in ascending label order, the noise cluster last.
func buildClusters(vectors []model.FeatureVector, labels []int) []model.Cluster {
	byLabel := make(map[int][]int)
	var noise []int
	for i, l := range labels {
		if l < 0 {
			noise = append(noise, i)
			continue
		}
		byLabel[l] = append(byLabel[l], i)
	}

	keys := make([]int, 0, len(byLabel))
	for l := range byLabel {
		keys = append(keys, l)
	}
	slices.Sort(keys)

	clusters := make([]model.Cluster, 0, len(keys)+1)
	for id, l := range keys {
		clusters = append(clusters, NewCluster(id, vectors, byLabel[l]))
	}
	if len(noise) > 0 {
		c := NewCluster(model.NoiseClusterID, vectors, noise)
		c.Noise = true
		clusters = append(clusters, c)
	}
	return clusters
}

// NewCluster summarizes the members vectors[idx] as a cluster with the
// given ID: mean centroid, cohesion quality and top keywords.
func NewCluster(id int, vectors []model.FeatureVector, idx []int) model.Cluster {
	members := make([]string, len(idx))
	for i, j := range idx {
		members[i] = vectors[j].DocumentID
	}
	return model.Cluster{
		ID:       id,
		Members:  members,
		Centroid: centroid(vectors, idx),
		Quality:  cohesion(vectors, idx),
		Keywords: Keywords(vectors, idx, DefaultKeywordCount),
	}
}

func centroid(vectors []model.FeatureVector, idx []int) []float64 {
	if len(idx) == 0 {
		return nil
	}
	c := make([]float64, len(vectors[idx[0]].Values))
	for _, j := range idx {
		floats.Add(c, vectors[j].Values)
	}
	floats.Scale(1/float64(len(idx)), c)
	return c
}

// cohesion is the mean pairwise cosine similarity of the members, computed
// in linear time from the sum of the normalized vectors. Singletons score 1.
func cohesion(vectors []model.FeatureVector, idx []int) float64 {
	m := len(idx)
	if m == 0 {
		return 0
	}
	if m == 1 {
		return 1
	}
	sum := make([]float64, len(vectors[idx[0]].Values))
	var selfDots float64
	for _, j := range idx {
		u, ok := distance.NormalizeL2Copy(vectors[j].Values)
		if !ok {
			continue
		}
		floats.Add(sum, u)
		selfDots++
	}
	pairs := float64(m * (m - 1))
	q := (floats.Dot(sum, sum) - selfDots) / pairs
	return math.Max(-1, math.Min(1, q))
}

// Keywords returns the n most frequent terms among the given members,
// ties broken alphabetically.
func Keywords(vectors []model.FeatureVector, idx []int, n int) []string {
	counts := make(map[string]int)
	for _, j := range idx {
		for _, t := range vectors[j].Metadata.Terms {
			counts[t]++
		}
	}
	if len(counts) == 0 {
		return nil
	}

	terms := make([]string, 0, len(counts))
	for t := range counts {
		terms = append(terms, t)
	}
	slices.SortFunc(terms, func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	if len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

// Quality is the size-weighted mean quality of the non-noise clusters.
func Quality(clusters []model.Cluster) float64 {
	var sum, weight float64
	for _, c := range clusters {
		if c.Noise {
			continue
		}
		sum += c.Quality * float64(c.Size())
		weight += float64(c.Size())
	}
	if weight == 0 {
		return 0
	}
	return sum / weight
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
