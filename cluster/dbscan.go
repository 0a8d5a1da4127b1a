package cluster

import (
	"github.com/hupe1980/docluster/distance"
	"github.com/hupe1980/docluster/model"
)

// DBSCAN groups points connected through chains of core points.
//
// A point is core when its eps-neighborhood (itself included) holds at
// least MinPts points; MinPts is capped at the corpus size so that tiny
// corpora still form a cluster. Clusters grow breadth-first through core
// points. Clusters whose cores share a border point are then merged, so
// every eps-neighborhood of a core point lies in one cluster. Points no
// cluster reaches form the noise cluster, which is omitted when empty.
//
// Neighborhoods are read from the full pairwise distance matrix of
// Params.Metric. Eps is in the units of that metric.
type DBSCAN struct{}

const unlabeled = -2

// DBSCANLabels returns per-point cluster labels (0-based) and -1 for noise.
func DBSCANLabels(m *distance.Matrix, eps float64, minPts int) []int {
	n := m.Len()
	minPts = min(minPts, n)

	neighbors := make([][]int, n)
	core := make([]bool, n)
	for i := 0; i < n; i++ {
		neighbors[i] = m.Neighbors(i, eps)
		core[i] = len(neighbors[i]) >= minPts
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = unlabeled
	}

	next := 0
	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if labels[i] != unlabeled || !core[i] {
			continue
		}
		id := next
		next++

		labels[i] = id
		queue = append(queue[:0], i)
		for len(queue) > 0 {
			p := queue[0]
			queue = queue[1:]
			if !core[p] {
				continue
			}
			for _, q := range neighbors[p] {
				if labels[q] == unlabeled {
					labels[q] = id
					queue = append(queue, q)
				}
			}
		}
	}

	// A border point keeps the label of the first expansion that reached
	// it; join that cluster with every other cluster owning a core
	// neighbor of the point.
	parent := make([]int, next)
	for i := range parent {
		parent[i] = i
	}
	for p := 0; p < n; p++ {
		if !core[p] {
			continue
		}
		for _, q := range neighbors[p] {
			if labels[q] >= 0 {
				union(parent, labels[p], labels[q])
			}
		}
	}

	compact := make(map[int]int, next)
	for i, l := range labels {
		if l == unlabeled {
			labels[i] = model.NoiseClusterID
			continue
		}
		root := find(parent, l)
		id, ok := compact[root]
		if !ok {
			id = len(compact)
			compact[root] = id
		}
		labels[i] = id
	}
	return labels
}

func find(parent []int, x int) int {
	for parent[x] != x {
		parent[x] = parent[parent[x]]
		x = parent[x]
	}
	return x
}

func union(parent []int, a, b int) {
	ra, rb := find(parent, a), find(parent, b)
	if ra == rb {
		return
	}
	if ra > rb {
		ra, rb = rb, ra
	}
	parent[rb] = ra
}

// Cluster implements Clusterer.
func (DBSCAN) Cluster(vectors []model.FeatureVector, params model.Params) (*Outcome, error) {
	params, values, err := prepare(vectors, params)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return emptyOutcome(), nil
	}

	m := distance.Pairwise(values, params.Metric)
	labels := DBSCANLabels(m, params.Eps, params.MinPts)
	clusters := buildClusters(vectors, labels)

	var noise int
	for _, l := range labels {
		if l < 0 {
			noise++
		}
	}
	covered := 1 - float64(noise)/float64(len(labels))

	return &Outcome{
		Clusters:   clusters,
		Iterations: 1,
		Converged:  true,
		Confidence: clamp01(Quality(clusters) * covered),
	}, nil
}
