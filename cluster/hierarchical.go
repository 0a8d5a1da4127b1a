package cluster

import (
	"cmp"
	"container/heap"
	"math"
	"slices"

	"github.com/hupe1980/docluster/distance"
	"github.com/hupe1980/docluster/model"
)

// Hierarchical is agglomerative clustering: starting from singletons it
// repeatedly merges the two closest clusters into a binary tree, then cuts
// the tree into K groups.
type Hierarchical struct{}

// Node is a dendrogram node. Leaves are the points 0..n-1 and have Left ==
// Right == -1; internal nodes are numbered n..2n-2 in merge order.
type Node struct {
	Left, Right   int
	MergeDistance float64
	// Level is the merge step that created the node (1 for the first
	// merge, 0 for leaves).
	Level int
	Size  int
}

// Tree is a complete dendrogram.
type Tree struct {
	Nodes  []Node
	Leaves int
}

// Root returns the index of the root node.
func (t *Tree) Root() int { return len(t.Nodes) - 1 }

// BuildTree builds the dendrogram of values. Ward and centroid linkage
// operate on squared Euclidean distances (reported as Euclidean merge
// distances); the other linkages use metric.
//
// Merges follow the Lance–Williams recurrence on one dense distance matrix,
// with a per-row nearest-neighbor cache so that typical inputs need O(n²)
// work.
func BuildTree(values [][]float64, linkage model.Linkage, metric distance.Metric) *Tree {
	n := len(values)
	t := &Tree{Leaves: n, Nodes: make([]Node, n, max(2*n-1, n))}
	for i := range n {
		t.Nodes[i] = Node{Left: -1, Right: -1, Size: 1}
	}
	if n < 2 {
		return t
	}

	squared := linkage == model.LinkageWard || linkage == model.LinkageCentroid
	var d *distance.Matrix
	if squared {
		d = distance.PairwiseFunc(values, distance.SquaredL2)
	} else {
		d = distance.Pairwise(values, metric)
	}

	active := make([]bool, n)
	node := make([]int, n) // tree node currently held by row i
	size := make([]int, n)
	for i := range n {
		active[i], node[i], size[i] = true, i, 1
	}

	nn := make([]int, n)
	nnDist := make([]float64, n)
	refresh := func(i int) {
		nn[i], nnDist[i] = -1, math.Inf(1)
		for j := 0; j < n; j++ {
			if j != i && active[j] {
				if v := d.At(i, j); v < nnDist[i] {
					nn[i], nnDist[i] = j, v
				}
			}
		}
	}
	for i := range n {
		refresh(i)
	}

	for step := 1; step < n; step++ {
		a := -1
		for i := 0; i < n; i++ {
			if active[i] && nn[i] >= 0 && (a < 0 || nnDist[i] < nnDist[a]) {
				a = i
			}
		}
		b := nn[a]
		if b < a {
			a, b = b, a
		}
		dab := d.At(a, b)

		merged := dab
		if squared {
			merged = math.Sqrt(math.Max(0, dab))
		}
		t.Nodes = append(t.Nodes, Node{
			Left:          node[a],
			Right:         node[b],
			MergeDistance: merged,
			Level:         step,
			Size:          size[a] + size[b],
		})

		// Row a now holds the merged cluster; b is retired.
		na, nb := float64(size[a]), float64(size[b])
		for k := 0; k < n; k++ {
			if !active[k] || k == a || k == b {
				continue
			}
			v := lanceWilliams(linkage, d.At(k, a), d.At(k, b), dab, na, nb, float64(size[k]))
			d.Set(k, a, v)
		}
		active[b] = false
		size[a] += size[b]
		node[a] = len(t.Nodes) - 1

		for k := 0; k < n; k++ {
			if !active[k] {
				continue
			}
			switch {
			case k == a || nn[k] == a || nn[k] == b:
				refresh(k)
			case d.At(k, a) < nnDist[k]:
				nn[k], nnDist[k] = a, d.At(k, a)
			}
		}
	}
	return t
}

// lanceWilliams returns the distance from cluster k to the union of i and
// j given the distances before the merge.
func lanceWilliams(linkage model.Linkage, dki, dkj, dij, ni, nj, nk float64) float64 {
	switch linkage {
	case model.LinkageSingle:
		return math.Min(dki, dkj)
	case model.LinkageComplete:
		return math.Max(dki, dkj)
	case model.LinkageAverage:
		return (ni*dki + nj*dkj) / (ni + nj)
	case model.LinkageCentroid:
		s := ni + nj
		return (ni*dki+nj*dkj)/s - ni*nj*dij/(s*s)
	default: // ward
		return ((nk+ni)*dki + (nk+nj)*dkj - nk*dij) / (nk + ni + nj)
	}
}

// Cut descends from the root, always splitting the group whose node has
// the largest merge distance, until k groups exist. It returns the leaf
// indices of every group, groups ordered by their smallest leaf.
func (t *Tree) Cut(k int) [][]int {
	if t.Leaves == 0 {
		return nil
	}
	k = max(1, min(k, t.Leaves))

	open := &nodeHeap{tree: t}
	heap.Push(open, t.Root())
	for open.Len() < k {
		top := heap.Pop(open).(int)
		n := t.Nodes[top]
		heap.Push(open, n.Left)
		heap.Push(open, n.Right)
	}

	groups := make([][]int, 0, k)
	for _, root := range open.items {
		groups = append(groups, t.leaves(root))
	}
	sortGroups(groups)
	return groups
}

func (t *Tree) leaves(root int) []int {
	out := make([]int, 0, t.Nodes[root].Size)
	stack := []int{root}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if i < t.Leaves {
			out = append(out, i)
			continue
		}
		stack = append(stack, t.Nodes[i].Right, t.Nodes[i].Left)
	}
	return out
}

// nodeHeap orders open nodes by descending merge distance. Leaves never
// split, so they sort last.
type nodeHeap struct {
	tree  *Tree
	items []int
}

func (h *nodeHeap) key(i int) (float64, int) {
	if i < h.tree.Leaves {
		return math.Inf(-1), 0
	}
	n := h.tree.Nodes[i]
	return n.MergeDistance, n.Level
}

func (h *nodeHeap) Len() int { return len(h.items) }

func (h *nodeHeap) Less(a, b int) bool {
	da, la := h.key(h.items[a])
	db, lb := h.key(h.items[b])
	if da != db {
		return da > db
	}
	return la > lb
}

func (h *nodeHeap) Swap(a, b int) { h.items[a], h.items[b] = h.items[b], h.items[a] }

func (h *nodeHeap) Push(x any) { h.items = append(h.items, x.(int)) }

func (h *nodeHeap) Pop() any {
	old := h.items
	x := old[len(old)-1]
	h.items = old[:len(old)-1]
	return x
}

func sortGroups(groups [][]int) {
	for _, g := range groups {
		slices.Sort(g)
	}
	slices.SortFunc(groups, func(a, b []int) int { return cmp.Compare(a[0], b[0]) })
}

// Cluster implements Clusterer.
func (Hierarchical) Cluster(vectors []model.FeatureVector, params model.Params) (*Outcome, error) {
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

	tree := BuildTree(values, params.Linkage, params.Metric)
	labels := make([]int, len(values))
	for g, leaves := range tree.Cut(params.K) {
		for _, i := range leaves {
			labels[i] = g
		}
	}
	clusters := buildClusters(vectors, labels)

	return &Outcome{
		Clusters:   clusters,
		Iterations: len(values) - 1,
		Converged:  true,
		Confidence: confidence(clusters, true),
	}, nil
}
