package fusion

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/docluster/model"
)

// index maps document IDs onto the dense uint32 space of the bitmaps.
// Positions follow first appearance: the universe first, then members in
// result order.
type index struct {
	ids []string
	pos map[string]uint32
}

func newIndex(universe []string, results []model.AlgorithmResult) *index {
	ix := &index{pos: make(map[string]uint32, len(universe))}
	for _, id := range universe {
		ix.add(id)
	}
	for _, r := range results {
		for _, c := range r.Clusters {
			for _, id := range c.Members {
				ix.add(id)
			}
		}
	}
	return ix
}

func (ix *index) add(id string) {
	if _, ok := ix.pos[id]; ok {
		return
	}
	ix.pos[id] = uint32(len(ix.ids))
	ix.ids = append(ix.ids, id)
}

func (ix *index) len() int { return len(ix.ids) }

// all returns the bitmap of every indexed document.
func (ix *index) all() *roaring.Bitmap {
	b := roaring.New()
	b.AddRange(0, uint64(len(ix.ids)))
	return b
}

// members lists the IDs of b in index order.
func (ix *index) members(b *roaring.Bitmap) []string {
	out := make([]string, 0, b.GetCardinality())
	it := b.Iterator()
	for it.HasNext() {
		out = append(out, ix.ids[it.Next()])
	}
	return out
}

// jaccard is |a ∩ b| / |a ∪ b|, zero for two empty sets.
func jaccard(a, b *roaring.Bitmap) float64 {
	union := a.OrCardinality(b)
	if union == 0 {
		return 0
	}
	return float64(a.AndCardinality(b)) / float64(union)
}

// SetJaccard is the Jaccard similarity of two string sets. Duplicates are
// ignored; two empty sets score 0.
func SetJaccard(a, b []string) float64 {
	set := make(map[string]uint8, len(a)+len(b))
	for _, s := range a {
		set[s] |= 1
	}
	for _, s := range b {
		set[s] |= 2
	}
	if len(set) == 0 {
		return 0
	}
	var inter int
	for _, v := range set {
		if v == 3 {
			inter++
		}
	}
	return float64(inter) / float64(len(set))
}

// run is one algorithm result projected onto the index.
type run struct {
	name       string
	confidence float64
	quality    float64
	// weight is the confidence normalized over all runs.
	weight    float64
	groups    []*roaring.Bitmap
	centroids [][]float64
	// labels[d] is the group holding document d, or -1.
	labels []int
}

// minWeight keeps zero-confidence runs from dropping out of the vote.
const minWeight = 1e-3

// newRuns projects the results. Noise clusters are skipped; their members
// are unassigned in that run. A document claimed twice by one run stays in
// the first cluster.
func newRuns(ix *index, results []model.AlgorithmResult) []*run {
	runs := make([]*run, 0, len(results))
	var total float64
	for _, r := range results {
		rn := &run{
			name:       r.Algorithm.String(),
			confidence: clamp01(r.Confidence),
			quality:    r.Quality,
			labels:     make([]int, ix.len()),
		}
		for i := range rn.labels {
			rn.labels[i] = -1
		}
		for _, c := range r.Clusters {
			if c.Noise || c.ID == model.NoiseClusterID {
				continue
			}
			g := roaring.New()
			gi := len(rn.groups)
			for _, id := range c.Members {
				p := ix.pos[id]
				if rn.labels[p] >= 0 {
					continue
				}
				rn.labels[p] = gi
				g.Add(p)
			}
			if g.IsEmpty() {
				continue
			}
			rn.groups = append(rn.groups, g)
			rn.centroids = append(rn.centroids, c.Centroid)
		}
		rn.weight = max(rn.confidence, minWeight)
		total += rn.weight
		runs = append(runs, rn)
	}
	for _, rn := range runs {
		rn.weight /= total
	}
	return runs
}

// mostConfident returns the run with the highest confidence, the first on
// ties.
func mostConfident(runs []*run) *run {
	best := runs[0]
	for _, r := range runs[1:] {
		if r.confidence > best.confidence {
			best = r
		}
	}
	return best
}
