package fusion

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"gonum.org/v1/gonum/floats"

	"github.com/hupe1980/docluster/distance"
	"github.com/hupe1980/docluster/model"
)

type fuser struct {
	ix   *index
	runs []*run
	opts options
}

// mergeSmall folds undersized groups, smallest first, into the nearest
// group that already has the minimum size. Groups stay undersized when no
// such group exists.
func (f *fuser) mergeSmall(groups []*group) []*group {
	minSize := uint64(f.opts.minClusterSize)
	for {
		si := -1
		for i, g := range groups {
			size := g.members.GetCardinality()
			if size < minSize && (si < 0 || size < groups[si].members.GetCardinality()) {
				si = i
			}
		}
		if si < 0 {
			return groups
		}
		ti := f.nearestLarger(groups, si)
		if ti < 0 {
			return groups
		}

		small, target := groups[si], groups[ti]
		if target.centroid != nil && small.centroid != nil {
			target.centroid = blend(
				[][]float64{target.centroid, small.centroid},
				[]float64{float64(target.members.GetCardinality()), float64(small.members.GetCardinality())},
			)
		}
		target.members.Or(small.members)
		target.mergedFrom = append(target.mergedFrom, small.id)
		target.mergedFrom = append(target.mergedFrom, small.mergedFrom...)
		groups = slices.Delete(groups, si, si+1)
	}
}

// nearestLarger ranks the groups of at least minimum size by Jaccard over
// algorithm-expanded membership, then centroid cosine, then size.
func (f *fuser) nearestLarger(groups []*group, si int) int {
	minSize := uint64(f.opts.minClusterSize)
	small := groups[si]
	expanded := f.expand(small.members)
	sc := f.centroidOf(small)

	best := -1
	var bestJ, bestCos float64
	var bestSize uint64
	for i, g := range groups {
		size := g.members.GetCardinality()
		if i == si || size < minSize {
			continue
		}
		j := jaccard(expanded, f.expand(g.members))
		cos := cosine(sc, f.centroidOf(g))
		better := best < 0 ||
			j > bestJ ||
			(j == bestJ && cos > bestCos) ||
			(j == bestJ && cos == bestCos && size > bestSize)
		if better {
			best, bestJ, bestCos, bestSize = i, j, cos, size
		}
	}
	return best
}

// expand returns the union of every run cluster that shares a document
// with members. Two fused groups no single run saw together still overlap
// in their expansions when some run grouped parts of both.
func (f *fuser) expand(members *roaring.Bitmap) *roaring.Bitmap {
	var parts []*roaring.Bitmap
	for _, r := range f.runs {
		for _, g := range r.groups {
			if g.Intersects(members) {
				parts = append(parts, g)
			}
		}
	}
	parts = append(parts, members)
	return roaring.FastOr(parts...)
}

// placeUnassigned adds every document no group holds to the group with the
// most similar centroid, or to the largest group when the document has no
// usable vector. Without groups the leftovers form one group.
func (f *fuser) placeUnassigned(groups []*group) []*group {
	assigned := roaring.New()
	for _, g := range groups {
		assigned.Or(g.members)
	}
	missing := roaring.AndNot(f.ix.all(), assigned)
	if missing.IsEmpty() {
		return groups
	}
	if len(groups) == 0 {
		return []*group{{id: 0, members: missing}}
	}

	centroids := make([][]float64, len(groups))
	largest := 0
	for i, g := range groups {
		centroids[i] = f.centroidOf(g)
		if g.members.GetCardinality() > groups[largest].members.GetCardinality() {
			largest = i
		}
	}

	it := missing.Iterator()
	for it.HasNext() {
		d := it.Next()
		target := largest
		if v := f.opts.vectors[f.ix.ids[d]]; len(v) > 0 {
			bestCos := math.Inf(-1)
			for i, c := range centroids {
				if len(c) != len(v) {
					continue
				}
				if cos := distance.CosineSimilarity(v, c); cos > bestCos {
					target, bestCos = i, cos
				}
			}
		}
		groups[target].members.Add(d)
	}
	return groups
}

// complete checks that the groups partition the universe.
func (f *fuser) complete(groups []*group) error {
	seen := roaring.New()
	var total uint64
	for _, g := range groups {
		total += g.members.GetCardinality()
		seen.Or(g.members)
	}
	n := uint64(f.ix.len())
	if seen.GetCardinality() != n || total != n {
		return fmt.Errorf("%w: %d documents, %d covered, %d placements", ErrIncomplete, n, seen.GetCardinality(), total)
	}
	return nil
}

// centroidOf prefers a blended centroid, then the mean of the member
// vectors, then the overlap-weighted mean of the source centroids.
func (f *fuser) centroidOf(g *group) []float64 {
	if g.centroid != nil {
		return g.centroid
	}
	if len(f.opts.vectors) > 0 {
		var parts [][]float64
		it := g.members.Iterator()
		for it.HasNext() {
			if v := f.opts.vectors[f.ix.ids[it.Next()]]; len(v) > 0 {
				parts = append(parts, v)
			}
		}
		if len(parts) > 0 {
			return blend(parts, nil)
		}
	}

	var (
		parts   [][]float64
		factors []float64
	)
	for _, r := range f.runs {
		for ci, c := range r.groups {
			if overlap := c.AndCardinality(g.members); overlap > 0 {
				parts = append(parts, r.centroids[ci])
				factors = append(factors, r.weight*float64(overlap))
			}
		}
	}
	return blend(parts, factors)
}

// emit converts the groups into hybrid clusters ordered by ID.
func (f *fuser) emit(groups []*group, method Method) []model.HybridCluster {
	slices.SortFunc(groups, func(a, b *group) int { return cmp.Compare(a.id, b.id) })

	var meanConf float64
	for _, r := range f.runs {
		meanConf += r.weight * r.confidence
	}

	out := make([]model.HybridCluster, 0, len(groups))
	for _, g := range groups {
		size := float64(g.members.GetCardinality())
		hc := model.HybridCluster{
			ID:       g.id,
			Members:  f.ix.members(g.members),
			Centroid: f.centroidOf(g),
			Provenance: model.Provenance{
				Method:     method.String(),
				Algorithms: []string{},
				MergedFrom: slices.Sorted(slices.Values(g.mergedFrom)),
			},
		}

		var bestShare float64
		for _, r := range f.runs {
			// share is the largest fraction of g one cluster of r holds.
			var share float64
			for _, c := range r.groups {
				share = max(share, float64(c.AndCardinality(g.members))/size)
			}
			if share == 0 {
				continue
			}
			hc.Provenance.Algorithms = append(hc.Provenance.Algorithms, r.name)
			hc.Provenance.Agreement += r.weight * share
			if r.weight*share > bestShare {
				bestShare = r.weight * share
				hc.SourceAlgorithm = r.name
			}
		}
		hc.Provenance.Agreement = clamp01(hc.Provenance.Agreement)
		hc.Confidence = clamp01(hc.Provenance.Agreement * meanConf)
		out = append(out, hc)
	}
	return out
}

// blend is the factor-weighted mean of the vectors sharing the first
// vector's length. Nil factors weigh every vector equally. It returns nil
// when nothing can be blended.
func blend(vectors [][]float64, factors []float64) []float64 {
	var out []float64
	var total float64
	for i, v := range vectors {
		if len(v) == 0 {
			continue
		}
		if out == nil {
			out = make([]float64, len(v))
		}
		if len(v) != len(out) {
			continue
		}
		w := 1.0
		if factors != nil {
			w = factors[i]
		}
		if w <= 0 {
			continue
		}
		floats.AddScaled(out, w, v)
		total += w
	}
	if total == 0 {
		return nil
	}
	floats.Scale(1/total, out)
	return out
}

func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	return distance.CosineSimilarity(a, b)
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
