package fusion

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/docluster/model"
)

// ErrIncomplete is returned when the fused partition does not cover every
// document exactly once. It indicates a bug, not bad input.
var ErrIncomplete = errors.New("fusion: incomplete partition")

// group is a fused cluster under construction.
type group struct {
	id      int
	members *roaring.Bitmap
	// centroid is set by methods that blend source centroids.
	centroid   []float64
	mergedFrom []int
}

// Fuse merges algorithm results into one partition of the document set.
// The returned clusters are ordered by ID and cover the universe exactly
// once. No results and an empty universe yield an empty partition.
func Fuse(results []model.AlgorithmResult, method Method, optFns ...Option) ([]model.HybridCluster, error) {
	opts := options{
		minClusterSize:   DefaultMinClusterSize,
		jaccardThreshold: DefaultJaccardThreshold,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if !method.Valid() {
		return nil, &model.ConfigurationError{Field: "fusion_method", Value: fmt.Sprint(int(method)), Reason: "unknown fusion method"}
	}

	ix := newIndex(opts.universe, results)
	if ix.len() == 0 {
		return []model.HybridCluster{}, nil
	}

	c := model.DataCharacteristics{Size: ix.len()}
	if opts.characteristics != nil {
		c = *opts.characteristics
	}
	resolved := method.Resolve(c)

	runs := newRuns(ix, results)
	active := slices.DeleteFunc(slices.Clone(runs), func(r *run) bool { return len(r.groups) == 0 })

	var groups []*group
	if len(active) > 0 {
		switch resolved {
		case Ensemble:
			groups = ensemble(active, ix.len())
		case Cascade:
			groups = cascade(active, opts.jaccardThreshold)
		case Weighted:
			groups = weighted(active, ix.len())
		case Adaptive:
			panic("unreachable: adaptive resolves to a concrete method")
		}
	}
	groups = slices.DeleteFunc(groups, func(g *group) bool { return g.members.IsEmpty() })

	f := &fuser{ix: ix, runs: active, opts: opts}
	groups = f.mergeSmall(groups)
	groups = f.placeUnassigned(groups)
	if err := f.complete(groups); err != nil {
		return nil, err
	}
	return f.emit(groups, resolved), nil
}

// ensemble aligns each run's clusters to the anchor's by best Jaccard and
// assigns every document to the key with the highest weighted vote. A
// cluster overlapping no anchor cluster gets a key of its own.
func ensemble(runs []*run, n int) []*group {
	anchor := mostConfident(runs)
	next := len(anchor.groups)
	align := make([][]int, len(runs))
	for ri, r := range runs {
		align[ri] = make([]int, len(r.groups))
		for ci, g := range r.groups {
			if r == anchor {
				align[ri][ci] = ci
				continue
			}
			best, bestJ := -1, 0.0
			for ai, a := range anchor.groups {
				if j := jaccard(g, a); j > bestJ {
					best, bestJ = ai, j
				}
			}
			if best < 0 {
				best = next
				next++
			}
			align[ri][ci] = best
		}
	}

	members := make([]*roaring.Bitmap, next)
	for k := range members {
		members[k] = roaring.New()
	}
	votes := make([]float64, next)
	for d := range n {
		clear(votes)
		best, bestV := -1, 0.0
		for ri, r := range runs {
			l := r.labels[d]
			if l < 0 {
				continue
			}
			k := align[ri][l]
			votes[k] += r.weight
			// Ties keep the lower key, which favours the anchor's order.
			if votes[k] > bestV || (votes[k] == bestV && k < best) {
				best, bestV = k, votes[k]
			}
		}
		if best >= 0 {
			members[best].Add(uint32(d))
		}
	}

	groups := make([]*group, 0, next)
	for k, m := range members {
		groups = append(groups, &group{id: k, members: m})
	}
	return groups
}

// cascade takes the highest-quality run as base. Every cluster of the
// remaining runs, in descending quality, is matched to the base group with
// the highest Jaccard above threshold and contributes its members that no
// group holds yet.
func cascade(runs []*run, threshold float64) []*group {
	order := slices.Clone(runs)
	slices.SortStableFunc(order, func(a, b *run) int {
		if c := cmp.Compare(b.quality, a.quality); c != 0 {
			return c
		}
		return cmp.Compare(b.confidence, a.confidence)
	})

	base := order[0]
	groups := make([]*group, len(base.groups))
	assigned := roaring.New()
	for i, g := range base.groups {
		groups[i] = &group{id: i, members: g.Clone()}
		assigned.Or(g)
	}

	for _, r := range order[1:] {
		for _, c := range r.groups {
			best, bestJ := -1, threshold
			for i, g := range groups {
				if j := jaccard(c, g.members); j > bestJ {
					best, bestJ = i, j
				}
			}
			if best < 0 {
				continue
			}
			extra := roaring.AndNot(c, assigned)
			groups[best].members.Or(extra)
			assigned.Or(extra)
		}
	}
	return groups
}

// weighted scores document d against anchor cluster k as
// Σ_r weight_r · J(cluster_r(d), anchor_k) and assigns d to the best
// positive score. Group centroids blend every source centroid by the same
// weight·Jaccard factors.
func weighted(runs []*run, n int) []*group {
	anchor := mostConfident(runs)
	k := len(anchor.groups)

	sim := make([][][]float64, len(runs))
	for ri, r := range runs {
		sim[ri] = make([][]float64, len(r.groups))
		for ci, g := range r.groups {
			row := make([]float64, k)
			for ai, a := range anchor.groups {
				row[ai] = jaccard(g, a)
			}
			sim[ri][ci] = row
		}
	}

	members := make([]*roaring.Bitmap, k)
	for i := range members {
		members[i] = roaring.New()
	}
	scores := make([]float64, k)
	for d := range n {
		clear(scores)
		for ri, r := range runs {
			if l := r.labels[d]; l >= 0 {
				for ai, j := range sim[ri][l] {
					scores[ai] += r.weight * j
				}
			}
		}
		best, bestS := -1, 0.0
		for ai, s := range scores {
			if s > bestS {
				best, bestS = ai, s
			}
		}
		if best >= 0 {
			members[best].Add(uint32(d))
		}
	}

	groups := make([]*group, k)
	for ai := range k {
		var (
			parts   [][]float64
			factors []float64
		)
		for ri, r := range runs {
			for ci, j := range sim[ri] {
				if j[ai] > 0 {
					parts = append(parts, r.centroids[ci])
					factors = append(factors, r.weight*j[ai])
				}
			}
		}
		groups[ai] = &group{id: ai, members: members[ai], centroid: blend(parts, factors)}
	}
	return groups
}
