package cluster

import (
	"math/rand/v2"

	"github.com/hupe1980/docluster/distance"
	"github.com/hupe1980/docluster/model"
)

// seedCentroids returns the indices of up to k starting points. Fewer are
// returned only when the data has fewer than k distinct points.
func seedCentroids(values [][]float64, k int, init model.Init, rng *rand.Rand) []int {
	switch init {
	case model.InitPlusPlus:
		return seedPlusPlus(values, k, rng)
	case model.InitRandom:
		return seedRandom(values, k, rng)
	default:
		return seedFarthest(values, k, rng)
	}
}

// seedFarthest picks the first point uniformly at random and every further
// point as the one with the maximum minimum distance to those chosen.
// Ties go to the lowest index, so the result depends only on the first pick.
func seedFarthest(values [][]float64, k int, rng *rand.Rand) []int {
	n := len(values)
	if n == 0 || k <= 0 {
		return nil
	}
	chosen := make([]int, 0, k)
	chosen = append(chosen, rng.IntN(n))

	minDist := make([]float64, n)
	for i := range values {
		minDist[i] = distance.SquaredL2(values[i], values[chosen[0]])
	}

	for len(chosen) < k {
		best, bestDist := -1, 0.0
		for i, d := range minDist {
			if d > bestDist {
				best, bestDist = i, d
			}
		}
		if best < 0 {
			break
		}
		chosen = append(chosen, best)
		for i := range values {
			if d := distance.SquaredL2(values[i], values[best]); d < minDist[i] {
				minDist[i] = d
			}
		}
	}
	return chosen
}

// seedPlusPlus is probabilistic k-means++: each further point is sampled
// with probability proportional to its squared distance to the nearest
// chosen point.
func seedPlusPlus(values [][]float64, k int, rng *rand.Rand) []int {
	n := len(values)
	if n == 0 || k <= 0 {
		return nil
	}
	chosen := make([]int, 0, k)
	chosen = append(chosen, rng.IntN(n))

	minDist := make([]float64, n)
	for i := range values {
		minDist[i] = distance.SquaredL2(values[i], values[chosen[0]])
	}

	for len(chosen) < k {
		var total float64
		for _, d := range minDist {
			total += d
		}
		if total == 0 {
			break
		}
		target := rng.Float64() * total
		next := -1
		for i, d := range minDist {
			if d == 0 {
				continue
			}
			next = i
			target -= d
			if target <= 0 {
				break
			}
		}
		chosen = append(chosen, next)
		for i := range values {
			if d := distance.SquaredL2(values[i], values[next]); d < minDist[i] {
				minDist[i] = d
			}
		}
	}
	return chosen
}

// seedRandom picks k distinct points uniformly at random, skipping
// duplicates of points already chosen.
func seedRandom(values [][]float64, k int, rng *rand.Rand) []int {
	chosen := make([]int, 0, k)
	for _, i := range rng.Perm(len(values)) {
		if len(chosen) == k {
			break
		}
		dup := false
		for _, c := range chosen {
			if distance.SquaredL2(values[i], values[c]) == 0 {
				dup = true
				break
			}
		}
		if !dup {
			chosen = append(chosen, i)
		}
	}
	return chosen
}
