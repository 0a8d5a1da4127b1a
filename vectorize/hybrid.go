package vectorize

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"gonum.org/v1/gonum/floats"

	"github.com/hupe1980/docluster/distance"
)

// hybrid blends four channels: term frequency, the mean term embedding, the
// mean context-window embedding and the mean semantic-neighbor embedding.
func (v *Vectorizer) hybrid(terms []string) []float64 {
	dim := v.table.Dimension()
	out := make([]float64, dim)
	if len(terms) == 0 {
		return out
	}

	embs := make([][]float64, len(terms))
	for i, term := range terms {
		embs[i] = v.table.Embedding(term)
	}

	floats.AddScaled(out, WeightTF, v.termFrequency(terms))
	floats.AddScaled(out, WeightEmbedding, meanNormalized(dim, embs))
	floats.AddScaled(out, WeightContext, v.contextChannel(dim, embs))
	floats.AddScaled(out, WeightSemantic, v.semanticChannel(dim, terms))

	distance.NormalizeL2InPlace(out)
	return out
}

// contextChannel averages, for every token, the embeddings of the tokens
// within the context window around it.
func (v *Vectorizer) contextChannel(dim int, embs [][]float64) []float64 {
	acc := make([]float64, dim)
	window := v.opts.contextWindow
	for i := range embs {
		lo, hi := max(0, i-window), min(len(embs)-1, i+window)
		if hi-lo == 0 {
			floats.Add(acc, embs[i])
			continue
		}
		scale := 1 / float64(hi-lo)
		for j := lo; j <= hi; j++ {
			if j != i {
				floats.AddScaled(acc, scale, embs[j])
			}
		}
	}
	distance.NormalizeL2InPlace(acc)
	return acc
}

// semanticChannel averages, for every distinct term, the embeddings of the
// document's terms whose edit-distance similarity reaches the threshold.
func (v *Vectorizer) semanticChannel(dim int, terms []string) []float64 {
	uniq := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			uniq = append(uniq, t)
		}
		if len(uniq) == maxNeighborTerms {
			break
		}
	}

	acc := make([]float64, dim)
	for _, a := range uniq {
		group := make([][]float64, 0, 4)
		for _, b := range uniq {
			if a == b || Similarity(a, b) >= v.opts.neighborSimilarity {
				group = append(group, v.table.Embedding(b))
			}
		}
		floats.Add(acc, meanNormalized(dim, group))
	}
	distance.NormalizeL2InPlace(acc)
	return acc
}

// Similarity returns 1 - levenshtein(a, b) / max(len(a), len(b)) over
// runes. Equal strings score 1.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

func meanNormalized(dim int, vecs [][]float64) []float64 {
	out := make([]float64, dim)
	for _, v := range vecs {
		floats.Add(out, v)
	}
	distance.NormalizeL2InPlace(out)
	return out
}
