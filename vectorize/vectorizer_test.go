package vectorize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docluster/distance"
	"github.com/hupe1980/docluster/embedding"
	"github.com/hupe1980/docluster/model"
)

func norm(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}

func TestNew_NilTable(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestTerms(t *testing.T) {
	v, err := New(embedding.NewTable(32, 1))
	require.NoError(t, err)

	t.Run("StopWordsAndPunctuation", func(t *testing.T) {
		terms, meta := v.Terms("The cat, and the HAT!")
		assert.Equal(t, []string{"cat", "hat"}, terms)
		assert.Equal(t, 5, meta.RawTokenCount)
		assert.Equal(t, 3, meta.LowInfoTokenCount)
		assert.Equal(t, 2, meta.TokenCount)
		assert.Equal(t, 2, meta.UniqueTokenCount)
		assert.InDelta(t, 3.0, meta.AvgTokenLength, 1e-9)
		assert.Equal(t, 21, meta.TextLength)
	})

	t.Run("Stemming", func(t *testing.T) {
		a, _ := v.Terms("clusters")
		b, _ := v.Terms("cluster")
		assert.Equal(t, a, b)
	})

	t.Run("Synonyms", func(t *testing.T) {
		a, _ := v.Terms("db")
		b, _ := v.Terms("databases")
		require.Len(t, a, 1)
		assert.Equal(t, a, b)
	})

	t.Run("SynonymsKeepFollowingTokens", func(t *testing.T) {
		tests := []struct {
			text string
			want []string
		}{
			{"db schema migration", []string{"databas", "schema", "migrat"}},
			{"schema migration", []string{"schema", "migrat"}},
		}
		for _, tt := range tests {
			got, _ := v.Terms(tt.text)
			assert.Equal(t, tt.want, got, tt.text)
		}

		k8s, _ := v.Terms("k8s cluster node")
		require.Len(t, k8s, 3)
		assert.Equal(t, []string{"cluster", "node"}, k8s[1:])
	})

	t.Run("LowInformation", func(t *testing.T) {
		_, meta := v.Terms("x 42 kubernetes")
		assert.Equal(t, 3, meta.RawTokenCount)
		assert.Equal(t, 2, meta.LowInfoTokenCount)
		assert.InDelta(t, 2.0/3.0, meta.LowInfoRatio(), 1e-9)
	})

	t.Run("Empty", func(t *testing.T) {
		terms, meta := v.Terms("")
		assert.Empty(t, terms)
		assert.Equal(t, 0.0, meta.LowInfoRatio())
	})
}

func TestVectorize(t *testing.T) {
	tbl := embedding.NewTable(16, 1)
	v, err := New(tbl)
	require.NoError(t, err)

	t.Run("Normalized", func(t *testing.T) {
		fv := v.Vectorize(model.Document{ID: "a", Text: "adaptive clustering engine clustering"})
		assert.Equal(t, "a", fv.DocumentID)
		assert.Len(t, fv.Values, 16)
		assert.InDelta(t, 1.0, norm(fv.Values), 1e-9)
	})

	t.Run("EmptyIsZero", func(t *testing.T) {
		fv := v.Vectorize(model.Document{ID: "e", Text: "the and of"})
		assert.True(t, fv.IsZero())
		assert.Len(t, fv.Values, 16)
	})

	t.Run("SameTextSameVector", func(t *testing.T) {
		a := v.Vectorize(model.Document{ID: "1", Text: "ledger consensus protocol"})
		b := v.Vectorize(model.Document{ID: "2", Text: "ledger consensus protocol"})
		assert.Equal(t, a.Values, b.Values)
	})
}

func TestVectorize_Truncation(t *testing.T) {
	tbl := embedding.NewTable(2, 1)
	v, err := New(tbl, WithStemming(false))
	require.NoError(t, err)

	fv := v.Vectorize(model.Document{ID: "a", Text: "alpha beta gamma delta"})
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, 4, fv.Metadata.TokenCount)
	assert.InDelta(t, 1.0, norm(fv.Values), 1e-9)

	// Only terms beyond the dimension: zero vector.
	fv = v.Vectorize(model.Document{ID: "b", Text: "gamma delta"})
	assert.True(t, fv.IsZero())
}

func TestVectorize_Hybrid(t *testing.T) {
	tbl := embedding.NewTable(32, 7)
	v, err := New(tbl, WithHybrid(true))
	require.NoError(t, err)
	assert.True(t, v.Hybrid())

	a := v.Vectorize(model.Document{ID: "a", Text: "adaptive clustering of documents"})
	b := v.Vectorize(model.Document{ID: "b", Text: "adaptive clustering for documents"})
	c := v.Vectorize(model.Document{ID: "c", Text: "distributed ledger consensus"})

	assert.InDelta(t, 1.0, norm(a.Values), 1e-9)
	assert.Greater(t, distance.CosineSimilarity(a.Values, b.Values), distance.CosineSimilarity(a.Values, c.Values))

	// A second vectorizer over the same table reproduces the vector.
	v2, err := New(tbl, WithHybrid(true))
	require.NoError(t, err)
	assert.Equal(t, a.Values, v2.Vectorize(model.Document{ID: "a", Text: "adaptive clustering of documents"}).Values)

	empty := v.Vectorize(model.Document{ID: "e", Text: ""})
	assert.True(t, empty.IsZero())
}

func TestLearn_ThenFreeze(t *testing.T) {
	tbl := embedding.NewTable(8, 1)
	v, err := New(tbl, WithStemming(false))
	require.NoError(t, err)

	docs := []model.Document{{ID: "1", Text: "alpha beta"}, {ID: "2", Text: "gamma alpha"}}
	v.Learn(docs)
	tbl.Freeze()

	assert.Equal(t, []string{"alpha", "beta", "gamma"}, tbl.Vocabulary())
	out := v.VectorizeAll(docs)
	require.Len(t, out, 2)
	assert.Equal(t, "2", out[1].DocumentID)
	assert.Equal(t, 3, tbl.Len())
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"cluster", "cluster", 1},
		{"cluster", "clusters", 1 - 1.0/8},
		{"abc", "xyz", 0},
		{"", "", 1},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.a, tt.b), 1e-9)
		})
	}
}
