// Package vectorize turns document text into fixed-dimension feature
// vectors.
//
// Text runs through a bleve analysis chain: non-alphanumerics become
// spaces, the unicode tokenizer splits words, tokens are lowercased,
// stop words are dropped, known synonyms are mapped to a canonical term and
// the porter stemmer reduces the rest to their stems. Term frequencies are
// accumulated into the vocabulary slots of an embedding.Table and the
// result is L2-normalized.
//
// The table has exactly Dimension() slots. Once they are taken, new terms
// no longer contribute to term-frequency vectors; size the dimension to the
// vocabulary you need.
package vectorize

import (
	"regexp"
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2/analysis"
	regexpchar "github.com/blevesearch/bleve/v2/analysis/char/regexp"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/porter"
	"github.com/blevesearch/bleve/v2/analysis/token/stop"
	unicodetok "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"

	"github.com/hupe1980/docluster/distance"
	"github.com/hupe1980/docluster/embedding"
	"github.com/hupe1980/docluster/model"
)

var nonAlphanumeric = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// Vectorizer is safe for concurrent use when its table is frozen, or when
// only one goroutine registers new terms at a time.
type Vectorizer struct {
	table *embedding.Table
	opts  options

	raw      *analysis.DefaultAnalyzer
	filters  []analysis.TokenFilter
	stopList analysis.TokenMap
}

// New creates a Vectorizer writing into table.
func New(table *embedding.Table, optFns ...Option) (*Vectorizer, error) {
	if table == nil {
		return nil, &model.ConfigurationError{Field: "embedding_table", Reason: "must not be nil"}
	}

	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	stopList := analysis.NewTokenMap()
	if opts.stopWords != nil {
		for _, w := range opts.stopWords {
			stopList.AddToken(w)
		}
	} else if err := stopList.LoadBytes(en.EnglishStopWords); err != nil {
		return nil, err
	}

	filters := []analysis.TokenFilter{
		stop.NewStopTokensFilter(stopList),
		newSynonymFilter(opts.synonyms),
	}
	if opts.stemming {
		filters = append(filters, porter.NewPorterStemmer())
	}

	return &Vectorizer{
		table: table,
		opts:  opts,
		raw: &analysis.DefaultAnalyzer{
			CharFilters:  []analysis.CharFilter{regexpchar.New(nonAlphanumeric, []byte(" "))},
			Tokenizer:    unicodetok.NewUnicodeTokenizer(),
			TokenFilters: []analysis.TokenFilter{lowercase.NewLowerCaseFilter()},
		},
		filters:  filters,
		stopList: stopList,
	}, nil
}

// Table returns the embedding table the vectorizer writes into.
func (v *Vectorizer) Table() *embedding.Table { return v.table }

// Dimension returns the length of produced vectors.
func (v *Vectorizer) Dimension() int { return v.table.Dimension() }

// Hybrid reports whether hybrid vectors are produced.
func (v *Vectorizer) Hybrid() bool { return v.opts.hybrid }

// Terms runs the analysis chain and returns the normalized terms in
// document order together with the token statistics.
func (v *Vectorizer) Terms(text string) ([]string, model.VectorMetadata) {
	meta := model.VectorMetadata{TextLength: utf8.RuneCountInString(text)}

	stream := v.raw.Analyze([]byte(text))
	meta.RawTokenCount = len(stream)
	for _, tok := range stream {
		if v.lowInformation(tok.Term) {
			meta.LowInfoTokenCount++
		}
	}

	for _, f := range v.filters {
		stream = f.Filter(stream)
	}

	terms := make([]string, 0, len(stream))
	unique := make(map[string]struct{}, len(stream))
	var runes int
	for _, tok := range stream {
		if len(tok.Term) == 0 {
			continue
		}
		term := string(tok.Term)
		terms = append(terms, term)
		unique[term] = struct{}{}
		runes += utf8.RuneCount(tok.Term)
	}

	meta.TokenCount = len(terms)
	meta.UniqueTokenCount = len(unique)
	if len(terms) > 0 {
		meta.AvgTokenLength = float64(runes) / float64(len(terms))
	}
	meta.Terms = terms
	return terms, meta
}

// Learn registers every term of docs in the table, in document order. Run
// it single-threaded before vectorizing in parallel, then freeze the table.
func (v *Vectorizer) Learn(docs []model.Document) {
	for _, doc := range docs {
		terms, _ := v.Terms(doc.Text)
		for _, term := range terms {
			v.table.Slot(term)
			if v.opts.hybrid {
				v.table.Embedding(term)
			}
		}
	}
}

// Vectorize converts one document.
func (v *Vectorizer) Vectorize(doc model.Document) model.FeatureVector {
	terms, meta := v.Terms(doc.Text)

	var values []float64
	if v.opts.hybrid {
		values = v.hybrid(terms)
	} else {
		values = v.termFrequency(terms)
	}

	return model.FeatureVector{
		DocumentID: doc.ID,
		Values:     values,
		Metadata:   meta,
	}
}

// VectorizeAll converts docs, preserving order.
func (v *Vectorizer) VectorizeAll(docs []model.Document) []model.FeatureVector {
	out := make([]model.FeatureVector, len(docs))
	for i, doc := range docs {
		out[i] = v.Vectorize(doc)
	}
	return out
}

// termFrequency accumulates term counts into vocabulary slots and
// normalizes. Documents without slotted terms yield the zero vector.
func (v *Vectorizer) termFrequency(terms []string) []float64 {
	vec := make([]float64, v.table.Dimension())
	for _, term := range terms {
		if slot, ok := v.table.Slot(term); ok {
			vec[slot]++
		}
	}
	distance.NormalizeL2InPlace(vec)
	return vec
}

func (v *Vectorizer) lowInformation(term []byte) bool {
	if utf8.RuneCount(term) < v.opts.minTokenLength {
		return true
	}
	if v.stopList[string(term)] {
		return true
	}
	for _, r := range string(term) {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
