package vectorize

import (
	"slices"
	"strings"

	"github.com/blevesearch/bleve/v2/analysis"
)

// synonymFilter is a bleve token filter replacing known synonyms with their
// canonical term.
type synonymFilter struct {
	canonical map[string][]byte
}

func newSynonymFilter(synonyms map[string]string) *synonymFilter {
	f := &synonymFilter{canonical: make(map[string][]byte, len(synonyms))}
	for from, to := range synonyms {
		f.canonical[strings.ToLower(from)] = []byte(strings.ToLower(to))
	}
	return f
}

func (f *synonymFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	if len(f.canonical) == 0 {
		return input
	}
	for _, tok := range input {
		if to, ok := f.canonical[string(tok.Term)]; ok {
			// Term aliases the analyzed input buffer; writing in place would
			// clobber the tokens that follow.
			tok.Term = slices.Clone(to)
		}
	}
	return input
}
