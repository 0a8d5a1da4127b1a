package vectorize

// Channel weights of hybrid vectors.
const (
	WeightTF        = 0.1
	WeightEmbedding = 0.4
	WeightContext   = 0.3
	WeightSemantic  = 0.2
)

const (
	// DefaultContextWindow is the number of tokens on each side that form a
	// token's context.
	DefaultContextWindow = 2
	// DefaultNeighborSimilarity is the minimum normalized edit-distance
	// similarity for two terms to count as semantic neighbors.
	DefaultNeighborSimilarity = 0.75
	// DefaultMinTokenLength is the rune length below which a token is
	// considered low-information.
	DefaultMinTokenLength = 2
	// maxNeighborTerms bounds the quadratic neighbor search per document.
	maxNeighborTerms = 256
)

// DefaultSynonyms maps common technical abbreviations to a canonical term.
var DefaultSynonyms = map[string]string{
	"db":        "database",
	"dbs":       "database",
	"databases": "database",
	"k8s":       "kubernetes",
	"js":        "javascript",
	"ts":        "typescript",
	"repo":      "repository",
	"repos":     "repository",
	"config":    "configuration",
	"cfg":       "configuration",
	"auth":      "authentication",
	"authn":     "authentication",
	"app":       "application",
	"apps":      "application",
	"perf":      "performance",
	"doc":       "documentation",
	"docs":      "documentation",
	"algo":      "algorithm",
	"algos":     "algorithm",
}

type options struct {
	hybrid             bool
	synonyms           map[string]string
	stopWords          []string
	stemming           bool
	contextWindow      int
	neighborSimilarity float64
	minTokenLength     int
}

// Option configures a Vectorizer.
type Option func(*options)

func defaultOptions() options {
	return options{
		synonyms:           DefaultSynonyms,
		stemming:           true,
		contextWindow:      DefaultContextWindow,
		neighborSimilarity: DefaultNeighborSimilarity,
		minTokenLength:     DefaultMinTokenLength,
	}
}

// WithHybrid enables the four-channel hybrid vector.
func WithHybrid(enabled bool) Option {
	return func(o *options) {
		o.hybrid = enabled
	}
}

// WithSynonyms replaces the synonym table. Keys and values are matched
// after lowercasing.
func WithSynonyms(synonyms map[string]string) Option {
	return func(o *options) {
		o.synonyms = synonyms
	}
}

// WithStopWords replaces the English stop list.
func WithStopWords(words ...string) Option {
	return func(o *options) {
		o.stopWords = words
	}
}

// WithStemming toggles the porter stemmer.
func WithStemming(enabled bool) Option {
	return func(o *options) {
		o.stemming = enabled
	}
}

// WithContextWindow sets the context radius of hybrid vectors.
func WithContextWindow(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.contextWindow = n
		}
	}
}

// WithNeighborSimilarity sets the edit-distance similarity threshold of
// hybrid vectors.
func WithNeighborSimilarity(s float64) Option {
	return func(o *options) {
		if s > 0 && s <= 1 {
			o.neighborSimilarity = s
		}
	}
}
