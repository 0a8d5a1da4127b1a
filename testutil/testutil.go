package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"

	"github.com/hupe1980/docluster/model"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// UnitVectors generates L2-normalized random vectors (on the hypersphere).
func (r *RNG) UnitVectors(num int, dimensions int) [][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float64, num*dimensions)
	vectors := make([][]float64, num)
	for i := range num {
		vec := data[i*dimensions : (i+1)*dimensions]
		r.fillUnitLocked(vec)
		vectors[i] = vec
	}
	return vectors
}

func (r *RNG) fillUnitLocked(vec []float64) {
	var norm float64
	for j := range vec {
		v := r.rand.NormFloat64()
		vec[j] = v
		norm += v * v
	}
	if norm == 0 {
		return
	}
	inv := 1 / math.Sqrt(norm)
	for j := range vec {
		vec[j] *= inv
	}
}

// ClusteredVectors generates unit vectors scattered around `clusters`
// random centers. labels[i] is the center vector i was drawn around.
// spread controls the Gaussian noise (0.05 = tight, 0.3 = loose).
func (r *RNG) ClusteredVectors(num, dim, clusters int, spread float64) (vectors [][]float64, labels []int) {
	centers := r.UnitVectors(clusters, dim)

	r.mu.Lock()
	defer r.mu.Unlock()

	vectors = make([][]float64, num)
	labels = make([]int, num)
	for i := range num {
		c := i % clusters
		vec := make([]float64, dim)
		var norm float64
		for j := range vec {
			vec[j] = centers[c][j] + r.rand.NormFloat64()*spread
			norm += vec[j] * vec[j]
		}
		inv := 1 / math.Sqrt(norm)
		for j := range vec {
			vec[j] *= inv
		}
		vectors[i] = vec
		labels[i] = c
	}
	return vectors, labels
}

// FeatureVectors wraps raw vectors as feature vectors with IDs "v0", "v1", ...
func FeatureVectors(values [][]float64) []model.FeatureVector {
	out := make([]model.FeatureVector, len(values))
	for i, v := range values {
		out[i] = model.FeatureVector{DocumentID: fmt.Sprintf("v%d", i), Values: v}
	}
	return out
}

// Topic vocabularies used by the generated corpora.
var Topics = map[string][]string{
	"clustering": {"adaptive", "clustering", "centroid", "kmeans", "density", "partition", "cluster", "similarity"},
	"ledger":     {"ledger", "consensus", "validator", "block", "replication", "byzantine", "quorum", "commit"},
	"cooking":    {"recipe", "garlic", "oven", "simmer", "flour", "butter", "onion", "sauce"},
	"astronomy":  {"galaxy", "telescope", "nebula", "orbit", "planet", "comet", "stellar", "redshift"},
}

// ScenarioA returns six near-duplicate documents about adaptive clustering
// followed by six about ledger consensus, and the topic of every document.
func ScenarioA() ([]model.Document, map[string]string) {
	clustering := []string{
		"Adaptive clustering groups similar documents with centroid updates",
		"Adaptive clustering of documents using centroid based grouping",
		"Clustering documents adaptively: centroid updates group similar items",
		"An adaptive clustering engine groups documents around centroids",
		"Centroid based adaptive clustering for grouping similar documents",
		"Grouping similar documents through adaptive centroid clustering",
	}
	ledger := []string{
		"Ledger consensus protocols replicate blocks across validators",
		"Validators reach ledger consensus before blocks are replicated",
		"Byzantine ledger consensus among validators replicating blocks",
		"Replicated ledger blocks require consensus of the validators",
		"Consensus of ledger validators decides which blocks replicate",
		"Distributed ledger consensus: validators agree on replicated blocks",
	}

	docs := make([]model.Document, 0, 12)
	topics := make(map[string]string, 12)
	for i, text := range clustering {
		id := fmt.Sprintf("clustering-%d", i)
		docs = append(docs, model.Document{ID: id, Text: text})
		topics[id] = "clustering"
	}
	for i, text := range ledger {
		id := fmt.Sprintf("ledger-%d", i)
		docs = append(docs, model.Document{ID: id, Text: text})
		topics[id] = "ledger"
	}
	return docs, topics
}

// Corpus generates n documents drawn round-robin from the named topics.
// Every document holds wordsPerDoc words of its topic vocabulary.
func (r *RNG) Corpus(n, wordsPerDoc int, topics ...string) ([]model.Document, map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	docs := make([]model.Document, n)
	labels := make(map[string]string, n)
	var sb strings.Builder
	for i := range n {
		topic := topics[i%len(topics)]
		vocab := Topics[topic]
		sb.Reset()
		for w := range wordsPerDoc {
			if w > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(vocab[r.rand.Intn(len(vocab))])
		}
		id := fmt.Sprintf("%s-%d", topic, i)
		docs[i] = model.Document{ID: id, Text: sb.String()}
		labels[id] = topic
	}
	return docs, labels
}

// Purity returns the fraction of members that carry the majority label of
// their cluster, over all members of the given member lists.
func Purity(groups [][]string, labels map[string]string) float64 {
	var total, majority int
	for _, members := range groups {
		counts := make(map[string]int)
		best := 0
		for _, m := range members {
			counts[labels[m]]++
			if counts[labels[m]] > best {
				best = counts[labels[m]]
			}
		}
		total += len(members)
		majority += best
	}
	if total == 0 {
		return 1
	}
	return float64(majority) / float64(total)
}

// Coverage counts how often every ID occurs across the member lists.
func Coverage(groups [][]string) map[string]int {
	out := make(map[string]int)
	for _, members := range groups {
		for _, m := range members {
			out[m]++
		}
	}
	return out
}

// Members extracts the member lists of clusters.
func Members(clusters []model.Cluster) [][]string {
	out := make([][]string, len(clusters))
	for i, c := range clusters {
		out[i] = c.Members
	}
	return out
}
