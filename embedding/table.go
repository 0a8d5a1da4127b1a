// Package embedding provides the caller-owned term table shared by every
// vectorizer of a run.
//
// A Table assigns each normalized term two things:
//
//   - a vocabulary slot in [0, dim), handed out in first-seen order, which
//     positions the term in term-frequency vectors;
//   - a pseudo-embedding, a unit vector derived deterministically from the
//     table seed and the term.
//
// Construct one Table, pass it to every vectorizer, and keep it for as long
// as vectors from different runs must stay comparable. Call Freeze before
// sharing a table between goroutines that vectorize in parallel.
package embedding

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultDimension is the vector dimension used when none is given.
const DefaultDimension = 100

// Table is safe for concurrent use.
type Table struct {
	mu sync.RWMutex

	dim    int
	seed   int64
	frozen bool

	slots      map[string]int
	vocabulary []string
	embeddings map[string][]float64
}

// NewTable creates an empty table. A non-positive dim selects
// DefaultDimension.
func NewTable(dim int, seed int64) *Table {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &Table{
		dim:        dim,
		seed:       seed,
		slots:      make(map[string]int),
		embeddings: make(map[string][]float64),
	}
}

// Dimension returns the vector dimension.
func (t *Table) Dimension() int { return t.dim }

// Seed returns the seed embeddings are derived from.
func (t *Table) Seed() int64 { return t.seed }

// Slot returns the vocabulary slot of term, assigning the next free one if
// the table is writable. ok is false once all dim slots are taken (or the
// table is frozen) and term has none: the term is dropped from
// term-frequency vectors.
func (t *Table) Slot(term string) (slot int, ok bool) {
	t.mu.RLock()
	slot, ok = t.slots[term]
	frozen := t.frozen
	t.mu.RUnlock()
	if ok || frozen {
		return slot, ok
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if slot, ok = t.slots[term]; ok || t.frozen {
		return slot, ok
	}
	if len(t.vocabulary) >= t.dim {
		return 0, false
	}
	slot = len(t.vocabulary)
	t.slots[term] = slot
	t.vocabulary = append(t.vocabulary, term)
	return slot, true
}

// Register assigns slots and memoizes embeddings for terms.
func (t *Table) Register(terms ...string) {
	for _, term := range terms {
		t.Slot(term)
		t.Embedding(term)
	}
}

// Embedding returns the pseudo-embedding of term. The returned slice must
// not be modified. On a frozen table unknown terms get a freshly derived,
// un-memoized vector; the values are identical either way.
func (t *Table) Embedding(term string) []float64 {
	t.mu.RLock()
	v, ok := t.embeddings[term]
	frozen := t.frozen
	t.mu.RUnlock()
	if ok {
		return v
	}

	v = derive(t.seed, term, t.dim)
	if frozen {
		return v
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.embeddings[term]; ok {
		return existing
	}
	t.embeddings[term] = v
	return v
}

// Freeze makes the table read-only.
func (t *Table) Freeze() {
	t.mu.Lock()
	t.frozen = true
	t.mu.Unlock()
}

// Frozen reports whether Freeze was called.
func (t *Table) Frozen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frozen
}

// Len returns the number of terms holding a slot.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.vocabulary)
}

// Vocabulary returns the slotted terms in slot order.
func (t *Table) Vocabulary() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.vocabulary))
	copy(out, t.vocabulary)
	return out
}

// derive produces a unit vector from (seed, term). It is a pure function,
// so equal seeds give equal embeddings across processes.
func derive(seed int64, term string, dim int) []float64 {
	rng := rand.New(rand.NewPCG(uint64(seed), xxhash.Sum64String(term)))
	v := make([]float64, dim)
	var norm float64
	for i := range v {
		v[i] = rng.NormFloat64()
		norm += v[i] * v[i]
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] /= norm
	}
	return v
}
