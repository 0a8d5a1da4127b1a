package testutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnitVectors(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.UnitVectors(8, 32)

	assert.Equal(t, 8, len(v))
	assert.Equal(t, 32, len(v[0]))

	for _, vec := range v {
		var sum float64
		for _, val := range vec {
			sum += val * val
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-9)
	}
}

func TestClusteredVectors(t *testing.T) {
	rng := NewRNG(4711)

	v, labels := rng.ClusteredVectors(100, 32, 5, 0.1)

	assert.Equal(t, 100, len(v))
	assert.Equal(t, 32, len(v[0]))
	assert.Equal(t, 3, labels[3])
	assert.Equal(t, 0, labels[5])
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	v1 := rng.UnitVectors(1, 10)
	rng.Reset()
	v2 := rng.UnitVectors(1, 10)

	assert.Equal(t, v1, v2)
	assert.Equal(t, int64(4711), rng.Seed())
}

func TestCorpus(t *testing.T) {
	rng := NewRNG(1)
	docs, labels := rng.Corpus(9, 5, "clustering", "ledger", "cooking")

	assert.Len(t, docs, 9)
	assert.Equal(t, "ledger", labels[docs[1].ID])
	assert.Len(t, labels, 9)
}

func TestScenarioA(t *testing.T) {
	docs, topics := ScenarioA()
	assert.Len(t, docs, 12)
	assert.Equal(t, "clustering", topics[docs[0].ID])
	assert.Equal(t, "ledger", topics[docs[11].ID])
}

func TestPurityAndCoverage(t *testing.T) {
	labels := map[string]string{"a": "x", "b": "x", "c": "y", "d": "y"}

	assert.Equal(t, 1.0, Purity([][]string{{"a", "b"}, {"c", "d"}}, labels))
	assert.Equal(t, 0.5, Purity([][]string{{"a", "c"}, {"b", "d"}}, labels))
	assert.Equal(t, 1.0, Purity(nil, labels))

	cov := Coverage([][]string{{"a", "b"}, {"b"}})
	assert.Equal(t, 1, cov["a"])
	assert.Equal(t, 2, cov["b"])
}
