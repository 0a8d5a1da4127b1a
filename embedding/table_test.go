package embedding

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_Slot(t *testing.T) {
	tbl := NewTable(3, 7)

	for i, term := range []string{"alpha", "beta", "gamma"} {
		slot, ok := tbl.Slot(term)
		require.True(t, ok)
		assert.Equal(t, i, slot)
	}

	// Existing terms keep their slot.
	slot, ok := tbl.Slot("beta")
	assert.True(t, ok)
	assert.Equal(t, 1, slot)

	// Terms beyond the dimension are truncated.
	_, ok = tbl.Slot("delta")
	assert.False(t, ok)
	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, tbl.Vocabulary())
}

func TestTable_Freeze(t *testing.T) {
	tbl := NewTable(10, 1)
	tbl.Register("alpha")
	tbl.Freeze()
	assert.True(t, tbl.Frozen())

	_, ok := tbl.Slot("beta")
	assert.False(t, ok)
	assert.Equal(t, 1, tbl.Len())

	// Un-memoized embeddings still match what a writable table derives.
	other := NewTable(10, 1)
	assert.Equal(t, other.Embedding("beta"), tbl.Embedding("beta"))
}

func TestTable_EmbeddingDeterministic(t *testing.T) {
	a := NewTable(16, 42)
	b := NewTable(16, 42)
	c := NewTable(16, 43)

	va := a.Embedding("cluster")
	assert.Equal(t, va, b.Embedding("cluster"))
	assert.NotEqual(t, va, c.Embedding("cluster"))
	assert.NotEqual(t, va, a.Embedding("ledger"))

	var norm float64
	for _, x := range va {
		norm += x * x
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
}

func TestTable_Concurrent(t *testing.T) {
	tbl := NewTable(64, 3)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 32; i++ {
				tbl.Register(fmt.Sprintf("term-%d", i))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 32, tbl.Len())
	seen := map[int]bool{}
	for _, term := range tbl.Vocabulary() {
		slot, ok := tbl.Slot(term)
		require.True(t, ok)
		assert.False(t, seen[slot])
		seen[slot] = true
	}
}

func TestBadgerStore_RoundTrip(t *testing.T) {
	store, err := OpenBadgerStore(BadgerOptions{InMemory: true})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrNoTable)

	tbl := NewTable(8, 99)
	tbl.Register("alpha", "beta", "gamma")
	tbl.Freeze()
	require.NoError(t, store.Save(ctx, tbl))

	got, err := store.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, 8, got.Dimension())
	assert.Equal(t, int64(99), got.Seed())
	assert.True(t, got.Frozen())
	assert.Equal(t, tbl.Vocabulary(), got.Vocabulary())
	assert.Equal(t, tbl.Embedding("gamma"), got.Embedding("gamma"))

	// Saving again replaces the previous table.
	small := NewTable(4, 1)
	small.Register("one")
	require.NoError(t, store.Save(ctx, small))

	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, got.Vocabulary())
	assert.False(t, got.Frozen())
}

func TestBadgerStore_OnDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := OpenBadgerStore(BadgerOptions{Dir: dir})
	require.NoError(t, err)

	tbl := NewTable(4, 5)
	tbl.Register("persist")
	require.NoError(t, store.Save(ctx, tbl))
	require.NoError(t, store.Close())

	store, err = OpenBadgerStore(BadgerOptions{Dir: dir})
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Load(ctx)
	require.NoError(t, err)
	slot, ok := got.Slot("persist")
	assert.True(t, ok)
	assert.Equal(t, 0, slot)
}
