package minio

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docluster/blobstore"
)

// TestStore_Integration needs a MinIO server. Set DOCLUSTER_MINIO_ENDPOINT
// (for example localhost:9000) to run it.
func TestStore_Integration(t *testing.T) {
	endpoint := os.Getenv("DOCLUSTER_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("DOCLUSTER_MINIO_ENDPOINT not set")
	}
	ctx := context.Background()

	store, err := Dial(ctx, endpoint, "minioadmin", "minioadmin", "docluster-test", "it/", false)
	require.NoError(t, err)

	data := []byte("hello minio world")
	require.NoError(t, store.Put(ctx, "results/a.dcr", data))
	t.Cleanup(func() { _ = store.Delete(ctx, "results/a.dcr") })

	got, err := blobstore.ReadAll(ctx, store, "results/a.dcr", nil)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	names, err := store.List(ctx, "results/")
	require.NoError(t, err)
	assert.Contains(t, names, "results/a.dcr")

	require.NoError(t, store.Delete(ctx, "results/a.dcr"))
	_, err = store.Open(ctx, "results/a.dcr")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestStore_Key(t *testing.T) {
	s := NewStore(nil, "bucket", "root/")
	assert.Equal(t, "root/results/a", s.key("results/a"))
	assert.Equal(t, "x", NewStore(nil, "bucket", "").key("x"))
}
