package resultcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/hupe1980/docluster/blobstore"
	"github.com/hupe1980/docluster/codec"
	"github.com/hupe1980/docluster/model"
	"github.com/hupe1980/docluster/resource"
)

// BlobCache stores result envelopes in a blobstore.Store.
type BlobCache struct {
	store  blobstore.Store
	env    codec.Envelope
	rc     *resource.Controller
	memory *LRU

	hits   atomic.Int64
	misses atomic.Int64
}

type options struct {
	codec       codec.Codec
	compression codec.Compression
	rc          *resource.Controller
	memoryBytes int64
}

// Option configures a BlobCache.
type Option func(*options)

// WithCodec sets the codec new envelopes are written with. Existing
// envelopes decode regardless.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithCompression sets the compression of new envelopes.
func WithCompression(c codec.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithResourceController throttles store reads and writes by the
// controller's IO limit and accounts the memory tier against its budget.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithMemoryTier fronts the store with an LRU of the given byte capacity.
func WithMemoryTier(capacity int64) Option {
	return func(o *options) {
		o.memoryBytes = capacity
	}
}

// NewBlobCache creates a BlobCache over store.
func NewBlobCache(store blobstore.Store, optFns ...Option) *BlobCache {
	opts := options{
		codec:       codec.Default,
		compression: codec.CompressionZstd,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	c := &BlobCache{
		store: store,
		env:   codec.Envelope{Codec: opts.codec, Compression: opts.compression},
		rc:    opts.rc,
	}
	if opts.memoryBytes > 0 {
		c.memory = NewLRU(opts.memoryBytes, opts.rc)
	}
	return c
}

// Get implements docluster.ResultCache. A missing blob is a miss; a blob
// that fails to decode is an error.
func (c *BlobCache) Get(ctx context.Context, key model.CacheKey) (*model.Result, bool, error) {
	data, ok := c.memoryGet(key)
	if !ok {
		var err error
		data, err = blobstore.ReadAll(ctx, c.store, Name(key), c.throttle(ctx))
		if err != nil {
			if errors.Is(err, blobstore.ErrNotFound) {
				c.misses.Add(1)
				return nil, false, nil
			}
			return nil, false, fmt.Errorf("resultcache: read %s: %w", Name(key), err)
		}
	}

	var res model.Result
	if err := c.env.Unmarshal(data, &res); err != nil {
		return nil, false, fmt.Errorf("resultcache: decode %s: %w", Name(key), err)
	}
	if !ok && c.memory != nil {
		c.memory.setRaw(key, data)
	}
	c.hits.Add(1)
	return &res, true, nil
}

// Put implements docluster.ResultCache.
func (c *BlobCache) Put(ctx context.Context, key model.CacheKey, res *model.Result) error {
	data, err := c.env.Marshal(res)
	if err != nil {
		return err
	}
	if err := c.rc.AcquireIO(ctx, len(data)); err != nil {
		return err
	}
	if err := c.store.Put(ctx, Name(key), data); err != nil {
		return fmt.Errorf("resultcache: write %s: %w", Name(key), err)
	}
	if c.memory != nil {
		c.memory.setRaw(key, data)
	}
	return nil
}

// Invalidate removes one cached result.
func (c *BlobCache) Invalidate(ctx context.Context, key model.CacheKey) error {
	if c.memory != nil {
		c.memory.Invalidate(key)
	}
	return c.store.Delete(ctx, Name(key))
}

// Keys lists the cached result keys. Blobs that are not results are
// skipped.
func (c *BlobCache) Keys(ctx context.Context) ([]model.CacheKey, error) {
	names, err := c.store.List(ctx, namePrefix)
	if err != nil {
		return nil, err
	}
	keys := make([]model.CacheKey, 0, len(names))
	for _, name := range names {
		if key, err := ParseName(name); err == nil {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Purge removes every cached result and returns how many were removed.
func (c *BlobCache) Purge(ctx context.Context) (int, error) {
	keys, err := c.Keys(ctx)
	if err != nil {
		return 0, err
	}
	for i, key := range keys {
		if err := c.Invalidate(ctx, key); err != nil {
			return i, err
		}
	}
	return len(keys), nil
}

// Stats returns the hit and miss counts of Get.
func (c *BlobCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *BlobCache) memoryGet(key model.CacheKey) ([]byte, bool) {
	if c.memory == nil {
		return nil, false
	}
	return c.memory.getRaw(key)
}

func (c *BlobCache) throttle(ctx context.Context) func(io.Reader) io.Reader {
	if c.rc == nil {
		return nil
	}
	return func(r io.Reader) io.Reader {
		return resource.NewRateLimitedReader(ctx, r, c.rc)
	}
}
