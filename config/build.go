package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hupe1980/docluster"
	"github.com/hupe1980/docluster/blobstore"
	miniostore "github.com/hupe1980/docluster/blobstore/minio"
	s3store "github.com/hupe1980/docluster/blobstore/s3"
	"github.com/hupe1980/docluster/codec"
	"github.com/hupe1980/docluster/embedding"
	"github.com/hupe1980/docluster/resource"
	"github.com/hupe1980/docluster/resultcache"
)

// Runtime holds the collaborators built from a Config.
type Runtime struct {
	// Options configure docluster.New.
	Options    []docluster.Option
	Controller *resource.Controller
	Table      *embedding.Table
	// Cache is nil for the none backend.
	Cache docluster.ResultCache
	// Blobs is the result cache's blob store, nil unless the backend is
	// blob based.
	Blobs blobstore.Store

	tables *embedding.BadgerStore
}

// Build validates c and creates the controller, embedding table and result
// cache it describes.
func (c *Config) Build(ctx context.Context) (*Runtime, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	rt := &Runtime{
		Controller: resource.NewController(resource.Config{
			MaxWorkers:         c.Resources.MaxWorkers,
			MemoryLimitBytes:   c.Resources.MemoryLimitBytes,
			IOLimitBytesPerSec: c.Resources.IOLimitBytesPerSec,
		}),
	}

	if err := rt.openTable(ctx, c); err != nil {
		return nil, err
	}
	if err := rt.openCache(ctx, c); err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}

	rt.Options = []docluster.Option{
		docluster.WithEmbeddingTable(rt.Table),
		docluster.WithSeed(c.Seed),
		docluster.WithHybridVectors(c.HybridVectors),
		docluster.WithResourceController(rt.Controller),
		docluster.WithBatchSize(c.Batch.Size),
		docluster.WithBatchMergeThreshold(c.Batch.MergeThreshold),
		docluster.WithLogger(c.Log.logger()),
	}
	if c.FusionMethod != "" {
		rt.Options = append(rt.Options, docluster.WithDefaultFusionMethod(c.FusionMethod))
	}
	if rt.Cache != nil {
		rt.Options = append(rt.Options, docluster.WithResultCache(rt.Cache))
	}
	return rt, nil
}

func (rt *Runtime) openTable(ctx context.Context, c *Config) error {
	if c.Embedding.Dir == "" {
		rt.Table = embedding.NewTable(c.Dimension, c.Seed)
		return nil
	}

	store, err := embedding.OpenBadgerStore(embedding.BadgerOptions{Dir: c.Embedding.Dir, SyncWrites: true})
	if err != nil {
		return err
	}
	t, err := store.Load(ctx)
	switch {
	case errors.Is(err, embedding.ErrNoTable):
		t = embedding.NewTable(c.Dimension, c.Seed)
	case err != nil:
		_ = store.Close()
		return err
	case t.Dimension() != c.Dimension:
		_ = store.Close()
		return invalid("dimension", c.Dimension, fmt.Sprintf("stored embedding table has dimension %d", t.Dimension()))
	}
	rt.Table = t
	rt.tables = store
	return nil
}

func (rt *Runtime) openCache(ctx context.Context, c *Config) error {
	cc := c.Cache
	var err error
	switch cc.Backend {
	case "", BackendNone:
		return nil
	case BackendMemory:
		rt.Cache = resultcache.NewLRU(cc.MemoryBytes, rt.Controller)
		return nil
	case BackendLocal:
		rt.Blobs = blobstore.NewLocalStore(cc.Dir)
	case BackendS3:
		opts := []s3store.Option{s3store.WithPrefix(cc.Prefix)}
		if cc.Region != "" {
			opts = append(opts, s3store.WithRegion(cc.Region))
		}
		if cc.Endpoint != "" {
			opts = append(opts, s3store.WithEndpoint(cc.Endpoint))
		}
		rt.Blobs, err = s3store.New(ctx, cc.Bucket, opts...)
	case BackendMinIO:
		rt.Blobs, err = miniostore.Dial(ctx, cc.Endpoint, cc.AccessKey, cc.SecretKey, cc.Bucket, cc.Prefix, !cc.Insecure)
	}
	if err != nil {
		return fmt.Errorf("config: open %s cache: %w", cc.Backend, err)
	}

	cdc, _ := codec.ByName(cc.Codec)
	comp, _ := codec.ParseCompression(cc.Compression)
	rt.Cache = resultcache.NewBlobCache(rt.Blobs,
		resultcache.WithCodec(cdc),
		resultcache.WithCompression(comp),
		resultcache.WithResourceController(rt.Controller),
		resultcache.WithMemoryTier(cc.MemoryBytes),
	)
	return nil
}

func (l LogConfig) logger() *docluster.Logger {
	if l.Level == "" {
		return docluster.NoopLogger()
	}
	lvl, err := l.level()
	if err != nil {
		lvl = slog.LevelInfo
	}
	if l.Format == "json" {
		return docluster.NewJSONLogger(lvl)
	}
	return docluster.NewTextLogger(lvl)
}

// Close persists the embedding table if it is backed by a database and
// releases the database.
func (rt *Runtime) Close(ctx context.Context) error {
	if rt.tables == nil {
		return nil
	}
	store := rt.tables
	rt.tables = nil
	return errors.Join(store.Save(ctx, rt.Table), store.Close())
}
