// Package s3 stores blobs in Amazon S3 or an S3-compatible endpoint.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("docluster/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//	cache := resultcache.NewBlobCache(store)
//
// Small blobs are written with a single PutObject carrying a CRC32C
// checksum; larger ones go through the multipart upload manager.
package s3
