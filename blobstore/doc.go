// Package blobstore is the byte store behind the persistent result cache.
//
// A Store holds named, immutable blobs. Writing a name again replaces the
// blob as a whole. Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in process, for tests and short-lived caches
//   - LocalStore: a directory on the local file system, read through mmap
//   - s3.Store: Amazon S3 and S3-compatible endpoints via the AWS SDK
//   - minio.Store: MinIO and other S3-compatible servers via minio-go
//
// # Custom Implementations
//
//	type Store interface {
//	    Open(ctx, name) (Blob, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Open must return an error matching ErrNotFound for missing blobs.
package blobstore
