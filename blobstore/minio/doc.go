// Package minio stores blobs in MinIO or another S3-compatible server
// through the minio-go client.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	store := minioblob.NewStore(client, "docluster", "results/")
//	cache := resultcache.NewBlobCache(store)
package minio
