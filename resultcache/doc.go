// Package resultcache persists result bundles between runs.
//
// Results are keyed by the corpus fingerprint and the requested k. Two
// implementations satisfy the engine's ResultCache contract:
//
//   - LRU keeps encoded bundles in memory up to a byte capacity, with the
//     reservation accounted against a resource.Controller.
//   - BlobCache stores envelopes in a blobstore.Store (local directory,
//     S3, MinIO), optionally fronted by an LRU and throttled by the
//     controller's IO limit.
//
// Cached bundles are immutable: Get always decodes a fresh copy.
package resultcache
