// Package blobstore abstracts the object storage that index snapshots are
// published to and fetched from.
//
// A BlobStore holds named, immutable blobs. Implementations must be safe for
// concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem, reads through mmap
//   - MemoryStore: in-process, for tests
//   - s3.Store: Amazon S3 with ranged reads and multipart uploads
//   - s3.DDBCommitStore: any store plus a DynamoDB-guarded CURRENT pointer
//   - minio.Store: MinIO and other S3-compatible services
package blobstore
