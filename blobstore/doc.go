// Package blobstore abstracts where index snapshots are pushed to and
// pulled from.
//
// Implementations must be safe for concurrent use.
//
//   - LocalStore: a directory on the local file system, read through mmap
//   - MemoryStore: an in-process map, mostly for tests
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - s3.CommitStore: S3 plus a DynamoDB commit log for the CURRENT pointer
//   - minio.Store: MinIO and other S3-compatible services
//
// A snapshot set is a number of immutable snapshot blobs plus a small
// CURRENT blob naming the latest one; see Commit and Current.
package blobstore
