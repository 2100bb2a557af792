// Package s3 stores index snapshots in Amazon S3.
//
//	store, err := s3.New(ctx, "my-bucket", s3.WithPrefix("indexes/"), s3.WithRegion("us-east-1"))
//	err = idx.SaveTo(ctx, store, "books.usearch")
//
// Reads use ranged GETs; writes stream through the multipart uploader.
// CommitStore adds a DynamoDB commit log so concurrent publishers cannot
// overwrite each other's CURRENT pointer.
package s3
