// Package minio stores index snapshots in MinIO or any S3-compatible server
// through the minio-go client.
//
//	store, err := minio.Dial(ctx, "localhost:9000", "snapshots", minio.WithCredentials("minioadmin", "minioadmin"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = idx.SaveTo(ctx, store, "index-0001.usearch")
package minio
