// Package usearch provides an embedded approximate nearest neighbor index
// built on a hierarchical navigable small world graph.
//
// Vectors are tagged with integer keys and stored in one of several scalar
// kinds (f64, f32, f16, bf16, i8, b1). Distances come from the built-in
// metrics in package distance or from a compiled Go function.
//
// # Quick Start
//
//	idx, _ := usearch.New(usearch.DefaultConfig(128))
//	_ = idx.Add(42, vec)
//	matches, _ := idx.Search(query, 10)
//	for i, key := range matches.Keys {
//	    fmt.Println(key, matches.Distances[i])
//	}
//
// # Batches
//
// AddBatch and SearchBatch spread work over a bounded pool of goroutines.
// A failing item never aborts the batch; its error is reported in place:
//
//	res, _ := idx.AddBatch(ctx, keys, bufs, usearch.AddOptions{Threads: 8})
//	fmt.Println(res.Added, res.Failed())
//
// # Persistence
//
// Save writes a self-describing snapshot through a temporary file.
// Metadata reads only its header. Load copies a snapshot into a mutable
// Index; OpenView maps it read-only:
//
//	_ = idx.Save("vectors.usearch")
//	meta, ok := usearch.ReadMetadata("vectors.usearch")
//	view, _ := usearch.OpenView("vectors.usearch")
//	defer view.Close()
//
// SaveTo and LoadFrom move snapshots through a blobstore.Store, such as
// S3 or MinIO.
//
// # Join and Cluster
//
// Join matches the keys of two indexes one to one by stable marriage.
// Cluster assigns keys or vectors to centroid nodes of an upper graph level,
// and Subcluster repeats that for the members of one centroid.
//
// # Observability
//
// WithLogger and WithMetricsCollector attach a log/slog based Logger and a
// MetricsCollector such as PrometheusCollector.
package usearch
