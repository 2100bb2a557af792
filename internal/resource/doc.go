// Package resource governs the shared resources of an index.
//
//   - Memory: vector and graph storage reserve bytes before growing (non-blocking, fail-fast)
//   - IO: snapshot transfers are throttled by a token bucket
//   - Workers: batch operations fan out over a bounded errgroup pool
//
// # Memory Management
//
//	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1 << 30})
//
//	if err := rc.AcquireMemory(chunkBytes); err != nil {
//	    // ErrMemoryLimitExceeded
//	}
//	defer rc.ReleaseMemory(chunkBytes)
//
// # IO Rate Limiting
//
//	writer := resource.NewRateLimitedWriter(ctx, upload, rc)
//
// # Nil Safety
//
// All Controller methods handle a nil Controller; they become no-ops.
package resource
