// Package vectorstore holds vector bytes addressed by slot.
//
// # Layout
//
// Vectors are written in the index scalar kind into 8-byte aligned chunks.
// Each slot publishes a pointer to its bytes through an atomic pointer, so a
// reader sees either the previous vector or the new one, never a torn write.
// Bytes are never overwritten in place: writing a slot bump-allocates fresh
// space, and the space of replaced vectors is reclaimed by Compact or Reset.
//
// A slot may also alias caller memory (Alias) or a mapped snapshot region
// (Attach); aliased bytes are never written.
//
// # Memory
//
// Chunk growth reserves bytes from a resource.Controller and fails with
// resource.ErrMemoryLimitExceeded when the limit would be crossed.
package vectorstore
