// Package hnsw implements the Hierarchical Navigable Small World proximity graph.
//
// Nodes are addressed by dense slots shared with the vector store. Each node
// owns one neighbor list per layer; lists are immutable slices published
// through atomic pointers, so readers never observe a torn list and writers
// replace a list copy-on-write under the node's own lock.
//
// # Features
//
//   - Lock-free traversal; per-node locks for link updates
//   - Keep-diverse neighbor selection with nearest-first fill-up
//   - Tombstones that keep links traversable until isolated
//   - Slot reuse at max(random level, previous level)
//   - Seeded xorshift64* level generator
//
// # Parameters
//
//   - M: max connections per node on upper layers (layer 0 holds 2*M)
//   - EF: candidate list width while inserting
//   - EFSearch: candidate list width while searching
//
// # Reference
//
// Malkov & Yashunin, "Efficient and robust approximate nearest neighbor search
// using Hierarchical Navigable Small World graphs", IEEE TPAMI 2018.
package hnsw
