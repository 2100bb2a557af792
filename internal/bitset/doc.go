// Package bitset provides a lock-free segmented bitset for tombstones.
//
//   - Segments of 65536 bits are published through an atomic pointer and never move
//   - Words are updated with compare-and-swap so the set-bit count stays exact
//   - Snapshots convert to and from roaring bitmaps for persistence
package bitset
