// Package persistence reads and writes index snapshot files.
//
// A file starts with a fixed 96-byte little-endian Header that fully
// describes the index, so metadata can be read without touching the body.
// The body holds, in order:
//
//   - one uint64 key per slot
//   - one int32 level per slot (-1 for an empty slot), padded to 8 bytes
//   - the removal set as a length-prefixed roaring bitmap, padded to 8 bytes
//   - one vector per slot at the header's stride
//   - for every non-empty slot and each of its levels, a uint32 count
//     followed by that many uint32 neighbor slots
//
// The vector section is 8-byte aligned relative to the start of the file so
// an uncompressed file can be memory-mapped and used in place. The body may
// be compressed with zstd or lz4; compressed files can only be loaded.
package persistence
