// Package mmap maps snapshot files read-only into memory.
//
// Bytes returned by a Mapping are valid until Close. On platforms without
// mmap support the file is read into memory instead.
package mmap
