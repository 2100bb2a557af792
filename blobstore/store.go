package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNotFound is returned when a blob does not exist. It matches os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// CurrentName is the blob holding the name of the latest snapshot.
const CurrentName = "CURRENT"

// Store reads and writes immutable blobs.
type Store interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Create starts a streaming write; the blob appears when Close returns nil.
	Create(ctx context.Context, name string) (WritableBlob, error)

	// Put writes a whole blob atomically.
	Put(ctx context.Context, name string, data []byte) error

	Delete(ctx context.Context, name string) error

	// List returns the sorted names starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a stored blob.
type Blob interface {
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
	Close() error
	Size() int64
}

// WritableBlob is an in-progress write.
type WritableBlob interface {
	io.WriteCloser
	Sync() error

	// Abort discards the write; nothing becomes visible under the name.
	Abort() error
}

// Mappable is implemented by blobs that expose their bytes without copying.
type Mappable interface {
	// Bytes is valid until the blob is closed.
	Bytes() ([]byte, error)
}

// Commit points CURRENT at name.
func Commit(ctx context.Context, s Store, name string) error {
	return s.Put(ctx, CurrentName, []byte(name))
}

// Current returns the snapshot name CURRENT points at.
func Current(ctx context.Context, s Store) (string, error) {
	b, err := s.Open(ctx, CurrentName)
	if err != nil {
		return "", err
	}
	defer b.Close()

	buf := make([]byte, b.Size())
	if _, err := ReadFull(ctx, b, buf, 0); err != nil {
		return "", err
	}
	name := strings.TrimSpace(string(buf))
	if name == "" {
		return "", fmt.Errorf("blobstore: %s is empty: %w", CurrentName, ErrNotFound)
	}
	return name, nil
}

// ReadFull fills p from b starting at off.
func ReadFull(ctx context.Context, b Blob, p []byte, off int64) (int, error) {
	n := 0
	for n < len(p) {
		m, err := b.ReadAt(ctx, p[n:], off+int64(n))
		n += m
		if err != nil {
			if errors.Is(err, io.EOF) && n == len(p) {
				return n, nil
			}
			if errors.Is(err, io.EOF) {
				return n, io.ErrUnexpectedEOF
			}
			return n, err
		}
		if m == 0 {
			return n, io.ErrUnexpectedEOF
		}
	}
	return n, nil
}
