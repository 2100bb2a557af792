//go:build !unix

package mmap

import (
	"io"
	"os"
	"unsafe"
)

func osMap(f *os.File, size int) ([]byte, func([]byte) error, error) {
	words := make([]uint64, (size+7)/8)
	data := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(words))), size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, nil, err
	}
	return data, nil, nil
}

func osAdvise([]byte, AccessPattern) error { return nil }
