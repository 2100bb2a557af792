package persistence

import (
	"errors"
	"unsafe"
)

// ErrBigEndian is returned when snapshots are decoded on a big-endian host.
// Vector and link sections are stored in little-endian host order.
var ErrBigEndian = errors.New("persistence: big-endian hosts are not supported")

func isLittleEndian() bool {
	var word uint16 = 1
	return *(*byte)(unsafe.Pointer(&word)) == 1
}

func checkPlatform() error {
	if !isLittleEndian() {
		return ErrBigEndian
	}
	return nil
}
