package persistence

import (
	"fmt"
	"hash/crc32"
)

// Checksum returns the CRC32 (IEEE) of data. It detects accidental
// corruption only.
func Checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// ChecksumMismatchError is returned when a body does not match its header checksum.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
}

// Unwrap makes checksum failures match ErrCorrupt.
func (e *ChecksumMismatchError) Unwrap() error { return ErrCorrupt }

func verifyChecksum(body []byte, expected uint32) error {
	if actual := Checksum(body); actual != expected {
		return &ChecksumMismatchError{Expected: expected, Actual: actual}
	}
	return nil
}
