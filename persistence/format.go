package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// Magic identifies snapshot files ("USRCHGO1").
	Magic uint64 = 0x314f474843525355

	// Version is the current file format version.
	Version uint32 = 1

	// HeaderSize is the encoded size of Header.
	HeaderSize = 96
)

var (
	// ErrCorrupt is returned for files whose header or body is inconsistent.
	ErrCorrupt = errors.New("persistence: corrupt snapshot")

	// ErrInvalidMagic is returned when a file is not a snapshot.
	ErrInvalidMagic = fmt.Errorf("%w: invalid magic number", ErrCorrupt)

	// ErrInvalidVersion is returned for snapshots written by an unknown format version.
	ErrInvalidVersion = fmt.Errorf("%w: unsupported version", ErrCorrupt)

	// ErrCompressed is returned when a compressed body is used in place.
	ErrCompressed = errors.New("persistence: compressed snapshots cannot be mapped")
)

// Compression selects how the body is stored.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("Unknown(%d)", c)
	}
}

// ParseCompression parses a compression name. The empty string means none.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("persistence: unknown compression %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Compression) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Compression) UnmarshalText(text []byte) error {
	v, err := ParseCompression(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Header is the fixed-size prefix of every snapshot.
type Header struct {
	Magic           uint64
	Version         uint32
	Dimensions      uint32
	ScalarKind      uint8
	MetricKind      uint8
	Multi           uint8
	Compression     Compression
	Connectivity    uint32
	ExpansionAdd    uint32
	ExpansionSearch uint32
	Stride          uint32

	// Count is the number of live vectors.
	Count uint64

	// Slots is the number of slot entries stored in the body.
	Slots uint64

	// Removed is the number of tombstoned nodes kept in the body.
	Removed uint64

	MaxLevel int32
	Entry    uint32

	// BodyLength is the stored body size, RawLength its size after decompression.
	BodyLength uint64
	RawLength  uint64
	Checksum   uint32

	Reserved [8]byte
}

// MarshalBinary encodes h into exactly HeaderSize bytes.
func (h Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, HeaderSize)
	out, err := binary.Append(buf, binary.LittleEndian, h)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ParseHeader decodes and validates the header at the start of data.
func ParseHeader(data []byte) (Header, error) {
	var h Header
	if len(data) < HeaderSize {
		return h, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorrupt, len(data))
	}
	if _, err := binary.Decode(data[:HeaderSize], binary.LittleEndian, &h); err != nil {
		return h, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return h, h.validate()
}

// ReadHeader reads and validates a header from r.
func ReadHeader(r io.Reader) (Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Header{}, fmt.Errorf("%w: truncated header", ErrCorrupt)
		}
		return Header{}, err
	}
	return ParseHeader(buf)
}

func (h Header) validate() error {
	switch {
	case h.Magic != Magic:
		return fmt.Errorf("%w: got 0x%016x", ErrInvalidMagic, h.Magic)
	case h.Version != Version:
		return fmt.Errorf("%w: got %d", ErrInvalidVersion, h.Version)
	case h.Dimensions == 0:
		return fmt.Errorf("%w: zero dimensions", ErrCorrupt)
	case h.Stride == 0 || h.Stride%8 != 0:
		return fmt.Errorf("%w: stride %d is not 8-byte aligned", ErrCorrupt, h.Stride)
	case h.Count+h.Removed > h.Slots:
		return fmt.Errorf("%w: %d live and %d removed nodes exceed %d slots", ErrCorrupt, h.Count, h.Removed, h.Slots)
	case h.Slots > 0xFFFFFFFF:
		return fmt.Errorf("%w: %d slots", ErrCorrupt, h.Slots)
	case h.Compression > CompressionLZ4:
		return fmt.Errorf("%w: unknown compression %d", ErrCorrupt, h.Compression)
	case h.Compression == CompressionNone && h.BodyLength != h.RawLength:
		return fmt.Errorf("%w: raw body length mismatch", ErrCorrupt)
	case h.MaxLevel < -1:
		return fmt.Errorf("%w: max level %d", ErrCorrupt, h.MaxLevel)
	}
	return nil
}
