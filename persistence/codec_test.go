package persistence

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f32Bytes(v ...float32) []byte {
	return append([]byte(nil), unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), 4*len(v))...)
}

func testSnapshot(c Compression) *Snapshot {
	vectors := map[uint32][]byte{
		0: f32Bytes(1, 2, 3, 4),
		1: f32Bytes(5, 6, 7, 8),
		3: f32Bytes(9, 10, 11, 12),
	}
	links := map[uint32][][]uint32{
		0: {{1, 3}, {3}},
		1: {{0}},
		3: {{0, 1}, {0}},
	}
	removed := roaring.New()
	removed.Add(1)

	return &Snapshot{
		Header: Header{
			Dimensions:   4,
			Stride:       16,
			Connectivity: 16,
			Count:        2,
			MaxLevel:     1,
			Entry:        0,
			Compression:  c,
		},
		Keys:    []uint64{10, 11, 0, 13},
		Levels:  []int32{1, 0, -1, 1},
		Removed: removed,
		Vector: func(slot uint32) ([]byte, bool) {
			v, ok := vectors[slot]
			return v, ok
		},
		Links: func(slot uint32, level int) []uint32 {
			return links[slot][level]
		},
	}
}

func encode(t *testing.T, s *Snapshot) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, s))
	out := alignedBytes(buf.Len())
	copy(out, buf.Bytes())
	return out
}

func TestHeaderSize(t *testing.T) {
	assert.Equal(t, HeaderSize, binary.Size(Header{}))
}

func TestEncodeDecode(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4} {
		t.Run(c.String(), func(t *testing.T) {
			snap := testSnapshot(c)
			data := encode(t, snap)
			if c == CompressionNone {
				assert.Equal(t, snap.RawSize(), int64(len(data)))
			}

			d, err := Decode(data)
			require.NoError(t, err)

			assert.Equal(t, Magic, d.Header.Magic)
			assert.Equal(t, uint64(4), d.Header.Slots)
			assert.Equal(t, uint64(1), d.Header.Removed)
			assert.Equal(t, c, d.Header.Compression)
			assert.Equal(t, []uint64{10, 11, 0, 13}, d.Keys)
			assert.Equal(t, []int32{1, 0, -1, 1}, d.Levels)
			assert.True(t, d.Removed.Contains(1))
			assert.Equal(t, uint64(1), d.Removed.GetCardinality())

			require.Len(t, d.Vectors, 4*16)
			assert.Equal(t, f32Bytes(5, 6, 7, 8), d.Vectors[16:32])
			assert.Equal(t, make([]byte, 16), d.Vectors[32:48])
			assert.Equal(t, f32Bytes(9, 10, 11, 12), d.Vectors[48:64])
			assert.Zero(t, uintptr(unsafe.Pointer(unsafe.SliceData(d.Vectors)))%8)

			assert.Equal(t, []uint32{1, 3}, d.Links(0, 0))
			assert.Equal(t, []uint32{3}, d.Links(0, 1))
			assert.Equal(t, []uint32{0}, d.Links(1, 0))
			assert.Empty(t, d.Links(2, 0))
			assert.Equal(t, []uint32{0}, d.Links(3, 1))
			assert.Nil(t, d.Links(1, 1))
		})
	}
}

func TestDecode_AliasesUncompressedBody(t *testing.T) {
	data := encode(t, testSnapshot(CompressionNone))
	d, err := DecodeMapped(data)
	require.NoError(t, err)

	base := uintptr(unsafe.Pointer(unsafe.SliceData(data)))
	vec := uintptr(unsafe.Pointer(unsafe.SliceData(d.Vectors)))
	assert.GreaterOrEqual(t, vec, base+HeaderSize)
	assert.Less(t, vec, base+uintptr(len(data)))
	assert.Zero(t, (vec-base)%8)
}

func TestDecodeMapped_RejectsCompressed(t *testing.T) {
	data := encode(t, testSnapshot(CompressionZstd))
	_, err := DecodeMapped(data)
	assert.ErrorIs(t, err, ErrCompressed)
}

func TestDecode_Corruption(t *testing.T) {
	data := encode(t, testSnapshot(CompressionNone))

	t.Run("magic", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[0] ^= 0xFF
		_, err := Decode(bad)
		assert.ErrorIs(t, err, ErrInvalidMagic)
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("checksum", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[len(bad)-1] ^= 0xFF
		_, err := Decode(bad)
		var mismatch *ChecksumMismatchError
		assert.ErrorAs(t, err, &mismatch)
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := Decode(data[:len(data)-4])
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("short", func(t *testing.T) {
		_, err := ParseHeader(data[:10])
		assert.ErrorIs(t, err, ErrCorrupt)
	})
}

func TestSaveToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.usearch")

	snap := testSnapshot(CompressionLZ4)
	require.NoError(t, SaveToFile(path, func(w io.Writer) error { return Encode(w, snap) }))

	h, err := ReadHeaderFile(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), h.Dimensions)
	assert.Equal(t, uint64(2), h.Count)
	assert.Equal(t, CompressionLZ4, h.Compression)

	data, err := ReadFile(path)
	require.NoError(t, err)
	d, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []uint64{10, 11, 0, 13}, d.Keys)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestReadHeaderFile_Missing(t *testing.T) {
	_, err := ReadHeaderFile(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseCompression(t *testing.T) {
	for name, want := range map[string]Compression{"": CompressionNone, "none": CompressionNone, "ZSTD": CompressionZstd, "lz4": CompressionLZ4} {
		got, err := ParseCompression(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseCompression("gzip")
	assert.Error(t, err)
}
