package persistence

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"unsafe"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/dluc/usearch/internal/conv"
)

// Snapshot is the in-memory source of an encoded file.
type Snapshot struct {
	// Header carries the index configuration. Length, checksum and the
	// magic/version fields are filled in by Encode.
	Header Header

	// Keys holds the key of every slot.
	Keys []uint64

	// Levels holds the level of every slot, -1 for empty slots.
	Levels []int32

	// Removed lists tombstoned slots.
	Removed *roaring.Bitmap

	// Vector returns the stored bytes of slot.
	Vector func(slot uint32) ([]byte, bool)

	// Links returns the neighbors of slot on level.
	Links func(slot uint32, level int) []uint32
}

// RawSize returns the encoded size of s without compression.
func (s *Snapshot) RawSize() int64 {
	slots := int64(len(s.Levels))
	size := int64(HeaderSize) + 8*slots + pad8(4*slots)
	size += 8 + pad8(int64(s.removed().GetSerializedSizeInBytes()))
	size += slots * int64(s.Header.Stride)
	for slot, level := range s.Levels {
		for l := int32(0); l <= level; l++ {
			size += 4 + 4*int64(len(s.Links(uint32(slot), int(l))))
		}
	}
	return size
}

func (s *Snapshot) removed() *roaring.Bitmap {
	if s.Removed == nil {
		return roaring.New()
	}
	return s.Removed
}

// Encode writes s to w.
func Encode(w io.Writer, s *Snapshot) error {
	if len(s.Keys) != len(s.Levels) {
		return fmt.Errorf("persistence: %d keys for %d levels", len(s.Keys), len(s.Levels))
	}
	stride := int(s.Header.Stride)
	if stride == 0 || stride%8 != 0 {
		return fmt.Errorf("persistence: stride %d is not 8-byte aligned", stride)
	}

	var body bytes.Buffer
	body.Grow(int(s.RawSize()) - HeaderSize)

	le := binary.LittleEndian
	var scratch [8]byte
	for _, k := range s.Keys {
		le.PutUint64(scratch[:], k)
		body.Write(scratch[:8])
	}
	for _, l := range s.Levels {
		le.PutUint32(scratch[:], uint32(l))
		body.Write(scratch[:4])
	}
	writePad(&body)

	removed := s.removed()
	le.PutUint64(scratch[:], removed.GetSerializedSizeInBytes())
	body.Write(scratch[:8])
	if _, err := removed.WriteTo(&body); err != nil {
		return err
	}
	writePad(&body)

	zero := make([]byte, stride)
	for slot, level := range s.Levels {
		v, ok := []byte(nil), false
		if level >= 0 {
			v, ok = s.Vector(uint32(slot))
		}
		if !ok {
			body.Write(zero)
			continue
		}
		if len(v) > stride {
			return fmt.Errorf("persistence: slot %d holds %d bytes, stride is %d", slot, len(v), stride)
		}
		body.Write(v)
		body.Write(zero[:stride-len(v)])
	}

	for slot, level := range s.Levels {
		for l := int32(0); l <= level; l++ {
			links := s.Links(uint32(slot), int(l))
			le.PutUint32(scratch[:], uint32(len(links)))
			body.Write(scratch[:4])
			if len(links) > 0 {
				body.Write(unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(links))), 4*len(links)))
			}
		}
	}

	raw := body.Bytes()
	h := s.Header
	stored, applied, err := compress(h.Compression, raw)
	if err != nil {
		return err
	}
	h.Compression = applied
	h.Magic = Magic
	h.Version = Version
	h.Slots = uint64(len(s.Levels))
	h.Removed = removed.GetCardinality()
	h.RawLength = uint64(len(raw))
	h.BodyLength = uint64(len(stored))
	h.Checksum = Checksum(stored)

	hdr, err := h.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := w.Write(hdr); err != nil {
		return err
	}
	_, err = w.Write(stored)
	return err
}

// Decoded is a parsed snapshot. Vectors aliases the decoded body.
type Decoded struct {
	Header  Header
	Keys    []uint64
	Levels  []int32
	Removed *roaring.Bitmap

	// Vectors holds Slots strides of vector bytes.
	Vectors []byte

	links  []uint32
	starts []uint32
}

// Links returns the neighbors of slot on level.
func (d *Decoded) Links(slot uint32, level int) []uint32 {
	if int(slot) >= len(d.Levels) || level > int(d.Levels[slot]) {
		return nil
	}
	pos := d.starts[slot]
	for l := 0; l < level; l++ {
		pos += 1 + d.links[pos]
	}
	n := d.links[pos]
	return d.links[pos+1 : pos+1+n]
}

// Decode parses a whole file held in data. When the body is uncompressed,
// Vectors aliases data, which must then be 8-byte aligned; compressed
// bodies are expanded into fresh memory.
func Decode(data []byte) (*Decoded, error) {
	if err := checkPlatform(); err != nil {
		return nil, err
	}
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if uint64(len(data)-HeaderSize) < h.BodyLength {
		return nil, fmt.Errorf("%w: body truncated to %d of %d bytes", ErrCorrupt, len(data)-HeaderSize, h.BodyLength)
	}
	stored := data[HeaderSize : HeaderSize+int(h.BodyLength)]
	if err := verifyChecksum(stored, h.Checksum); err != nil {
		return nil, err
	}

	body := stored
	if h.Compression != CompressionNone {
		rawLen, err := conv.Uint64ToInt(h.RawLength)
		if err != nil {
			return nil, fmt.Errorf("%w: raw length: %v", ErrCorrupt, err)
		}
		if body, err = decompress(h.Compression, stored, rawLen); err != nil {
			return nil, err
		}
	}
	return decodeBody(h, body)
}

// DecodeMapped is Decode for memory that must not be copied.
func DecodeMapped(data []byte) (*Decoded, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if h.Compression != CompressionNone {
		return nil, ErrCompressed
	}
	if uintptr(unsafe.Pointer(unsafe.SliceData(data)))%8 != 0 {
		return nil, fmt.Errorf("persistence: mapped region is not 8-byte aligned")
	}
	return Decode(data)
}

func decodeBody(h Header, body []byte) (*Decoded, error) {
	le := binary.LittleEndian
	slots, err := conv.Uint64ToInt(h.Slots)
	if err != nil {
		return nil, fmt.Errorf("%w: slot count: %v", ErrCorrupt, err)
	}
	keyBytes, err := conv.MulInt(8, slots)
	if err != nil {
		return nil, fmt.Errorf("%w: slot count: %v", ErrCorrupt, err)
	}
	vectorBytes, err := conv.MulInt(slots, int(h.Stride))
	if err != nil {
		return nil, fmt.Errorf("%w: vector section: %v", ErrCorrupt, err)
	}
	r := &cursor{data: body}

	keysRaw, err := r.next(keyBytes)
	if err != nil {
		return nil, err
	}
	levelsRaw, err := r.next(int(pad8(int64(4 * slots))))
	if err != nil {
		return nil, err
	}
	d := &Decoded{
		Header: h,
		Keys:   make([]uint64, slots),
		Levels: make([]int32, slots),
	}
	for i := range d.Keys {
		d.Keys[i] = le.Uint64(keysRaw[8*i:])
		d.Levels[i] = int32(le.Uint32(levelsRaw[4*i:]))
		if d.Levels[i] < -1 || d.Levels[i] > h.MaxLevel {
			return nil, fmt.Errorf("%w: slot %d has level %d above max %d", ErrCorrupt, i, d.Levels[i], h.MaxLevel)
		}
	}

	lenRaw, err := r.next(8)
	if err != nil {
		return nil, err
	}
	rbLen := le.Uint64(lenRaw)
	if rbLen > uint64(len(body)) {
		return nil, fmt.Errorf("%w: removal set of %d bytes", ErrCorrupt, rbLen)
	}
	rbRaw, err := r.next(int(pad8(int64(rbLen))))
	if err != nil {
		return nil, err
	}
	d.Removed = roaring.New()
	if err := d.Removed.UnmarshalBinary(rbRaw[:rbLen]); err != nil {
		return nil, fmt.Errorf("%w: removal set: %v", ErrCorrupt, err)
	}
	if d.Removed.GetCardinality() != h.Removed {
		return nil, fmt.Errorf("%w: removal set holds %d slots, header says %d", ErrCorrupt, d.Removed.GetCardinality(), h.Removed)
	}

	if d.Vectors, err = r.next(vectorBytes); err != nil {
		return nil, err
	}

	rest := r.data[r.off:]
	if len(rest)%4 != 0 {
		return nil, fmt.Errorf("%w: link section of %d bytes", ErrCorrupt, len(rest))
	}
	d.links = make([]uint32, len(rest)/4)
	for i := range d.links {
		d.links[i] = le.Uint32(rest[4*i:])
	}
	d.starts = make([]uint32, slots)
	pos := uint64(0)
	for slot, level := range d.Levels {
		d.starts[slot] = uint32(pos)
		for l := int32(0); l <= level; l++ {
			if pos >= uint64(len(d.links)) {
				return nil, fmt.Errorf("%w: links of slot %d truncated", ErrCorrupt, slot)
			}
			pos += 1 + uint64(d.links[pos])
			if pos > uint64(len(d.links)) {
				return nil, fmt.Errorf("%w: links of slot %d truncated", ErrCorrupt, slot)
			}
		}
	}
	if pos != uint64(len(d.links)) {
		return nil, fmt.Errorf("%w: %d trailing link words", ErrCorrupt, uint64(len(d.links))-pos)
	}
	return d, nil
}

type cursor struct {
	data []byte
	off  int
}

func (c *cursor) next(n int) ([]byte, error) {
	if n < 0 || c.off+n > len(c.data) {
		return nil, fmt.Errorf("%w: body truncated at offset %d", ErrCorrupt, c.off)
	}
	out := c.data[c.off : c.off+n]
	c.off += n
	return out, nil
}

func pad8(n int64) int64 {
	return (n + 7) &^ 7
}

func writePad(b *bytes.Buffer) {
	if rem := b.Len() % 8; rem != 0 {
		b.Write(make([]byte, 8-rem))
	}
}

// alignedBytes returns n zeroed bytes backed by uint64 words.
func alignedBytes(n int) []byte {
	if n == 0 {
		return []byte{}
	}
	words := make([]uint64, (n+7)/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(words))), n)
}
