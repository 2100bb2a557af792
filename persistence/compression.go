package persistence

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

// compress returns the stored body and the compression actually applied.
// Input lz4 cannot shrink is stored raw.
func compress(c Compression, raw []byte) ([]byte, Compression, error) {
	switch c {
	case CompressionNone:
		return raw, c, nil
	case CompressionZstd:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, c, err
		}
		defer zstdEncoderPool.Put(enc)
		return enc.EncodeAll(raw, make([]byte, 0, len(raw)/2)), c, nil
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, dst, nil)
		if err != nil {
			return nil, c, err
		}
		if n == 0 {
			return raw, CompressionNone, nil
		}
		return dst[:n], c, nil
	default:
		return nil, c, fmt.Errorf("persistence: unknown compression %d", c)
	}
}

// decompress expands body into an 8-byte aligned buffer of rawLen bytes.
func decompress(c Compression, body []byte, rawLen int) ([]byte, error) {
	dst := alignedBytes(rawLen)
	switch c {
	case CompressionZstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(body, dst[:0])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if len(out) != rawLen {
			return nil, fmt.Errorf("%w: body expands to %d bytes, want %d", ErrCorrupt, len(out), rawLen)
		}
		return out, nil
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(body, dst)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if n != rawLen {
			return nil, fmt.Errorf("%w: body expands to %d bytes, want %d", ErrCorrupt, n, rawLen)
		}
		return dst, nil
	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrCorrupt, c)
	}
}
