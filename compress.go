package gc60

import (
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how the block payload is stored.
type Compression uint8

const (
	// CompressionNone stores the raw 16-bit words.
	CompressionNone Compression = 0
	// CompressionLZ4 stores the payload as one LZ4 block (fast).
	CompressionLZ4 Compression = 1
	// CompressionZstd stores the payload as a zstd frame (better ratio).
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedCompression, s)
	}
}

// zstdWindowSize bounds the history a frame may ask the decoder to keep.
// Encoded frames never use a larger window.
const zstdWindowSize = 8 << 20

// ZSTD encoder/decoder pools for efficiency
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithWindowSize(zstdWindowSize),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return enc, nil
}

// getZstdDecoder returns a decoder whose DecodeAll never grows dst past its
// capacity, so output size is bounded by the caller's buffer.
func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	dec, err := zstd.NewReader(nil,
		zstd.WithDecodeAllCapLimit(true),
		zstd.WithDecoderMaxWindow(zstdWindowSize),
		zstd.WithDecoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return dec, nil
}

// compressPayload compresses raw. It falls back to CompressionNone when the
// algorithm cannot shrink the data and reports the compression actually used.
func compressPayload(raw []byte, c Compression) ([]byte, Compression, error) {
	switch c {
	case CompressionNone:
		return raw, CompressionNone, nil

	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, dst, nil)
		if err != nil {
			return nil, 0, err
		}
		if n == 0 || n >= len(raw) {
			return raw, CompressionNone, nil
		}
		return dst[:n], CompressionLZ4, nil

	case CompressionZstd:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, 0, err
		}
		defer zstdEncoderPool.Put(enc)
		out := enc.EncodeAll(raw, nil)
		if len(out) >= len(raw) {
			return raw, CompressionNone, nil
		}
		return out, CompressionZstd, nil

	default:
		return nil, 0, fmt.Errorf("%w: %d", ErrUnsupportedCompression, uint8(c))
	}
}

// decompressInto restores a payload into dst, which must come out exactly
// full. Nothing beyond dst is allocated for the output, however large the
// stored frame claims to be.
func decompressInto(dst, data []byte, c Compression) error {
	switch c {
	case CompressionNone:
		if len(data) != len(dst) {
			return fmt.Errorf("%w: payload length %d, expected %d", ErrInvalidData, len(data), len(dst))
		}
		copy(dst, data)
		return nil

	case CompressionLZ4:
		n, err := lz4.UncompressBlock(data, dst)
		if err != nil {
			return fmt.Errorf("%w: lz4: %v", ErrInvalidData, err)
		}
		if n != len(dst) {
			return fmt.Errorf("%w: decompressed %d bytes, expected %d", ErrInvalidData, n, len(dst))
		}
		return nil

	case CompressionZstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return err
		}
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(data, dst[:0])
		if err != nil {
			return fmt.Errorf("%w: zstd: %v", ErrInvalidData, err)
		}
		if len(out) != len(dst) {
			return fmt.Errorf("%w: decompressed %d bytes, expected %d", ErrInvalidData, len(out), len(dst))
		}
		if len(out) > 0 && &out[0] != &dst[0] {
			copy(dst, out)
		}
		return nil

	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedCompression, uint8(c))
	}
}
