package codec

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the algorithm applied to encoded payloads.
type Compression uint8

const (
	// CompressionNone stores payloads as encoded.
	CompressionNone Compression = 0
	// CompressionLZ4 is LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZstd is zstd (better ratio).
	CompressionZstd Compression = 2
)

// ErrUnknownCompression is returned for compression IDs or names this
// build does not know.
var ErrUnknownCompression = errors.New("codec: unknown compression")

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

// ParseCompression resolves a compression name. The empty string is
// CompressionNone.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCompression, name)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// compress returns the compressed form of data and the compression that
// was actually applied. Incompressible data is stored as is.
func compress(data []byte, c Compression) ([]byte, Compression, error) {
	if len(data) == 0 {
		return data, CompressionNone, nil
	}
	switch c {
	case CompressionNone:
		return data, CompressionNone, nil
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, 0, err
		}
		if n == 0 || n >= len(data) {
			return data, CompressionNone, nil
		}
		return buf[:n], CompressionLZ4, nil
	case CompressionZstd:
		enc := getZstdEncoder()
		defer zstdEncoderPool.Put(enc)
		out := enc.EncodeAll(data, nil)
		if len(out) >= len(data) {
			return data, CompressionNone, nil
		}
		return out, CompressionZstd, nil
	default:
		return nil, 0, fmt.Errorf("%w: %d", ErrUnknownCompression, uint8(c))
	}
}

// decompress reverses compress. size is the uncompressed length.
func decompress(data []byte, c Compression, size int) ([]byte, error) {
	switch c {
	case CompressionNone:
		if len(data) != size {
			return nil, fmt.Errorf("%w: size mismatch", ErrCorrupt)
		}
		return data, nil
	case CompressionLZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, err
		}
		if n != size {
			return nil, fmt.Errorf("%w: lz4 size mismatch", ErrCorrupt)
		}
		return out, nil
	case CompressionZstd:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(data, make([]byte, 0, size))
		if err != nil {
			return nil, err
		}
		if len(out) != size {
			return nil, fmt.Errorf("%w: zstd size mismatch", ErrCorrupt)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, uint8(c))
	}
}
