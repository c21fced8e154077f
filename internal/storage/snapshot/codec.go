package snapshot

import (
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Compression names.
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
)

// ParseCompression normalises a compression name. Empty means none.
func ParseCompression(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionZstd:
		return CompressionZstd, nil
	default:
		return "", fmt.Errorf("snapshot: unknown compression %q", name)
	}
}

// Shared coders; EncodeAll and DecodeAll are safe for concurrent use.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

func compress(kind string, data []byte) ([]byte, error) {
	switch kind {
	case "", CompressionNone:
		return data, nil
	case CompressionZstd:
		return zstdEncoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
	default:
		return nil, fmt.Errorf("snapshot: unknown compression %q", kind)
	}
}

func decompress(kind string, data []byte) ([]byte, error) {
	switch kind {
	case "", CompressionNone:
		return data, nil
	case CompressionZstd:
		out, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("snapshot: zstd: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("snapshot: unknown compression %q", kind)
	}
}
