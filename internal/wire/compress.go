package wire

import (
	"errors"
	"fmt"

	"github.com/pierrec/lz4"
)

// MinCompressibleSize mirrors the teacher's compression.MinCompressibleSize:
// envelopes smaller than this are never worth spending a compression pass
// on (rippled's own threshold, kept as-is since record payloads are in the
// same small-message regime as the XRPL control messages it was tuned for).
const MinCompressibleSize = 70

var (
	ErrCompressionFailed   = errors.New("wire: compression failed")
	ErrDecompressionFailed = errors.New("wire: decompression failed")
)

// compressLZ4 returns the lz4-compressed form of data, or nil if
// compression would not be worthwhile (too small, or it did not shrink).
func compressLZ4(data []byte) ([]byte, error) {
	if len(data) < MinCompressibleSize {
		return nil, nil
	}

	compressed := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompressionFailed, err)
	}
	if n == 0 || n >= len(data) {
		return nil, nil
	}
	return compressed[:n], nil
}

func decompressLZ4(compressed []byte, uncompressedSize int) ([]byte, error) {
	if uncompressedSize <= 0 {
		return nil, ErrDecompressionFailed
	}
	decompressed := make([]byte, uncompressedSize)
	n, err := lz4.UncompressBlock(compressed, decompressed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompressionFailed, err)
	}
	if n != uncompressedSize {
		return nil, ErrDecompressionFailed
	}
	return decompressed, nil
}
