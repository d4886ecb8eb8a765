package codec

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression names accepted by NewCompressor
const (
	CompressionNone   = "none"
	CompressionZstd   = "zstd"
	CompressionSnappy = "snappy"
	CompressionLZ4    = "lz4"
)

// NewCompressor returns the compressor registered under name.
// An empty name selects no compression.
func NewCompressor(name string) (Compressor, error) {
	switch strings.ToLower(name) {
	case "", CompressionNone:
		return noneCompressor{}, nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd.NewWriter: %w", err)
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd.NewReader: %w", err)
		}
		return &zstdCompressor{enc: enc, dec: dec}, nil
	case CompressionSnappy:
		return snappyCompressor{}, nil
	case CompressionLZ4:
		return lz4Compressor{}, nil
	default:
		return nil, fmt.Errorf("unknown compression %q (expected one of none, zstd, snappy, lz4)", name)
	}
}

// --------------------------------------------------------------------------
// none
// --------------------------------------------------------------------------

type noneCompressor struct{}

func (noneCompressor) Name() string                          { return CompressionNone }
func (noneCompressor) Compress(src []byte) ([]byte, error)   { return src, nil }
func (noneCompressor) Decompress(src []byte) ([]byte, error) { return src, nil }

// --------------------------------------------------------------------------
// zstd (EncodeAll/DecodeAll are safe for concurrent use)
// --------------------------------------------------------------------------

type zstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func (z *zstdCompressor) Name() string { return CompressionZstd }

func (z *zstdCompressor) Compress(src []byte) ([]byte, error) {
	return z.enc.EncodeAll(src, make([]byte, 0, len(src)/2)), nil
}

func (z *zstdCompressor) Decompress(src []byte) ([]byte, error) {
	return z.dec.DecodeAll(src, nil)
}

// --------------------------------------------------------------------------
// snappy
// --------------------------------------------------------------------------

type snappyCompressor struct{}

func (snappyCompressor) Name() string { return CompressionSnappy }

func (snappyCompressor) Compress(src []byte) ([]byte, error) {
	return snappy.Encode(nil, src), nil
}

func (snappyCompressor) Decompress(src []byte) ([]byte, error) {
	return snappy.Decode(nil, src)
}

// --------------------------------------------------------------------------
// lz4 (frame format)
// --------------------------------------------------------------------------

type lz4Compressor struct{}

func (lz4Compressor) Name() string { return CompressionLZ4 }

func (lz4Compressor) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (lz4Compressor) Decompress(src []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(src)))
}
