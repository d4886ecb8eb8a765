package shardstore

import (
	"os"

	"github.com/ValentinKolb/loadit/lib/codec"
)

const (
	defaultFileMode = os.FileMode(0o644)
	defaultDirMode  = os.FileMode(0o755)
)

// Options configures a store during Open
type Options[T any] struct {
	MaxShardLength int            // Items per shard; ignored (with a warning) if the store exists with another value
	Codec          codec.Codec[T] // Item codec (nil = JSON); must match the codec of an existing store
	Compression    string         // none, zstd, snappy or lz4 (empty = none); an existing store keeps its own
	MemoryLimit    int64          // Byte bound of the internal decoded shard cache (0 = disabled)
	Mode           os.FileMode    // Permission bits of created files (0 = 0644)
}

// DefaultOptions returns options with the JSON codec and no compression
func DefaultOptions[T any](maxShardLength int) Options[T] {
	return Options[T]{
		MaxShardLength: maxShardLength,
		Codec:          codec.NewJSONCodec[T](),
		Compression:    codec.CompressionNone,
		Mode:           defaultFileMode,
	}
}

// dirMode derives the directory permissions from the file mode (adds x where r is set)
func dirMode(mode os.FileMode) os.FileMode {
	if mode == 0 {
		return defaultDirMode
	}
	return mode | (mode&0o444)>>2
}
