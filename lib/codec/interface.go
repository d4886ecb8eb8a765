package codec

// Codec encodes a whole shard (a slice of items) into bytes and back.
// Implementations must be stateless and safe for concurrent use.
type Codec[T any] interface {
	// Name identifies the codec; it is persisted in the store metadata
	Name() string
	// Encode serializes all items of a shard
	Encode(items []T) ([]byte, error)
	// Decode deserializes bytes produced by Encode
	Decode(b []byte) ([]T, error)
}

// Compressor compresses encoded shards before they are written to disk.
type Compressor interface {
	// Name identifies the compression; it is persisted in every shard file
	Name() string
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
}
