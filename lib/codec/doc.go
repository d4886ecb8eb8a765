// Package codec turns shards into bytes for the on-disk shard store.
//
// Two independent layers are applied to every shard file:
//
//   - Codec[T]: serializes the items of one shard. NewJSONCodec and NewGOBCodec
//     work for any serializable item type, NewBinaryCodec is a compact length
//     prefixed format for raw []byte items.
//   - Compressor: optional compression of the encoded shard (none, zstd, snappy, lz4).
//
// Performance notes:
//
//   - Binary is the fastest and smallest format but only handles []byte items.
//   - GOB handles arbitrary Go types but carries type information in every shard.
//   - JSON is the most portable and human readable and the default for generic items.
//
// All codecs and compressors are stateless (zstd uses EncodeAll/DecodeAll) and
// safe for concurrent use across goroutines.
package codec
