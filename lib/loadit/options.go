package loadit

import (
	"fmt"
	"os"
	"strconv"

	"github.com/ValentinKolb/loadit/lib/cache"
	"github.com/ValentinKolb/loadit/lib/codec"
	"github.com/ValentinKolb/loadit/lib/common"
	"github.com/ValentinKolb/loadit/lib/shardstore"
	"github.com/ValentinKolb/loadit/lib/source"
)

// PreloadFunc proposes indices that are likely to be read after idx.
// Every index is mapped to its shard start, which is then prefetched.
type PreloadFunc[T any] func(seq *LazySequence[T], idx int) [][]int

// Options configures a LazySequence
type Options[T any] struct {
	RootDir string            // Directory of the shard store
	Source  source.Factory[T] // Creates fresh source iterators; may be nil for a complete existing store

	MaxShardLength int    // Items per shard
	MaxShardSize   string // Alternative to MaxShardLength: byte budget per shard such as "64mb", converted by sampling the source

	MaxCacheSize int    // Shards kept in memory (0 = cache.DefaultCapacity)
	MaxWorkers   int    // Writers and prefetch concurrency (0 = 1, no prefetching)
	MemoryLimit  int64  // Byte bound of the stores internal cache (0 = disabled)
	Compression  string // none, zstd, snappy or lz4
	Codec        codec.Codec[T]

	Preload            PreloadFunc[T] // nil = DefaultPreload
	IteratorThreadSafe bool           // Must be true if MaxWorkers > 1
	Length             int            // Known dataset length (0 = discover lazily)
	Mode               os.FileMode    // Permission bits of created files (0 = 0644)
	EstimateSamples    int            // Items sampled for MaxShardSize (0 = 16)
}

// DefaultOptions returns the options for a single worker sequence stored at rootDir
func DefaultOptions[T any](rootDir string, src source.Factory[T]) Options[T] {
	return Options[T]{
		RootDir:         rootDir,
		Source:          src,
		MaxCacheSize:    cache.DefaultCapacity,
		MaxWorkers:      1,
		Codec:           codec.NewJSONCodec[T](),
		Compression:     codec.CompressionNone,
		Mode:            0o644,
		EstimateSamples: shardstore.DefaultEstimateSamples,
	}
}

// validate fills in defaults and rejects invalid combinations
func (o *Options[T]) validate() error {
	if o.RootDir == "" {
		return common.NewError(common.ErrCConfiguration, "root directory is required")
	}
	if o.MaxWorkers < 1 {
		o.MaxWorkers = 1
	}
	if o.MaxWorkers > 1 && !o.IteratorThreadSafe {
		return common.NewError(common.ErrCConfiguration,
			"max workers %d requires IteratorThreadSafe, the source factory is called from several goroutines", o.MaxWorkers)
	}
	if o.MaxShardLength < 0 {
		return common.NewError(common.ErrCConfiguration, "max shard length must not be negative, got %d", o.MaxShardLength)
	}
	if o.MaxShardLength > 0 && o.MaxShardSize != "" {
		return common.NewError(common.ErrCConfiguration, "max shard length and max shard size are mutually exclusive")
	}
	if o.Length < 0 {
		return common.NewError(common.ErrCConfiguration, "length must not be negative, got %d", o.Length)
	}
	if o.MaxCacheSize < 1 {
		o.MaxCacheSize = cache.DefaultCapacity
	}
	if o.Codec == nil {
		o.Codec = codec.NewJSONCodec[T]()
	}
	if o.EstimateSamples < 1 {
		o.EstimateSamples = shardstore.DefaultEstimateSamples
	}
	return nil
}

func (o Options[T]) String() string {
	var s common.Sections

	s.Section("Store")
	s.Field("Root Directory", o.RootDir)
	s.Field("Codec", codecName(o.Codec))
	s.Field("Compression", valueOr(o.Compression, codec.CompressionNone))
	s.Field("File Mode", fmt.Sprintf("%#o", o.Mode))

	s.Section("Shards")
	s.Field("Max Shard Length", valueOr(intString(o.MaxShardLength), "-"))
	s.Field("Max Shard Size", valueOr(o.MaxShardSize, "-"))
	s.Field("Estimate Samples", strconv.Itoa(o.EstimateSamples))
	s.Field("Length", valueOr(intString(o.Length), "unknown"))

	s.Section("Workers")
	s.Field("Max Workers", strconv.Itoa(o.MaxWorkers))
	s.Field("Thread Safe Iterator", strconv.FormatBool(o.IteratorThreadSafe))
	s.Field("Source", strconv.FormatBool(o.Source != nil))

	s.Section("Memory")
	s.Field("Max Cache Size", strconv.Itoa(o.MaxCacheSize))
	s.Field("Memory Limit", valueOr(intString(int(o.MemoryLimit)), "disabled"))

	return s.String()
}

func codecName[T any](c codec.Codec[T]) string {
	if c == nil {
		return "json"
	}
	return c.Name()
}

func intString(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
