package shardstore_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/loadit/lib/codec"
	"github.com/ValentinKolb/loadit/lib/common"
	"github.com/ValentinKolb/loadit/lib/shardstore"
	storetesting "github.com/ValentinKolb/loadit/lib/shardstore/testing"
	"github.com/ValentinKolb/loadit/lib/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func factory(c codec.Codec[int], compression string, memoryLimit int64) storetesting.StoreFactory {
	return func(dir string) (shardstore.IShardStore[int], error) {
		return shardstore.Open[int](dir, shardstore.Options[int]{
			MaxShardLength: storetesting.ShardLength,
			Codec:          c,
			Compression:    compression,
			MemoryLimit:    memoryLimit,
		})
	}
}

func Test(t *testing.T) {
	codecs := []codec.Codec[int]{codec.NewJSONCodec[int](), codec.NewGOBCodec[int]()}
	compressions := []string{codec.CompressionNone, codec.CompressionZstd, codec.CompressionSnappy, codec.CompressionLZ4}

	for _, c := range codecs {
		for _, compression := range compressions {
			storetesting.RunShardStoreTests(t, fmt.Sprintf("%s/%s", c.Name(), compression), factory(c, compression, 0))
		}
	}
	storetesting.RunShardStoreTests(t, "json/none/memory-limit", factory(codec.NewJSONCodec[int](), "", 1024))
}

func Benchmark(b *testing.B) {
	storetesting.RunShardStoreBenchmarks(b, "json/none", factory(codec.NewJSONCodec[int](), "", 0))
	storetesting.RunShardStoreBenchmarks(b, "gob/zstd", factory(codec.NewGOBCodec[int](), codec.CompressionZstd, 0))
	storetesting.RunShardStoreBenchmarks(b, "json/none/memory-limit", factory(codec.NewJSONCodec[int](), "", 1<<20))
}

func TestLayout(t *testing.T) {
	dir := t.TempDir()
	store, err := shardstore.Open[int](dir, shardstore.DefaultOptions[int](4))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Write(8, []int{8, 9}))

	assert.FileExists(t, filepath.Join(dir, "meta.json"))
	assert.FileExists(t, filepath.Join(dir, "shards", "0000000000000008.shard"))

	entries, err := os.ReadDir(filepath.Join(dir, "shards"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileMode(t *testing.T) {
	dir := t.TempDir()
	opts := shardstore.DefaultOptions[int](4)
	opts.Mode = 0o600

	store, err := shardstore.Open[int](dir, opts)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Write(0, []int{1}))

	stat, err := os.Stat(filepath.Join(dir, "shards", "0000000000000000.shard"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), stat.Mode().Perm())
}

func TestCorruptShard(t *testing.T) {
	dir := t.TempDir()
	store, err := shardstore.Open[int](dir, shardstore.DefaultOptions[int](4))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Write(0, []int{1, 2, 3, 4}))

	path := filepath.Join(dir, "shards", "0000000000000000.shard")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-2] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, ok, err := store.Read(0)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, common.ErrCorrupt), "expected ErrCorrupt, got %v", err)
}

func TestExistingShardLengthWins(t *testing.T) {
	dir := t.TempDir()
	store, err := shardstore.Open[int](dir, shardstore.DefaultOptions[int](4))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := shardstore.Open[int](dir, shardstore.DefaultOptions[int](16))
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 4, reopened.MaxShardLength())
}

func TestExistingStoreWithoutShardLength(t *testing.T) {
	dir := t.TempDir()
	store, err := shardstore.Open[int](dir, shardstore.DefaultOptions[int](4))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	meta, ok, err := shardstore.ReadMeta(dir)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4, meta.MaxShardLength)

	reopened, err := shardstore.Open[int](dir, shardstore.Options[int]{})
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, 4, reopened.MaxShardLength())
}

func TestCompressionMixing(t *testing.T) {
	dir := t.TempDir()
	opts := shardstore.DefaultOptions[int](4)
	opts.Compression = codec.CompressionZstd

	store, err := shardstore.Open[int](dir, opts)
	require.NoError(t, err)
	require.NoError(t, store.Write(0, []int{1, 2, 3, 4}))
	require.NoError(t, store.Close())

	// the persisted compression wins, shards stay readable
	opts.Compression = codec.CompressionSnappy
	reopened, err := shardstore.Open[int](dir, opts)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, codec.CompressionZstd, reopened.Meta().Compression)
	items, ok, err := reopened.Read(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []int{1, 2, 3, 4}, items)
}

func TestOpenErrors(t *testing.T) {
	_, err := shardstore.Open[int](t.TempDir(), shardstore.Options[int]{})
	assert.True(t, errors.Is(err, common.ErrConfiguration), "missing shard length: %v", err)

	opts := shardstore.DefaultOptions[int](4)
	opts.Compression = "brotli"
	_, err = shardstore.Open[int](t.TempDir(), opts)
	assert.True(t, errors.Is(err, common.ErrConfiguration), "unknown compression: %v", err)

	dir := t.TempDir()
	store, err := shardstore.Open[int](dir, shardstore.DefaultOptions[int](4))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	opts = shardstore.DefaultOptions[int](4)
	opts.Codec = codec.NewGOBCodec[int]()
	_, err = shardstore.Open[int](dir, opts)
	assert.True(t, errors.Is(err, common.ErrConfiguration), "codec mismatch: %v", err)
}

func TestMetaSnapshotIsCopy(t *testing.T) {
	store, err := shardstore.Open[int](t.TempDir(), shardstore.DefaultOptions[int](4))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.FinalizeLength(7))
	meta := store.Meta()
	*meta.Length = 100

	length, known := store.Length()
	assert.True(t, known)
	assert.Equal(t, 7, length)
}

// ---- Estimation ----

func TestParseShardSize(t *testing.T) {
	budget, err := shardstore.ParseShardSize("64mb")
	require.NoError(t, err)
	assert.Equal(t, int64(64*1024*1024), budget)

	for _, invalid := range []string{"", "mb", "lots", "-1mb"} {
		_, err := shardstore.ParseShardSize(invalid)
		assert.True(t, errors.Is(err, common.ErrConfiguration), "%q: %v", invalid, err)
	}
}

func TestEstimateShardLength(t *testing.T) {
	items := make([][]byte, 32)
	for i := range items {
		items[i] = make([]byte, 100)
	}
	bin := codec.NewBinaryCodec()

	// every encoded sample is 4 (count) + 4 (length) + 100 bytes
	length, err := shardstore.EstimateShardLength(source.FromSlice(items), bin, 1080, 16)
	require.NoError(t, err)
	assert.Equal(t, 10, length)

	length, err = shardstore.EstimateShardLength(source.FromSlice(items), bin, 1, 16)
	require.NoError(t, err)
	assert.Equal(t, 1, length, "the estimate is at least 1")
}

func TestEstimateShardLengthEmptySource(t *testing.T) {
	_, err := shardstore.EstimateShardLength(source.FromSlice([]int{}), codec.NewJSONCodec[int](), 1024, 16)
	assert.True(t, errors.Is(err, common.ErrEmptySource), "expected ErrEmptySource, got %v", err)

	_, err = shardstore.EstimateShardLength[int](nil, codec.NewJSONCodec[int](), 1024, 16)
	assert.True(t, errors.Is(err, common.ErrNoSource), "expected ErrNoSource, got %v", err)
}
