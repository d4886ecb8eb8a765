package testing

import (
	"testing"
)

// RunShardStoreBenchmarks runs write and read benchmarks against the stores created by factory.
func RunShardStoreBenchmarks(b *testing.B, name string, factory StoreFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Write", func(b *testing.B) {
			benchmarkWrite(b, factory)
		})

		b.Run("Read", func(b *testing.B) {
			benchmarkRead(b, factory)
		})
	})
}

func benchmarkWrite(b *testing.B, factory StoreFactory) {
	store := open(b, factory, b.TempDir())
	defer store.Close()

	items := shard(0, ShardLength)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := store.Write((i%1024)*ShardLength, items); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkRead(b *testing.B, factory StoreFactory) {
	store := open(b, factory, b.TempDir())
	defer store.Close()

	const shards = 256
	for i := 0; i < shards; i++ {
		if err := store.Write(i*ShardLength, shard(i*ShardLength, ShardLength)); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok, err := store.Read((i % shards) * ShardLength); err != nil || !ok {
			b.Fatalf("read failed: ok %v err %v", ok, err)
		}
	}
}
