// Package testing provides standardised tests and benchmarks for
// implementations of the shardstore.IShardStore interface.
//
// The package contains:
//   - testing: a conformance suite for the IShardStore contract (alignment, last write wins,
//     length finalization, metadata persistence across reopen)
//   - benchmark: throughput of shard writes and reads
//
// The suites work on stores of int items with a max shard length of ShardLength.
//
// Example usage:
//
//	factory := func(dir string) (shardstore.IShardStore[int], error) {
//		return shardstore.Open[int](dir, shardstore.DefaultOptions[int](storetesting.ShardLength))
//	}
//
//	storetesting.RunShardStoreTests(t, "JSON", factory)
//	storetesting.RunShardStoreBenchmarks(b, "JSON", factory)
package testing
