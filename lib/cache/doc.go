// Package cache keeps a bounded working set of materialized shards in memory.
//
// The cache is a derived view of the shard store: evicting an entry only frees
// memory, it never removes anything from disk. Misses are loaded through the
// Loader given at construction, which typically reads the store and falls back
// to the writer pool.
package cache
