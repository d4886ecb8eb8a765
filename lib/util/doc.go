// Package util provides the infrastructure pieces the loadit packages are built on.
//
// The package contains:
//   - mapheap: a keyed min-heap; the memory cache uses it to find the least recently used shard
//   - queue: a lock-free multi-producer single-consumer queue
//   - executor: a bounded worker pool fed by the queue, used for asynchronous shard prefetching
//   - statistics: SizeHistogram for shard length estimation and distribution statistics for pool stats
//   - functions: seeding, hashing and alignment helpers
//
// None of the types except Queue, Executor and SizeHistogram are safe for concurrent use.
package util
