/*
Package loadit provides LazySequence, random access over the output of a
source that can only be read forward.

Items are materialized on disk in fixed size shards the first time any item of
a shard is read. A bounded in-memory cache keeps hot shards resident and a pool
of writers produces missing shards, restarting the source only when a shard
behind every writer is requested.

	seq, err := loadit.New(loadit.Options[string]{
		RootDir:        "/data/cache",
		Source:         source.FromLines("/data/input.txt"),
		MaxShardLength: 1024,
	})
	if err != nil {
		return err
	}
	defer seq.Close()

	item, err := seq.Get(123456)   // produces the shard [123904, 124928) if missing
	n, err := seq.Len()            // discovers the length by probing ahead
	view := seq.Slice(0, 100)      // no data is read until view.Get

The store directory can be reopened without a source once every needed shard
exists. Shard length and compression are fixed when the store is created.
*/
package loadit
