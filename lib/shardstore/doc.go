/*
Package shardstore persists fixed-capacity shards of items on disk.

A store is a directory holding a metadata file and one file per shard:

	<root>/meta.json                   shard length, finalized length, codec, compression, user info
	<root>/meta.json.lock              inter-process lock for metadata updates
	<root>/shards/<start>.shard        one shard, start zero padded to 16 digits

Shards are keyed by their start offset, which is always a multiple of the
max shard length. Every shard is full except possibly the last one. Shard files
are written to a temp file first and renamed into place, so readers never see
a partial shard. Every shard file carries a CRC32 of its payload; a mismatch is
reported as a common.ErrCorrupt error.

The dataset length is unknown until FinalizeLength is called. Once set it never
changes, a conflicting FinalizeLength fails with common.ErrLengthConflict.

Usage:

	store, err := shardstore.Open[string]("/data/cache", shardstore.DefaultOptions[string](1024))
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Write(0, items); err != nil {
		return err
	}
	items, ok, err := store.Read(0)
*/
package shardstore
