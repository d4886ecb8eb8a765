/*
Package writer materializes shards from forward-only source iterators.

A Writer wraps one iterator instance and can produce the shard at any aligned
start. Producing a shard behind its cursor forces a restart: the iterator is
closed and a fresh one is read from the beginning.

A Pool owns a fixed set of writers and assigns every production to the writer
that reaches the requested start with the least iteration:

 1. a pending request for the same start is shared, its result is handed to every caller
 2. a writer whose queue already passes start (first < start < last) takes it in order
 3. otherwise the writer with the smallest gap wins, ties go to the lower index

The gap of a writer is the distance from its position (the end of its last
queued shard, or its cursor when idle) to start. A start behind the position
costs the position itself, which is what re-reading up to it would cost.

Only the head of a writers queue runs. With N writers at most N productions
run concurrently and a monotonic scan stays on a single writer.
*/
package writer
