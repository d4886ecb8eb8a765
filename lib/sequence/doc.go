/*
Package sequence provides random-access sequences and zero-copy combinators.

Every combinator returns a new Sequence that reads through to its inputs on
demand; nothing is materialized when a combinator is built:

	seq := sequence.Of(0, 1, 2, 3, 4, 5, 6, 7, 8, 9)

	sequence.Slice(seq, 2, sequence.Open)        // 2 3 4 5 6 7 8 9
	sequence.SliceStep(seq, sequence.Open, sequence.Open, -3) // 9 6 3 0
	sequence.Select(seq, []int{4, -1})           // 4 9
	sequence.Concat(seq, seq)                    // 0 .. 9 0 .. 9
	sequence.Interleave(a, b)                    // a0 b0 a1 b1 ...
	sequence.Repeat(seq, 0)                      // 0 .. 9 0 .. 9 ... (unbounded)

Views compose: Slice(s, a, b).Get(c) reads s.Get(a+c).

ChunkShuffle permutes indices only within fixed size windows, which keeps
shuffled access close to the shard layout of a disk backed sequence.
*/
package sequence
