package sequence

import (
	"math/rand/v2"

	"github.com/ValentinKolb/loadit/lib/util"
)

// ChunkShuffle returns a permutation of [0, length) that only shuffles inside
// consecutive windows of chunkSize (the last window may be shorter). Every
// output window [k*chunkSize, (k+1)*chunkSize) holds exactly the same input
// indices, so a shuffled scan still reads a few neighbouring shards at a time.
// chunkSize < 1 shuffles the whole range.
func ChunkShuffle(length, chunkSize int, rng *rand.Rand) []int {
	perm := make([]int, max(length, 0))
	for i := range perm {
		perm[i] = i
	}
	if chunkSize < 1 {
		chunkSize = max(length, 1)
	}

	for lo := 0; lo < length; lo += chunkSize {
		window := perm[lo:min(lo+chunkSize, length)]
		rng.Shuffle(len(window), func(a, b int) {
			window[a], window[b] = window[b], window[a]
		})
	}
	return perm
}

// Shuffle returns a chunk shuffled view of seq. A zero seed picks a random one.
// The length of seq is resolved immediately.
func Shuffle[T any](seq Sequence[T], chunkSize int, seed uint64) (*View[T], error) {
	n, err := seq.Len()
	if err != nil {
		return nil, err
	}
	if seed == 0 {
		seed = util.GenerateSeed()
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return Select(seq, ChunkShuffle(n, chunkSize, rng)), nil
}
