package source

import (
	"errors"
	"iter"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSliceRestarts(t *testing.T) {
	factory := FromSlice([]int{1, 2, 3})

	items, err := Drain(factory, -1)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, items)

	// a second iterator starts from the beginning again
	items, err = Drain(factory, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, items)
}

func TestFromSeq(t *testing.T) {
	factory := FromSeq(func() iter.Seq[int] {
		return func(yield func(int) bool) {
			for i := 0; i < 5; i++ {
				if !yield(i * i) {
					return
				}
			}
		}
	})

	items, err := Drain(factory, -1)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 4, 9, 16}, items)

	// closing early must not leak the pulled goroutine
	it, err := factory()
	require.NoError(t, err)
	v, ok, err := it.Next()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, v)
	require.NoError(t, it.Close())
}

func TestFromSeq2PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	factory := FromSeq2(func() iter.Seq2[int, error] {
		return func(yield func(int, error) bool) {
			if !yield(1, nil) {
				return
			}
			yield(0, boom)
		}
	})

	items, err := Drain(factory, -1)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{1}, items)
}

func TestFromLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lines.txt")
	require.NoError(t, os.WriteFile(path, []byte("alpha\nbeta\n\ngamma"), 0o644))

	items, err := Drain(FromLines(path), -1)
	require.NoError(t, err)
	require.Len(t, items, 4)
	assert.Equal(t, "alpha", string(items[0]))
	assert.Equal(t, "", string(items[2]))
	assert.Equal(t, "gamma", string(items[3]))

	_, err = Drain(FromLines(filepath.Join(t.TempDir(), "missing")), -1)
	assert.Error(t, err)
}
