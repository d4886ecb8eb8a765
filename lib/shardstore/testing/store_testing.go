package testing

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/ValentinKolb/loadit/lib/common"
	"github.com/ValentinKolb/loadit/lib/shardstore"
)

// ShardLength is the max shard length the factory must configure
const ShardLength = 4

// StoreFactory opens (or reopens) the store located at dir
type StoreFactory func(dir string) (shardstore.IShardStore[int], error)

// RunShardStoreTests runs the conformance suite against the stores created by factory.
func RunShardStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Write&Read", func(t *testing.T) {
			testWriteRead(t, open(t, factory, t.TempDir()))
		})

		t.Run("ReadMiss", func(t *testing.T) {
			testReadMiss(t, open(t, factory, t.TempDir()))
		})

		t.Run("Alignment", func(t *testing.T) {
			testAlignment(t, open(t, factory, t.TempDir()))
		})

		t.Run("LastWriteWins", func(t *testing.T) {
			testLastWriteWins(t, open(t, factory, t.TempDir()))
		})

		t.Run("FinalizeLength", func(t *testing.T) {
			testFinalizeLength(t, open(t, factory, t.TempDir()))
		})

		t.Run("AllPresent", func(t *testing.T) {
			testAllPresent(t, open(t, factory, t.TempDir()))
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, open(t, factory, t.TempDir()))
		})

		t.Run("Reopen", func(t *testing.T) {
			testReopen(t, factory)
		})

		t.Run("ConcurrentWriters", func(t *testing.T) {
			testConcurrentWriters(t, open(t, factory, t.TempDir()))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func open(t testing.TB, factory StoreFactory, dir string) shardstore.IShardStore[int] {
	t.Helper()
	store, err := factory(dir)
	if err != nil {
		t.Fatalf("Failed to open store in %s: %v", dir, err)
	}
	return store
}

func shard(start, n int) []int {
	items := make([]int, n)
	for i := range items {
		items[i] = start + i
	}
	return items
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testWriteRead(t *testing.T, store shardstore.IShardStore[int]) {
	defer store.Close()

	if store.MaxShardLength() != ShardLength {
		t.Fatalf("Expected max shard length %d, got %d", ShardLength, store.MaxShardLength())
	}

	for start := 0; start < 5*ShardLength; start += ShardLength {
		if err := store.Write(start, shard(start, ShardLength)); err != nil {
			t.Fatalf("Write(%d) failed: %v", start, err)
		}
	}

	for start := 0; start < 5*ShardLength; start += ShardLength {
		items, ok, err := store.Read(start)
		if err != nil || !ok {
			t.Fatalf("Read(%d) = ok %v, err %v", start, ok, err)
		}
		if !reflect.DeepEqual(items, shard(start, ShardLength)) {
			t.Errorf("Read(%d) = %v, expected %v", start, items, shard(start, ShardLength))
		}
		if !store.Has(start) {
			t.Errorf("Expected Has(%d) after Write", start)
		}
	}

	// a short last shard
	if err := store.Write(5*ShardLength, shard(5*ShardLength, 1)); err != nil {
		t.Fatalf("Write of a short shard failed: %v", err)
	}
	items, ok, err := store.Read(5 * ShardLength)
	if err != nil || !ok || len(items) != 1 {
		t.Errorf("Expected a short shard of 1 item, got %v (ok %v, err %v)", items, ok, err)
	}
}

func testReadMiss(t *testing.T, store shardstore.IShardStore[int]) {
	defer store.Close()

	items, ok, err := store.Read(8)
	if err != nil {
		t.Fatalf("Read of a missing shard must not fail: %v", err)
	}
	if ok || items != nil {
		t.Errorf("Expected a miss, got ok %v items %v", ok, items)
	}
	if store.Has(8) {
		t.Error("Expected Has to be false for a missing shard")
	}
}

func testAlignment(t *testing.T, store shardstore.IShardStore[int]) {
	defer store.Close()

	for _, start := range []int{1, 3, ShardLength + 1, -ShardLength} {
		err := store.Write(start, shard(start, 1))
		if !errors.Is(err, common.ErrMisaligned) {
			t.Errorf("Write(%d) expected ErrMisaligned, got %v", start, err)
		}
	}

	if err := store.Write(0, shard(0, ShardLength+1)); err == nil {
		t.Error("Expected an error for a shard larger than the max shard length")
	}
	if err := store.Write(0, nil); err == nil {
		t.Error("Expected an error for an empty shard")
	}
	if store.Has(0) {
		t.Error("Rejected writes must not create shards")
	}
}

func testLastWriteWins(t *testing.T, store shardstore.IShardStore[int]) {
	defer store.Close()

	if err := store.Write(0, []int{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	if err := store.Write(0, []int{5, 6, 7, 8}); err != nil {
		t.Fatal(err)
	}

	items, _, err := store.Read(0)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(items, []int{5, 6, 7, 8}) {
		t.Errorf("Expected the last write to win, got %v", items)
	}
}

func testFinalizeLength(t *testing.T, store shardstore.IShardStore[int]) {
	defer store.Close()

	if _, known := store.Length(); known {
		t.Fatal("Length of a new store must be unknown")
	}

	if err := store.FinalizeLength(10); err != nil {
		t.Fatalf("FinalizeLength failed: %v", err)
	}
	if length, known := store.Length(); !known || length != 10 {
		t.Errorf("Expected length 10, got %d (known %v)", length, known)
	}

	if err := store.FinalizeLength(10); err != nil {
		t.Errorf("Repeating FinalizeLength with the same value must be a no-op, got %v", err)
	}

	if err := store.FinalizeLength(12); !errors.Is(err, common.ErrLengthConflict) {
		t.Errorf("Expected ErrLengthConflict, got %v", err)
	}
	if length, _ := store.Length(); length != 10 {
		t.Errorf("A conflicting FinalizeLength changed the length to %d", length)
	}

	if err := store.Write(12, shard(12, 1)); !errors.Is(err, common.ErrOutOfRange) {
		t.Errorf("Expected ErrOutOfRange for a write beyond the length, got %v", err)
	}
}

func testAllPresent(t *testing.T, store shardstore.IShardStore[int]) {
	defer store.Close()

	if _, err := store.AllPresent(); err == nil {
		t.Error("AllPresent without a known length must fail")
	}

	if err := store.FinalizeLength(10); err != nil {
		t.Fatal(err)
	}
	for _, start := range []int{0, 8} {
		if err := store.Write(start, shard(start, min(ShardLength, 10-start))); err != nil {
			t.Fatal(err)
		}
	}

	if ok, err := store.AllPresent(); err != nil || ok {
		t.Errorf("Expected AllPresent false with shard 4 missing, got %v (err %v)", ok, err)
	}

	if err := store.Write(4, shard(4, ShardLength)); err != nil {
		t.Fatal(err)
	}
	if ok, err := store.AllPresent(); err != nil || !ok {
		t.Errorf("Expected AllPresent true, got %v (err %v)", ok, err)
	}
}

type info struct {
	Name   string   `json:"name"`
	Labels []string `json:"labels"`
}

func testInfo(t *testing.T, store shardstore.IShardStore[int]) {
	defer store.Close()

	var empty info
	if err := store.Info(&empty); err != nil {
		t.Fatalf("Info without metadata must not fail: %v", err)
	}
	if empty.Name != "" {
		t.Errorf("Expected empty info, got %+v", empty)
	}

	in := info{Name: "dataset", Labels: []string{"a", "b"}}
	if err := store.SetInfo(in); err != nil {
		t.Fatalf("SetInfo failed: %v", err)
	}

	var out info
	if err := store.Info(&out); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("Expected info %+v, got %+v", in, out)
	}
}

func testReopen(t *testing.T, factory StoreFactory) {
	dir := t.TempDir()

	store := open(t, factory, dir)
	for start := 0; start < 10; start += ShardLength {
		if err := store.Write(start, shard(start, min(ShardLength, 10-start))); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.FinalizeLength(10); err != nil {
		t.Fatal(err)
	}
	if err := store.SetInfo(info{Name: "persisted"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened := open(t, factory, dir)
	defer reopened.Close()

	if length, known := reopened.Length(); !known || length != 10 {
		t.Errorf("Expected persisted length 10, got %d (known %v)", length, known)
	}
	var out info
	if err := reopened.Info(&out); err != nil || out.Name != "persisted" {
		t.Errorf("Expected persisted info, got %+v (err %v)", out, err)
	}
	if ok, err := reopened.AllPresent(); err != nil || !ok {
		t.Errorf("Expected all shards after reopen, got %v (err %v)", ok, err)
	}
	items, ok, err := reopened.Read(8)
	if err != nil || !ok || !reflect.DeepEqual(items, []int{8, 9}) {
		t.Errorf("Expected [8 9] after reopen, got %v (ok %v, err %v)", items, ok, err)
	}
}

func testConcurrentWriters(t *testing.T, store shardstore.IShardStore[int]) {
	defer store.Close()

	const shards = 32
	var wg sync.WaitGroup
	errs := make(chan error, shards)

	for i := 0; i < shards; i++ {
		wg.Add(1)
		go func(start int) {
			defer wg.Done()
			if err := store.Write(start, shard(start, ShardLength)); err != nil {
				errs <- fmt.Errorf("write %d: %w", start, err)
				return
			}
			if _, ok, err := store.Read(start); err != nil || !ok {
				errs <- fmt.Errorf("read %d: ok %v err %v", start, ok, err)
			}
		}(i * ShardLength)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
