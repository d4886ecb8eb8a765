package util

import (
	"sort"
	"testing"
)

// TestNewMapHeap tests the creation of a new MapHeap
func TestNewMapHeap(t *testing.T) {
	mh := NewMapHeap[int]()

	if mh.Len() != 0 {
		t.Errorf("New heap should be empty, but has length %d", mh.Len())
	}

	if _, ok := mh.Peek(); ok {
		t.Error("Peek on empty heap should return ok=false")
	}

	if _, ok := mh.PopMin(); ok {
		t.Error("PopMin on empty heap should return ok=false")
	}
}

// TestRecencyUpdate touches shard starts and checks that the least recently used one is on top
func TestRecencyUpdate(t *testing.T) {
	mh := NewMapHeap[int]()

	mh.AddItem(0, 1)
	mh.AddItem(64, 2)
	mh.AddItem(128, 3)

	lru, _ := mh.Peek()
	if lru.Key != 0 {
		t.Errorf("Expected shard 0 to be least recently used, got %d", lru.Key)
	}

	// touch shard 0 again
	mh.AddItem(0, 4)

	lru, _ = mh.Peek()
	if lru.Key != 64 {
		t.Errorf("Expected shard 64 to be least recently used after touching 0, got %d", lru.Key)
	}

	if mh.Len() != 3 {
		t.Errorf("Updating a key must not add an item, got length %d", mh.Len())
	}
}

// TestRemoveByKey tests removing items by key
func TestRemoveByKey(t *testing.T) {
	mh := NewMapHeap[string]()

	mh.AddItem("a", 100)
	mh.AddItem("b", 200)
	mh.AddItem("c", 300)

	priority, exists := mh.RemoveByKey("b")
	if !exists {
		t.Fatal("RemoveByKey should return true for existing key")
	}
	if priority != 200 {
		t.Errorf("RemoveByKey should return priority 200, got %d", priority)
	}
	if mh.Contains("b") {
		t.Error("Heap should not contain key b after removal")
	}
	if _, exists = mh.RemoveByKey("zz"); exists {
		t.Error("RemoveByKey should return false for non-existent key")
	}
}

// TestPopOrder tests if items are popped in priority order
func TestPopOrder(t *testing.T) {
	mh := NewMapHeap[int]()

	items := []struct {
		key      int
		priority uint64
	}{
		{5, 50},
		{3, 30},
		{1, 10},
		{4, 40},
		{2, 20},
	}

	for _, item := range items {
		mh.AddItem(item.key, item.priority)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].priority < items[j].priority
	})

	for i, expected := range items {
		item, ok := mh.PopMin()
		if !ok {
			t.Fatalf("Heap empty after %d items, expected %d items", i, len(items))
		}
		if item.Key != expected.key || item.Priority != expected.priority {
			t.Errorf("Pop %d: expected (%d,%d), got (%d,%d)",
				i, expected.key, expected.priority, item.Key, item.Priority)
		}
		if mh.Contains(item.Key) {
			t.Errorf("Popped key %d must be removed from the index", item.Key)
		}
	}
}

// TestGetByKeyAndClear tests key access and clearing
func TestGetByKeyAndClear(t *testing.T) {
	mh := NewMapHeap[int]()
	mh.AddItem(1, 100)
	mh.AddItem(2, 200)

	item, exists := mh.GetByKey(1)
	if !exists || item.Priority != 100 {
		t.Fatalf("GetByKey returned incorrect item: %v", item)
	}

	mh.Clear()
	if mh.Len() != 0 || mh.Contains(1) {
		t.Error("Clear should remove every item")
	}
}

// TestManyItems checks the heap property under many random-ish updates
func TestManyItems(t *testing.T) {
	mh := NewMapHeap[int]()
	const n = 1000

	for i := 0; i < n; i++ {
		mh.AddItem(i, uint64((i*7919)%n))
	}
	for i := 0; i < n; i += 3 {
		mh.AddItem(i, uint64(n+i))
	}

	var last uint64
	for i := 0; mh.Len() > 0; i++ {
		item, _ := mh.PopMin()
		if i > 0 && item.Priority < last {
			t.Fatalf("Heap order violated: %d after %d", item.Priority, last)
		}
		last = item.Priority
	}
}
