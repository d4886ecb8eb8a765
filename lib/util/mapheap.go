// Package util
//
// This file provides a keyed min-heap used to track access recency.
//
// The heap combines a binary heap with a hash map so that both the entry with
// the lowest priority and any entry by key can be reached cheaply:
//
//   - O(log n) for Push, Pop and priority updates
//   - O(1) for key lookups and existence checks
//   - O(log n) for removal by key
//
// The memory cache stores a monotonically increasing access tick as the
// priority of each shard start; the minimum is then the least recently used
// shard and the next eviction candidate.
//
// Note: MapHeap is not thread-safe, callers must synchronize access.
//
// Example usage:
//
//	recency := NewMapHeap[int]()
//	recency.AddItem(0, 1)   // shard 0 touched at tick 1
//	recency.AddItem(64, 2)  // shard 64 touched at tick 2
//	recency.AddItem(0, 3)   // shard 0 touched again
//	lru, _ := recency.Peek() // -> shard 64
package util

import (
	"container/heap"
	"fmt"
)

// HeapItem is a single keyed entry of the heap
type HeapItem[K comparable] struct {
	Key      K      // Unique identifier for the item
	Priority uint64 // Smaller priorities are popped first
	index    int    // Index in the heap, maintained by heap package
}

func (i *HeapItem[K]) String() string {
	return fmt.Sprintf("{Key: %v, Priority: %d}", i.Key, i.Priority)
}

// MapHeap is a min-heap of keyed items with O(1) access by key
type MapHeap[K comparable] struct {
	items    []*HeapItem[K]
	itemsMap map[K]*HeapItem[K]
}

// NewMapHeap creates an empty heap
func NewMapHeap[K comparable]() *MapHeap[K] {
	return &MapHeap[K]{
		items:    make([]*HeapItem[K], 0),
		itemsMap: make(map[K]*HeapItem[K]),
	}
}

// Len returns the number of items in the queue (part of heap.Interface)
func (mh *MapHeap[K]) Len() int { return len(mh.items) }

// Less compares items by priority (part of heap.Interface)
func (mh *MapHeap[K]) Less(i, j int) bool {
	return mh.items[i].Priority < mh.items[j].Priority
}

// Swap exchanges items at positions i and j (part of heap.Interface)
func (mh *MapHeap[K]) Swap(i, j int) {
	mh.items[i], mh.items[j] = mh.items[j], mh.items[i]
	mh.items[i].index = i
	mh.items[j].index = j
}

// Push adds an item to the heap (part of heap.Interface, use AddItem instead)
func (mh *MapHeap[K]) Push(x interface{}) {
	item := x.(*HeapItem[K])
	item.index = len(mh.items)
	mh.items = append(mh.items, item)
	mh.itemsMap[item.Key] = item
}

// Pop removes and returns the last item (part of heap.Interface, use PopMin instead)
func (mh *MapHeap[K]) Pop() interface{} {
	old := mh.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // Avoid memory leak
	item.index = -1
	mh.items = old[:n-1]
	delete(mh.itemsMap, item.Key)
	return item
}

// AddItem adds a new item or updates the priority of an existing one
func (mh *MapHeap[K]) AddItem(key K, priority uint64) {
	if item, exists := mh.itemsMap[key]; exists {
		item.Priority = priority
		heap.Fix(mh, item.index)
		return
	}
	heap.Push(mh, &HeapItem[K]{Key: key, Priority: priority})
}

// PopMin removes and returns the item with the smallest priority
func (mh *MapHeap[K]) PopMin() (*HeapItem[K], bool) {
	if len(mh.items) == 0 {
		return nil, false
	}
	return heap.Pop(mh).(*HeapItem[K]), true
}

// RemoveByKey removes an item by its key and returns its priority
func (mh *MapHeap[K]) RemoveByKey(key K) (uint64, bool) {
	item, exists := mh.itemsMap[key]
	if !exists {
		return 0, false
	}
	heap.Remove(mh, item.index)
	return item.Priority, true
}

// Peek returns the minimum item without removing it
func (mh *MapHeap[K]) Peek() (*HeapItem[K], bool) {
	if len(mh.items) == 0 {
		return nil, false
	}
	return mh.items[0], true
}

// Contains checks if a key exists in the heap
func (mh *MapHeap[K]) Contains(key K) bool {
	_, exists := mh.itemsMap[key]
	return exists
}

// GetByKey retrieves an item by its key without removing it
func (mh *MapHeap[K]) GetByKey(key K) (*HeapItem[K], bool) {
	item, exists := mh.itemsMap[key]
	return item, exists
}

// Clear removes all items
func (mh *MapHeap[K]) Clear() {
	mh.items = make([]*HeapItem[K], 0)
	mh.itemsMap = make(map[K]*HeapItem[K])
}
