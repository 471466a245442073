// Package pqueue provides a max-priority queue of distinct-priority items.
package pqueue

import (
	"container/heap"
	"sort"
)

// Item is an element of a Queue. Items are compared with == when removed,
// so implementations are usually pointers.
type Item interface {
	comparable
	Priority() int
}

// Queue is a max-heap on Priority: the item with the greatest priority is
// returned first. Equal priorities are not ordered; callers keep them unique.
// A Queue is not safe for concurrent use; wrap it in a cell.Cell.
type Queue[T Item] struct {
	h itemHeap[T]
}

// New creates an empty queue.
func New[T Item]() *Queue[T] {
	return &Queue[T]{}
}

// Push inserts item in O(log n).
func (q *Queue[T]) Push(item T) {
	heap.Push(&q.h, item)
}

// Peek returns the maximum-priority item without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	if len(q.h) == 0 {
		var zero T
		return zero, false
	}
	return q.h[0], true
}

// Pop removes and returns the maximum-priority item.
func (q *Queue[T]) Pop() (T, bool) {
	if len(q.h) == 0 {
		var zero T
		return zero, false
	}
	return heap.Pop(&q.h).(T), true
}

// Remove deletes item from the queue and reports whether it was present.
func (q *Queue[T]) Remove(item T) bool {
	for i, it := range q.h {
		if it == item {
			heap.Remove(&q.h, i)
			return true
		}
	}
	return false
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	return len(q.h)
}

// Clone returns an independent copy of the queue.
func (q *Queue[T]) Clone() *Queue[T] {
	c := &Queue[T]{h: make(itemHeap[T], len(q.h))}
	copy(c.h, q.h)
	return c
}

// Items returns the queued items in heap order. Only the first element is
// guaranteed to be the maximum.
func (q *Queue[T]) Items() []T {
	out := make([]T, len(q.h))
	copy(out, q.h)
	return out
}

// Sorted returns the queued items in descending priority order.
func (q *Queue[T]) Sorted() []T {
	out := q.Items()
	sort.Slice(out, func(i, j int) bool {
		return out[i].Priority() > out[j].Priority()
	})
	return out
}

// itemHeap implements heap.Interface as a max-heap on Priority.
type itemHeap[T Item] []T

func (h itemHeap[T]) Len() int           { return len(h) }
func (h itemHeap[T]) Less(i, j int) bool { return h[i].Priority() > h[j].Priority() }
func (h itemHeap[T]) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *itemHeap[T]) Push(x any) {
	*h = append(*h, x.(T))
}

func (h *itemHeap[T]) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	var zero T
	old[n-1] = zero // allow GC
	*h = old[:n-1]
	return it
}
