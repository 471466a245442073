package pqueue

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type entry struct {
	name     string
	priority int
}

func (e *entry) Priority() int { return e.priority }

func names(items []*entry) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.name
	}
	return out
}

func TestQueue_PopOrder(t *testing.T) {
	q := New[*entry]()
	for _, p := range []int{1, 5, -3, 9, 0, 4} {
		q.Push(&entry{name: string(rune('a' + p + 3)), priority: p})
	}

	var got []int
	for q.Len() > 0 {
		it, ok := q.Pop()
		if !ok {
			t.Fatal("Pop() ok = false on non-empty queue")
		}
		got = append(got, it.priority)
	}
	want := []int{9, 5, 4, 1, 0, -3}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("pop order mismatch (-want +got):\n%s", diff)
	}
}

func TestQueue_EmptyPeekPop(t *testing.T) {
	q := New[*entry]()
	if _, ok := q.Peek(); ok {
		t.Error("Peek() ok = true on empty queue")
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop() ok = true on empty queue")
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}

func TestQueue_PeekDoesNotMutate(t *testing.T) {
	q := New[*entry]()
	a, b := &entry{"a", 1}, &entry{"b", 2}
	q.Push(a)
	q.Push(b)

	for i := 0; i < 5; i++ {
		top, ok := q.Peek()
		if !ok || top != b {
			t.Fatalf("Peek() = %v, %v; want b", top, ok)
		}
		if q.Len() != 2 {
			t.Fatalf("Len() = %d after Peek, want 2", q.Len())
		}
	}
}

func TestQueue_Remove(t *testing.T) {
	q := New[*entry]()
	a, b, c := &entry{"a", 3}, &entry{"b", 2}, &entry{"c", 1}
	q.Push(a)
	q.Push(b)
	q.Push(c)

	if !q.Remove(b) {
		t.Fatal("Remove(b) = false")
	}
	if q.Remove(b) {
		t.Error("second Remove(b) = true")
	}
	if q.Remove(&entry{"b", 2}) {
		t.Error("Remove of an equal-valued but distinct item = true")
	}
	if diff := cmp.Diff([]string{"a", "c"}, names(q.Sorted())); diff != "" {
		t.Errorf("after remove (-want +got):\n%s", diff)
	}

	if !q.Remove(a) {
		t.Fatal("Remove(a) = false")
	}
	top, _ := q.Peek()
	if top != c {
		t.Errorf("Peek() after removing root = %v, want c", top)
	}
}

func TestQueue_SortedAndClone(t *testing.T) {
	q := New[*entry]()
	for i, p := range rand.New(rand.NewSource(7)).Perm(20) {
		q.Push(&entry{name: string(rune('A' + i)), priority: p})
	}

	sorted := q.Sorted()
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].priority < sorted[i].priority {
			t.Fatalf("Sorted() not descending at %d: %d < %d", i, sorted[i-1].priority, sorted[i].priority)
		}
	}

	c := q.Clone()
	c.Pop()
	c.Pop()
	if q.Len() != 20 {
		t.Errorf("original Len() = %d after popping clone, want 20", q.Len())
	}
	if c.Len() != 18 {
		t.Errorf("clone Len() = %d, want 18", c.Len())
	}
	if top, _ := q.Peek(); top.priority != 19 {
		t.Errorf("original Peek() = %d, want 19", top.priority)
	}
}

func TestQueue_ItemsHeapOrder(t *testing.T) {
	q := New[*entry]()
	q.Push(&entry{"one", 1})
	q.Push(&entry{"two", 2})
	q.Push(&entry{"three", 3})

	items := q.Items()
	if len(items) != 3 {
		t.Fatalf("Items() len = %d, want 3", len(items))
	}
	if items[0].name != "three" {
		t.Errorf("Items()[0] = %q, want the maximum", items[0].name)
	}
}
