package cell

import (
	"sync"
	"testing"
)

func TestCell_LoadIsIdempotent(t *testing.T) {
	c := New(42, nil)
	for i := 0; i < 3; i++ {
		if got := c.Load(); got != 42 {
			t.Fatalf("Load() = %d, want 42", got)
		}
	}
}

func TestCell_LoadReturnsSnapshot(t *testing.T) {
	c := New([]int{1, 2, 3}, func(s []int) []int {
		return append([]int(nil), s...)
	})

	snap := c.Load()
	snap[0] = 100

	c.View(func(s []int) {
		if s[0] != 1 {
			t.Errorf("held value changed through snapshot: %v", s)
		}
	})
}

func TestCell_MutateConcurrent(t *testing.T) {
	c := New(map[int]bool{}, nil)

	const workers, perWorker = 16, 200
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := w*perWorker + i
				c.Mutate(func(m *map[int]bool) { (*m)[key] = true })
			}
		}(w)
	}
	wg.Wait()

	c.View(func(m map[int]bool) {
		if len(m) != workers*perWorker {
			t.Errorf("len = %d, want %d", len(m), workers*perWorker)
		}
	})
}

func TestCell_MutateReplacesValue(t *testing.T) {
	c := New("before", nil)
	c.Mutate(func(s *string) { *s = "after" })
	if got := c.Load(); got != "after" {
		t.Errorf("Load() = %q, want after", got)
	}
}
