package containers

import (
	"errors"
	"testing"
)

func TestRingQueue(t *testing.T) {
	rq := NewRingQueue[int](3)
	if _, err := rq.Dequeue(); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("Dequeue on empty queue = %v, want ErrQueueEmpty", err)
	}

	for i := 1; i <= 3; i++ {
		if err := rq.Enqueue(i); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}
	if err := rq.Enqueue(4); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Enqueue on full queue = %v, want ErrQueueFull", err)
	}
	if v, _ := rq.Peek(); v != 1 {
		t.Fatalf("Peek = %d, want 1", v)
	}

	// wrap the write index around the end of the buffer
	if v, _ := rq.Dequeue(); v != 1 {
		t.Fatalf("Dequeue = %d, want 1", v)
	}
	if err := rq.Enqueue(4); err != nil {
		t.Fatalf("Enqueue after dequeue: %v", err)
	}

	var got []int
	for !rq.IsEmpty() {
		v, err := rq.Dequeue()
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, v)
	}
	want := []int{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("drained %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("drained %v, want %v", got, want)
		}
	}
	if rq.Len() != 0 {
		t.Fatalf("Len = %d after draining", rq.Len())
	}
}
