package queue

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTryEnqueueDropsNewest(t *testing.T) {
	const capacity = 5
	q := New[int](capacity)

	done := make(chan struct{})
	var dropped []int
	go func() {
		defer close(done)
		for i := 0; i < capacity+3; i++ {
			if err := q.TryEnqueue(i); err != nil {
				if !errors.Is(err, ErrQueueFull) {
					t.Errorf("unexpected error: %v", err)
				}
				dropped = append(dropped, i)
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on a full queue")
	}

	if q.Len() != capacity {
		t.Fatalf("Len() = %d, want %d", q.Len(), capacity)
	}
	if len(dropped) != 3 || dropped[0] != capacity {
		t.Errorf("dropped = %v, want the last three items", dropped)
	}

	ctx := context.Background()
	for want := 0; want < capacity; want++ {
		got, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("dequeue: %v", err)
		}
		if got != want {
			t.Errorf("dequeue = %d, want %d", got, want)
		}
	}
}

func TestDequeueBlocksUntilItem(t *testing.T) {
	q := New[string](2)
	got := make(chan string, 1)
	go func() {
		v, err := q.Dequeue(context.Background())
		if err != nil {
			t.Errorf("dequeue: %v", err)
		}
		got <- v
	}()

	select {
	case v := <-got:
		t.Fatalf("dequeue returned %q before enqueue", v)
	case <-time.After(20 * time.Millisecond):
	}

	if err := q.TryEnqueue("frame"); err != nil {
		t.Fatal(err)
	}
	select {
	case v := <-got:
		if v != "frame" {
			t.Errorf("got %q", v)
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue did not wake up")
	}
}

func TestDequeueCancelled(t *testing.T) {
	q := New[int](1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.Dequeue(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestNewMinimumCapacity(t *testing.T) {
	if c := New[int](0).Cap(); c != 1 {
		t.Errorf("Cap() = %d, want 1", c)
	}
}
