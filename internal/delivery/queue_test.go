package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/airenas/chapter-transcriber/internal/api"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue()
	q.Put(api.Message{Event: api.EventStatus, Data: "one"})
	q.Put(api.Message{Event: api.EventStatus, Data: "two"})
	q.Put(api.Message{Event: api.EventData, Data: "three"})

	ctx := context.Background()
	for _, want := range []string{"one", "two", "three"} {
		got, err := q.Get(ctx)
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if got.Data != want {
			t.Errorf("Get() = %q, want %q", got.Data, want)
		}
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}

func TestQueue_GetWaits(t *testing.T) {
	q := NewQueue()
	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Put(api.Message{Event: api.EventStatus, Data: "late"})
	}()
	ctx, cancelF := context.WithTimeout(context.Background(), time.Second)
	defer cancelF()
	got, err := q.Get(ctx)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Data != "late" {
		t.Errorf("Get() = %q, want %q", got.Data, "late")
	}
}

func TestQueue_GetCtxDone(t *testing.T) {
	q := NewQueue()
	ctx, cancelF := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelF()
	if _, err := q.Get(ctx); err == nil {
		t.Error("Get() succeeded on empty queue with expired context")
	}
}

func TestQueue_Clear(t *testing.T) {
	q := NewQueue()
	q.Put(api.Message{Event: api.EventStatus, Data: "one"})
	q.Put(api.Message{Event: api.EventStatus, Data: "two"})
	q.Clear()
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after Clear", q.Len())
	}
}
