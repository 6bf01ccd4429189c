package delivery

import (
	"context"
	"sync"

	"github.com/airenas/chapter-transcriber/internal/api"
)

// Queue is the single hand-off point between the orchestrator and the
// client-facing stream: FIFO, unbounded, one producer, one consumer.
type Queue struct {
	mu     sync.Mutex
	msgs   []api.Message
	signal chan struct{}
}

func NewQueue() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

// Put appends a message. Never blocks.
func (q *Queue) Put(msg api.Message) {
	q.mu.Lock()
	q.msgs = append(q.msgs, msg)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Get returns the oldest message, waiting until one arrives or ctx is done.
func (q *Queue) Get(ctx context.Context) (api.Message, error) {
	for {
		q.mu.Lock()
		if len(q.msgs) > 0 {
			msg := q.msgs[0]
			q.msgs = q.msgs[1:]
			q.mu.Unlock()
			return msg, nil
		}
		q.mu.Unlock()
		select {
		case <-q.signal:
		case <-ctx.Done():
			return api.Message{}, ctx.Err()
		}
	}
}

// Clear drops all pending messages. Used by cleanup on cancellation.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.msgs = nil
	q.mu.Unlock()
}

// Len returns the number of pending messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}
