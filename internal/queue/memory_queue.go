package queue

import (
	"context"
	"fmt"
)

// MemoryQueue is an in-process Queue for single-binary setups and tests.
type MemoryQueue struct {
	ch chan string
}

// NewMemoryQueue creates a queue holding up to size pending messages.
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 100
	}
	return &MemoryQueue{ch: make(chan string, size)}
}

// Push adds msg, failing immediately when the buffer is full.
func (q *MemoryQueue) Push(ctx context.Context, msg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.ch <- msg:
		return nil
	default:
		return fmt.Errorf("queue is full (%d pending)", cap(q.ch))
	}
}

// Pop waits for a message or for ctx to be done.
func (q *MemoryQueue) Pop(ctx context.Context) (string, error) {
	select {
	case msg := <-q.ch:
		return msg, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Len reports the number of pending messages.
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}
