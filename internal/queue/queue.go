// Package queue moves opaque string messages between the API and the worker.
package queue

import (
	"context"
	"errors"
)

// ErrEmpty is returned by Pop when no message arrived within the wait window.
var ErrEmpty = errors.New("queue is empty")

// Queue is a FIFO of string messages.
type Queue interface {
	// Push appends a message.
	Push(ctx context.Context, msg string) error
	// Pop removes the oldest message, waiting until one arrives, the wait
	// window elapses (ErrEmpty) or ctx is done.
	Pop(ctx context.Context) (string, error)
}
