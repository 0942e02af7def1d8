package worker

import (
	"context"
	"time"

	"stencil/internal/models"
	"stencil/internal/pkg/logger"
	"stencil/internal/queue"
)

// EventStore records analytics events.
type EventStore interface {
	Insert(ctx context.Context, ev *models.AnalyticsEvent) error
}

type Deps struct {
	Queue  queue.Queue
	Events EventStore
	Log    *logger.Logger
	// RetryDelay is the pause after a queue or store failure. Defaults to 1s.
	RetryDelay time.Duration
}
