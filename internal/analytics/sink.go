// Package analytics publishes tracked actions to the analytics queue.
package analytics

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"stencil/internal/models"
	"stencil/internal/pkg/errors"
	"stencil/internal/ports"
	"stencil/internal/queue"
)

const opSend = "analytics.send"

// QueueSink is a ports.AnalyticsSink that enqueues a JSON envelope per
// event. SendEvent returns after the queue accepted or rejected the push.
type QueueSink struct {
	q   queue.Queue
	now func() time.Time
}

// NewQueueSink creates a sink publishing to q.
func NewQueueSink(q queue.Queue) *QueueSink {
	return &QueueSink{q: q, now: time.Now}
}

// SendEvent implements ports.AnalyticsSink.
func (s *QueueSink) SendEvent(ctx context.Context, event ports.Event) error {
	if event.Kind == "" {
		return errors.ValidationField("event", "event kind is required")
	}

	env := Envelope(event, uuid.NewString(), s.now())
	b, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, opSend, "failed to encode analytics event")
	}

	if err := s.q.Push(ctx, string(b)); err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, opSend, "failed to publish analytics event").
			WithField("event", env.Event)
	}
	return nil
}

// Envelope is the wire form of event. Event names travel upper-cased, so
// EventFork is published as "FORK".
func Envelope(event ports.Event, id string, at time.Time) models.AnalyticsEvent {
	return models.AnalyticsEvent{
		ID:          id,
		Event:       strings.ToUpper(string(event.Kind)),
		SubjectType: event.Subject.Type,
		SubjectID:   event.Subject.ID,
		OccurredAt:  at.UTC(),
	}
}

// DecodeEnvelope parses a queued message and checks its required fields.
func DecodeEnvelope(msg string) (*models.AnalyticsEvent, error) {
	var ev models.AnalyticsEvent
	if err := json.Unmarshal([]byte(msg), &ev); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeValidation, "analytics.decode", "malformed analytics event")
	}
	switch {
	case ev.ID == "":
		return nil, errors.ValidationField("id", "analytics event id is required")
	case ev.Event == "":
		return nil, errors.ValidationField("event", "analytics event name is required")
	case ev.OccurredAt.IsZero():
		return nil, errors.ValidationField("occurredAt", "analytics event time is required")
	}
	return &ev, nil
}
