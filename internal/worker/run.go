// Package worker drains the analytics queue into the event store.
package worker

import (
	"context"
	stderrors "errors"
	"time"

	"stencil/internal/analytics"
	"stencil/internal/pkg/errors"
	"stencil/internal/pkg/logger"
	"stencil/internal/queue"
)

// Run consumes analytics events until ctx is done. Malformed messages are
// logged and dropped; messages the store rejects are pushed back and retried.
func Run(ctx context.Context, d Deps) error {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("worker")

	retry := d.RetryDelay
	if retry <= 0 {
		retry = time.Second
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("worker context canceled, stopping")
			return ctx.Err()
		default:
		}

		msg, err := d.Queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("worker stopping due to context cancellation")
				return ctx.Err()
			}
			if stderrors.Is(err, queue.ErrEmpty) {
				continue
			}

			log.Warn("queue pop error, retrying", "error", err.Error())
			if !sleep(ctx, retry) {
				return ctx.Err()
			}
			continue
		}

		if err := handle(ctx, log, d.Events, msg); err != nil {
			if errors.IsValidation(err) {
				log.Warn("dropping malformed analytics event", "error", err.Error(), "message", msg)
				continue
			}

			log.Error("failed to record analytics event, requeueing", "error", err.Error())
			if pushErr := d.Queue.Push(context.WithoutCancel(ctx), msg); pushErr != nil {
				log.Error("failed to requeue analytics event, dropping",
					"error", pushErr.Error(),
					"message", msg,
				)
			}
			if !sleep(ctx, retry) {
				return ctx.Err()
			}
		}
	}
}

func handle(ctx context.Context, log *logger.Logger, store EventStore, msg string) error {
	ev, err := analytics.DecodeEnvelope(msg)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := store.Insert(ctx, ev); err != nil {
		return errors.Wrap(err, "worker.record", "failed to store analytics event").
			WithField("event_id", ev.ID)
	}

	log.Debug("analytics event recorded",
		"event_id", ev.ID,
		"event", ev.Event,
		"subject_id", ev.SubjectID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
