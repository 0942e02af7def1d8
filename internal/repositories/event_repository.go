package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"stencil/internal/models"
)

type EventRepository struct {
	db *pgxpool.Pool
}

func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// Insert stores ev. Redelivered events with a known id are ignored.
func (r *EventRepository) Insert(ctx context.Context, ev *models.AnalyticsEvent) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO analytics_events (id, event, subject_type, subject_id, occurred_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO NOTHING
	`, ev.ID, ev.Event, ev.SubjectType, ev.SubjectID, ev.OccurredAt)
	return err
}
