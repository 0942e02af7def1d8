package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"stencil/internal/httpkit"
	"stencil/internal/models"
)

var ErrApplicationNameExists = errors.New("application name already exists in workspace")

type ApplicationRepository struct {
	db *pgxpool.Pool
}

func NewApplicationRepository(db *pgxpool.Pool) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Create inserts app with its definition document and fills CreatedAt.
func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application, definition []byte) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO applications (id, workspace_id, name, slug, page_count, datasource_count, action_count, definition)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8::jsonb)
		RETURNING created_at
	`, app.ID, app.WorkspaceID, app.Name, app.Slug, app.PageCount, app.DatasourceCount, app.ActionCount, definition).
		Scan(&app.CreatedAt)

	if err != nil {
		if httpkit.IsUniqueViolation(err) {
			return ErrApplicationNameExists
		}
		return err
	}
	return nil
}
