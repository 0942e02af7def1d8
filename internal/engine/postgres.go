// Package engine materializes definition documents as applications.
package engine

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"stencil/internal/contracts/appjson"
	"stencil/internal/models"
	"stencil/internal/pkg/errors"
	"stencil/internal/repositories"
)

const (
	opImport = "engine.import"

	// DefaultApplicationName names applications whose document carries no name.
	DefaultApplicationName = "Untitled application"

	maxNameAttempts = 50
)

// ApplicationStore persists applications. Create returns
// repositories.ErrApplicationNameExists when the workspace already has
// an application with that name.
type ApplicationStore interface {
	Create(ctx context.Context, app *models.Application, definition []byte) error
}

// Postgres is a ports.ImportEngine that stores each imported document as an
// application row.
type Postgres struct {
	store ApplicationStore
	newID func() string
}

// NewPostgres creates an engine writing to store.
func NewPostgres(store ApplicationStore) *Postgres {
	return &Postgres{store: store, newID: uuid.NewString}
}

// ImportApplicationInOrganization creates an application in workspaceID
// from doc. The document name is kept when free; otherwise " (2)", " (3)"
// and so on are appended until the name is unique within the workspace.
func (p *Postgres) ImportApplicationInOrganization(ctx context.Context, workspaceID string, doc *appjson.Document) (*models.Application, error) {
	if strings.TrimSpace(workspaceID) == "" {
		return nil, errors.ValidationField("workspace_id", "workspace id is required")
	}
	if doc == nil {
		return nil, errors.Validation("definition document is required")
	}

	definition, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, opImport, "failed to encode definition document")
	}

	base := doc.ApplicationName(DefaultApplicationName)
	for n := 1; n <= maxNameAttempts; n++ {
		name := CandidateName(base, n)
		app := &models.Application{
			ID:              p.newID(),
			WorkspaceID:     workspaceID,
			Name:            name,
			Slug:            Slugify(name),
			PageCount:       len(doc.PageList),
			DatasourceCount: len(doc.DatasourceList),
			ActionCount:     len(doc.ActionList) + len(doc.ActionCollectionList),
		}

		err := p.store.Create(ctx, app, definition)
		if err == nil {
			return app, nil
		}
		if !stderrors.Is(err, repositories.ErrApplicationNameExists) {
			return nil, errors.Wrap(err, opImport, "failed to store application").
				WithField("workspace_id", workspaceID)
		}
	}

	return nil, errors.Conflict(fmt.Sprintf("no free application name for %q", base)).
		WithField("workspace_id", workspaceID)
}

// CandidateName is the n-th name tried for base, starting at 1.
func CandidateName(base string, n int) string {
	if n <= 1 {
		return base
	}
	return fmt.Sprintf("%s (%d)", base, n)
}

// Slugify lower-cases name and joins its letter and digit runs with '-'.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	if b.Len() == 0 {
		return "application"
	}
	return b.String()
}
