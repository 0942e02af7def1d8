// Package ports declares the collaborators the template importer drives but
// does not own: the application import engine, the analytics sink and the
// source of the running product version.
package ports

import (
	"context"

	"stencil/internal/contracts/appjson"
	"stencil/internal/models"
)

// ImportEngine turns a definition document into a live application.
type ImportEngine interface {
	ImportApplicationInOrganization(ctx context.Context, workspaceID string, doc *appjson.Document) (*models.Application, error)
}

// EventKind names an analytics event.
type EventKind string

// EventFork is emitted after a template was imported into a workspace.
const EventFork EventKind = "fork"

// Subject identifies the object an analytics event is about.
type Subject struct {
	Type string
	ID   string
}

// Event is one analytics event.
type Event struct {
	Kind    EventKind
	Subject Subject
}

// AnalyticsSink delivers analytics events. SendEvent returns once the event
// was accepted or failed.
type AnalyticsSink interface {
	SendEvent(ctx context.Context, event Event) error
}

// VersionSource reports the released product version sent to the catalog.
type VersionSource interface {
	ReleasedVersion() string
}
