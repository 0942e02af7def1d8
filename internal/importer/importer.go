// Package importer forks a catalog template into a workspace.
package importer

import (
	"context"
	"net/url"
	"strings"

	"stencil/internal/catalog"
	"stencil/internal/contracts/appjson"
	"stencil/internal/models"
	"stencil/internal/pkg/errors"
	"stencil/internal/ports"
)

// SubjectTypeTemplate is the analytics subject type for catalog templates.
const SubjectTypeTemplate = "ApplicationTemplate"

// Catalog is the part of the catalog client the importer needs.
type Catalog interface {
	GetTemplateDetails(ctx context.Context, templateID string) (*models.TemplateSummary, error)
	FetchDefinitionDocument(ctx context.Context, payloadURL *url.URL) (*appjson.Document, error)
}

// Importer imports catalog templates as new applications.
type Importer struct {
	catalog Catalog
	engine  ports.ImportEngine
	sink    ports.AnalyticsSink
}

// New creates an Importer.
func New(c Catalog, engine ports.ImportEngine, sink ports.AnalyticsSink) *Importer {
	return &Importer{catalog: c, engine: engine, sink: sink}
}

// ImportFromTemplate fetches templateID from the catalog, downloads its
// definition document and imports it into workspaceID. A fork event is sent
// only after the import succeeded, and the call returns once the sink
// accepted or rejected it; a sink failure fails the import.
//
// Catalog failures keep their codes; engine and sink errors are returned as is.
func (i *Importer) ImportFromTemplate(ctx context.Context, templateID, workspaceID string) (*models.Application, error) {
	templateID = strings.TrimSpace(templateID)
	workspaceID = strings.TrimSpace(workspaceID)
	if templateID == "" {
		return nil, errors.ValidationField("template_id", "template id is required")
	}
	if workspaceID == "" {
		return nil, errors.ValidationField("workspace_id", "workspace id is required")
	}

	summary, err := i.catalog.GetTemplateDetails(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, errors.TemplateNotFound(templateID)
	}

	payloadURL, err := catalog.PayloadURL(summary.AppDataURL)
	if err != nil {
		return nil, err
	}

	doc, err := i.catalog.FetchDefinitionDocument(ctx, payloadURL)
	if err != nil {
		return nil, err
	}

	app, err := i.engine.ImportApplicationInOrganization(ctx, workspaceID, doc)
	if err != nil {
		return nil, err
	}

	event := ports.Event{
		Kind:    ports.EventFork,
		Subject: ports.Subject{Type: SubjectTypeTemplate, ID: templateID},
	}
	if err := i.sink.SendEvent(ctx, event); err != nil {
		return nil, err
	}

	return app, nil
}
