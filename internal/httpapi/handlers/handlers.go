package handlers

import (
	"context"

	"stencil/internal/catalog"
	"stencil/internal/models"
	"stencil/internal/pkg/logger"
)

// TemplateCatalog is the read side of the template catalog.
type TemplateCatalog interface {
	ListActiveTemplates(ctx context.Context) (*catalog.TemplateStream, error)
	ListSimilarTemplates(ctx context.Context, templateID string) (*catalog.TemplateStream, error)
	GetTemplateDetails(ctx context.Context, templateID string) (*models.TemplateSummary, error)
}

// TemplateImporter forks a template into a workspace.
type TemplateImporter interface {
	ImportFromTemplate(ctx context.Context, templateID, workspaceID string) (*models.Application, error)
}

// Check probes one dependency for the deep health check.
type Check func(ctx context.Context) error

type Deps struct {
	Catalog  TemplateCatalog
	Importer TemplateImporter
	Checks   map[string]Check
	Version  string
	Log      *logger.Logger
}

type Handler struct {
	catalog  TemplateCatalog
	importer TemplateImporter
	checks   map[string]Check
	version  string
	log      *logger.Logger
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Handler{
		catalog:  d.Catalog,
		importer: d.Importer,
		checks:   d.Checks,
		version:  d.Version,
		log:      log.WithComponent("httpapi"),
	}
}

// Log returns the handler logger.
func (h *Handler) Log() *logger.Logger {
	return h.log
}
