package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"stencil/internal/httpapi/handlers"
	"stencil/internal/httpkit"
	"stencil/internal/pkg/errors"
	"stencil/internal/pkg/logger"
	"stencil/internal/pkg/middleware"
)

type Deps struct {
	Catalog        handlers.TemplateCatalog
	Importer       handlers.TemplateImporter
	Checks         map[string]handlers.Check
	Version        string
	AllowedOrigins []string
	Log            *logger.Logger
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recovery(log))
	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "Accept", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAgeSeconds:  600,
	}))

	h := handlers.New(handlers.Deps{
		Catalog:  d.Catalog,
		Importer: d.Importer,
		Checks:   d.Checks,
		Version:  d.Version,
		Log:      log,
	})
	wrap := func(fn middleware.ErrorHandlerFunc) http.HandlerFunc {
		return middleware.WrapHandler(h.Log(), fn)
	}

	// ---- HEALTH ----
	r.Get("/health", h.Health)

	// ---- TEMPLATES ----
	r.Route("/api/v1/app-templates", func(r chi.Router) {
		r.Get("/", wrap(h.ListTemplates))
		r.Get("/{templateId}", wrap(h.GetTemplate))
		r.Get("/{templateId}/similar", wrap(h.ListSimilarTemplates))
		r.Post("/{templateId}/import/{workspaceId}", wrap(h.ImportTemplate))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, errors.CodeNotFound, "route not found", map[string]any{"path": r.URL.Path})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpkit.WriteErr(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})

	return r
}
