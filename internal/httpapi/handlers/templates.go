package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"stencil/internal/catalog"
	"stencil/internal/httpkit"
	"stencil/internal/pkg/logger"
)

// ListTemplates streams the active catalog templates.
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) error {
	stream, err := h.catalog.ListActiveTemplates(r.Context())
	if err != nil {
		return err
	}
	return h.writeStream(w, r, stream)
}

// ListSimilarTemplates streams templates related to {templateId}.
func (h *Handler) ListSimilarTemplates(w http.ResponseWriter, r *http.Request) error {
	templateID := pathParam(r, "templateId")
	ctx := logger.ContextWithTemplate(r.Context(), templateID, "")

	stream, err := h.catalog.ListSimilarTemplates(ctx, templateID)
	if err != nil {
		return err
	}
	return h.writeStream(w, r.WithContext(ctx), stream)
}

// GetTemplate returns one template.
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) error {
	templateID := pathParam(r, "templateId")

	summary, err := h.catalog.GetTemplateDetails(r.Context(), templateID)
	if err != nil {
		return err
	}

	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"template": summary})
	return nil
}

// ImportTemplate imports {templateId} into {workspaceId}.
func (h *Handler) ImportTemplate(w http.ResponseWriter, r *http.Request) error {
	templateID := pathParam(r, "templateId")
	workspaceID := pathParam(r, "workspaceId")
	ctx := logger.ContextWithTemplate(r.Context(), templateID, workspaceID)

	app, err := h.importer.ImportFromTemplate(ctx, templateID, workspaceID)
	if err != nil {
		return err
	}

	h.log.FromContext(ctx).Info("template imported",
		"application_id", app.ID,
		"application_name", app.Name,
	)
	httpkit.WriteJSON(w, http.StatusCreated, map[string]any{"application": app})
	return nil
}

// writeStream writes {"templates":[...]} element by element. Errors before
// the first byte become a normal error response; later ones can only cut the
// body short, so they are logged and the connection is aborted.
func (h *Handler) writeStream(w http.ResponseWriter, r *http.Request, stream *catalog.TemplateStream) error {
	defer stream.Close()

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	started := false

	start := func() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"templates":[`))
		started = true
	}

	n := 0
	for summary, err := range stream.All() {
		if err != nil {
			if !started {
				return err
			}
			h.log.LogError(r.Context(), "template stream failed mid-response", err,
				"written", n,
			)
			panic(http.ErrAbortHandler)
		}

		if !started {
			start()
		} else {
			_, _ = w.Write([]byte(","))
		}
		if err := enc.Encode(summary); err != nil {
			return nil
		}
		n++
		if flusher != nil {
			flusher.Flush()
		}
	}

	if !started {
		start()
	}
	_, _ = w.Write([]byte("]}\n"))
	return nil
}

// pathParam returns a decoded route parameter. chi matches on the raw path
// when the request carries escapes, so "a%2Fb" arrives still encoded.
func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if decoded, err := url.PathUnescape(v); err == nil {
		return decoded
	}
	return v
}
