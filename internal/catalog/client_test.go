package catalog

import (
	"context"
	"io"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stencil/internal/pkg/errors"
)

type staticVersion string

func (v staticVersion) ReleasedVersion() string { return string(v) }

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, staticVersion("v1.9.2")), srv
}

func TestListActiveTemplates(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/api/v1/app-templates" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("version"); got != "v1.9.2" {
			t.Errorf("expected version=v1.9.2, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			{"id":"t3","title":"Third","appDataUrl":"https://cdn.example/t3.json"},
			{"id":"t1","title":"First","screenshotUrls":["a.png"]},
			{"id":"t2","title":"Second","pages":[{"name":"Home","isDefault":true}]}
		]`)
	})

	stream, err := c.ListActiveTemplates(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	templates, err := stream.Collect()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(templates) != 3 {
		t.Fatalf("expected 3 templates, got %d", len(templates))
	}
	for i, id := range []string{"t3", "t1", "t2"} {
		if templates[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, templates[i].ID)
		}
	}
	if templates[2].Pages[0].Name != "Home" || !templates[2].Pages[0].IsDefault {
		t.Errorf("expected pages to decode, got %+v", templates[2].Pages)
	}
}

func TestListSimilarTemplates(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/api/v1/app-templates/t%201/similar" {
			t.Errorf("unexpected path %s", r.URL.EscapedPath())
		}
		if got := r.URL.Query().Get("version"); got != "v1.9.2" {
			t.Errorf("expected version=v1.9.2, got %q", got)
		}
		// newline-delimited objects are accepted as well as arrays
		io.WriteString(w, "{\"id\":\"s1\"}\n{\"id\":\"s2\"}\n")
	})

	stream, err := c.ListSimilarTemplates(context.Background(), "t 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	templates, err := stream.Collect()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(templates) != 2 || templates[0].ID != "s1" || templates[1].ID != "s2" {
		t.Errorf("unexpected templates: %+v", templates)
	}
}

func TestListEmptyBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	stream, err := c.ListActiveTemplates(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	templates, err := stream.Collect()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(templates) != 0 {
		t.Errorf("expected no templates, got %d", len(templates))
	}
}

func TestStreamDeliversBeforeResponseCompletes(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id":"t1"},`)
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		io.WriteString(w, `{"id":"t2"}]`)
	})

	stream, err := c.ListActiveTemplates(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	next, stop := iter.Pull2(stream.All())
	defer stop()

	first, err, ok := next()
	if !ok || err != nil || first.ID != "t1" {
		t.Fatalf("expected t1 before the response completed, got %+v err=%v ok=%v", first, err, ok)
	}

	close(release)

	second, err, ok := next()
	if !ok || err != nil || second.ID != "t2" {
		t.Fatalf("expected t2, got %+v err=%v ok=%v", second, err, ok)
	}
	if _, _, ok := next(); ok {
		t.Error("expected stream to end after two templates")
	}
}

func TestStreamIsSingleUse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id":"t1"}]`)
	})

	stream, err := c.ListActiveTemplates(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := stream.Collect(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = stream.Collect()
	if err != ErrStreamConsumed {
		t.Errorf("expected ErrStreamConsumed, got %v", err)
	}
}

func TestStreamCancellation(t *testing.T) {
	handlerDone := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		defer close(handlerDone)
		io.WriteString(w, `[{"id":"t1"},`)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := c.ListActiveTemplates(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	next, stop := iter.Pull2(stream.All())
	defer stop()

	if first, err, _ := next(); err != nil || first.ID != "t1" {
		t.Fatalf("expected t1, got %+v err=%v", first, err)
	}

	cancel()

	_, err, ok := next()
	if !ok || !errors.IsTransport(err) {
		t.Fatalf("expected transport error after cancel, got err=%v ok=%v", err, ok)
	}

	select {
	case <-handlerDone:
	case <-time.After(5 * time.Second):
		t.Fatal("server connection was not released after cancel")
	}
}

func TestStreamMalformedElement(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id":"t1"},{"id":`)
	})

	stream, err := c.ListActiveTemplates(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var ids []string
	var streamErr error
	for tpl, err := range stream.All() {
		if err != nil {
			streamErr = err
			break
		}
		ids = append(ids, tpl.ID)
	}

	if len(ids) != 1 || ids[0] != "t1" {
		t.Errorf("expected t1 before the error, got %v", ids)
	}
	if !errors.IsTransport(streamErr) {
		t.Errorf("expected transport error, got %v", streamErr)
	}
}

func TestErrorStatusesAcrossOperations(t *testing.T) {
	statuses := []int{400, 401, 404, 429, 500, 502, 503}

	ops := map[string]func(*Client) error{
		"list active": func(c *Client) error {
			_, err := c.ListActiveTemplates(context.Background())
			return err
		},
		"list similar": func(c *Client) error {
			_, err := c.ListSimilarTemplates(context.Background(), "t1")
			return err
		},
		"details": func(c *Client) error {
			_, err := c.GetTemplateDetails(context.Background(), "t1")
			return err
		},
	}

	for name, op := range ops {
		for _, status := range statuses {
			t.Run(name+"/"+http.StatusText(status), func(t *testing.T) {
				c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(status)
					io.WriteString(w, `{"message":"nope"}`)
				})

				err := op(c)
				if !errors.IsCatalogService(err) {
					t.Fatalf("expected catalog service error, got %v", err)
				}
				got, ok := errors.StatusOf(err)
				if !ok || got != status {
					t.Errorf("expected status %d, got %d", status, got)
				}
			})
		}
	}
}

func TestNonErrorNonOKStatuses(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "redirect is not followed",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/elsewhere" {
					io.WriteString(w, `{"id":"t1"}`)
					return
				}
				http.Redirect(w, r, "/elsewhere", http.StatusFound)
			},
		},
		{
			name: "no content",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			},
		},
		{
			name: "accepted",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusAccepted)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, tt.handler)

			_, err := c.GetTemplateDetails(context.Background(), "t1")
			if !errors.IsTransport(err) {
				t.Fatalf("expected transport error, got %v", err)
			}
			if errors.IsCatalogService(err) {
				t.Error("non-error status must not be a catalog service error")
			}
		})
	}
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewClient(base, staticVersion("v1"))

	_, err := c.GetTemplateDetails(context.Background(), "t1")
	if !errors.IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}

	_, err = c.ListActiveTemplates(context.Background())
	if !errors.IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestGetTemplateDetails(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/app-templates/t1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.RawQuery != "" {
			t.Errorf("expected no query on details, got %s", r.URL.RawQuery)
		}
		io.WriteString(w, `{"id":"t1","title":"Support desk","appDataUrl":"https://cdn.example/t1.json%20v2","minVersion":"v1.9"}`)
	})

	summary, err := c.GetTemplateDetails(context.Background(), "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.ID != "t1" || summary.Title != "Support desk" {
		t.Errorf("unexpected summary %+v", summary)
	}
	if summary.AppDataURL != "https://cdn.example/t1.json%20v2" {
		t.Errorf("appDataUrl must be kept verbatim, got %s", summary.AppDataURL)
	}
}

func TestGetTemplateDetailsEmpty(t *testing.T) {
	bodies := map[string]string{
		"empty body":    "",
		"null":          "null",
		"no identifier": `{"title":"orphan"}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, body)
			})

			summary, err := c.GetTemplateDetails(context.Background(), "missing")
			if summary != nil {
				t.Errorf("expected nil summary, got %+v", summary)
			}
			if !errors.IsCode(err, errors.CodeTemplateNotFound) {
				t.Fatalf("expected template not found, got %v", err)
			}
			if errors.GetFields(err)["template_id"] != "missing" {
				t.Errorf("expected template_id field, got %v", errors.GetFields(err))
			}
		})
	}
}

func TestGetTemplateDetailsMalformed(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":`)
	})

	_, err := c.GetTemplateDetails(context.Background(), "t1")
	if !errors.IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestGetTemplateDetailsRejectsBlankID(t *testing.T) {
	c := NewClient("https://cs.example.com", staticVersion("v1"))

	_, err := c.GetTemplateDetails(context.Background(), "")
	if !errors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFetchDefinitionDocumentExactTarget(t *testing.T) {
	targets := []string{
		"/t1.json%20v2",
		"/files/a%2Fb%7E%41.json?sig=a%2Bb%3D&x=1+2",
		"/caf%C3%A9/%25done.json",
		"//bucket/t1.json%20v2",
	}

	for _, target := range targets {
		t.Run(target, func(t *testing.T) {
			var gotURI, gotAccept string
			_, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				gotURI = r.RequestURI
				gotAccept = r.Header.Get("Accept")
				io.WriteString(w, `{"updatedAt":"2024-01-01T00:00:00Z"}`)
			})
			c := NewClient("https://unused.example", staticVersion("v1"))

			u, err := PayloadURL(srv.URL + target)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			doc, err := c.FetchDefinitionDocument(context.Background(), u)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if gotURI != target {
				t.Errorf("expected request target %s, got %s", target, gotURI)
			}
			if gotAccept != "application/json" {
				t.Errorf("expected Accept application/json, got %q", gotAccept)
			}
			want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			if !doc.UpdatedAt.Equal(want) {
				t.Errorf("expected updatedAt %s, got %s", want, doc.UpdatedAt)
			}
		})
	}
}

func TestFetchDefinitionDocumentParseErrors(t *testing.T) {
	bodies := map[string]string{
		"invalid json":    `{"pageList": [`,
		"bad instant":     `{"updatedAt":"not-a-date"}`,
		"epoch instant":   `{"updatedAt":1704067200000}`,
		"empty":           ``,
		"null":            `null`,
		"html error page": `<html>oops</html>`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			_, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, body)
			})
			c := NewClient("https://unused.example", nil)

			u, _ := PayloadURL(srv.URL + "/doc.json")
			doc, err := c.FetchDefinitionDocument(context.Background(), u)
			if doc != nil {
				t.Errorf("expected no document, got %+v", doc)
			}
			if !errors.IsCode(err, errors.CodeDocumentParse) {
				t.Fatalf("expected document parse error, got %v", err)
			}
			if !strings.HasSuffix(errors.GetFields(err)["url"].(string), "/doc.json") {
				t.Errorf("expected url field, got %v", errors.GetFields(err))
			}
		})
	}
}

func TestFetchDefinitionDocumentErrorStatus(t *testing.T) {
	_, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	c := NewClient("https://unused.example", nil)

	u, _ := PayloadURL(srv.URL + "/missing.json")
	_, err := c.FetchDefinitionDocument(context.Background(), u)
	if !errors.IsCatalogService(err) {
		t.Fatalf("expected catalog service error, got %v", err)
	}
	if status, _ := errors.StatusOf(err); status != 404 {
		t.Errorf("expected status 404, got %d", status)
	}
}

func TestListingWithoutVersionSource(t *testing.T) {
	c := NewClient("https://cs.example.com", nil)
	if q := c.versionQuery(); len(q) != 0 {
		t.Errorf("expected empty query without a version source, got %v", q)
	}
}

func TestListSkipsNullElements(t *testing.T) {
	bodies := map[string]string{
		"array":  `[null,{"id":"t1"},null,{"id":"t2"}]`,
		"ndjson": "null\n{\"id\":\"t1\"}\nnull\n{\"id\":\"t2\"}\n",
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, body)
			})

			stream, err := c.ListActiveTemplates(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			templates, err := stream.Collect()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(templates) != 2 || templates[0].ID != "t1" || templates[1].ID != "t2" {
				t.Errorf("expected t1 and t2, got %+v", templates)
			}
		})
	}
}

func TestClientOptions(t *testing.T) {
	custom := &http.Client{Timeout: time.Minute}

	tests := []struct {
		name    string
		opts    []Option
		timeout time.Duration
	}{
		{"default", nil, 0},
		{"timeout only", []Option{WithTimeout(5 * time.Second)}, 5 * time.Second},
		{"timeout before client", []Option{WithTimeout(5 * time.Second), WithHTTPClient(custom)}, 5 * time.Second},
		{"timeout after client", []Option{WithHTTPClient(custom), WithTimeout(5 * time.Second)}, 5 * time.Second},
		{"client keeps its timeout", []Option{WithHTTPClient(custom)}, time.Minute},
		{"nil client ignored", []Option{WithHTTPClient(nil), WithTimeout(time.Second)}, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient("https://cs.example.com", nil, tt.opts...)
			if c.httpClient == nil {
				t.Fatal("expected an http client")
			}
			if c.httpClient == custom {
				t.Error("expected the supplied client to be copied")
			}
			if c.httpClient.Timeout != tt.timeout {
				t.Errorf("expected timeout %s, got %s", tt.timeout, c.httpClient.Timeout)
			}
			if c.httpClient.CheckRedirect == nil {
				t.Error("expected redirects to be disabled")
			}
		})
	}

	if custom.CheckRedirect != nil {
		t.Error("expected the supplied client to be left untouched")
	}
}
