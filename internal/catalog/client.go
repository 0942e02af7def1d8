// Package catalog talks to the remote template catalog ("cloud services"):
// it lists templates, looks up a single template and downloads the
// definition document a template points at.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stencil/internal/contracts/appjson"
	"stencil/internal/models"
	"stencil/internal/pkg/errors"
	"stencil/internal/ports"
)

const (
	opListActive  = "catalog.list_active"
	opListSimilar = "catalog.list_similar"
	opDetails     = "catalog.details"
	opDocument    = "catalog.document"

	mediaTypeJSON = "application/json"
)

// Client is a client for the template catalog. It holds no per-call state
// and is safe for concurrent use.
type Client struct {
	baseURL    string
	version    ports.VersionSource
	httpClient *http.Client
	timeout    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its redirect policy is
// overridden so that redirects reach response classification. A nil client
// is ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc == nil {
			return
		}
		clone := *hc
		c.httpClient = &clone
	}
}

// WithTimeout bounds every request, body included, on whichever HTTP client
// the Client ends up with. Zero keeps that client's own timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient creates a catalog client for baseURL, sending the version
// reported by version on listing calls.
func NewClient(baseURL string, version ports.VersionSource, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		version:    version,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		c.httpClient.Timeout = c.timeout
	}
	c.httpClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return c
}

// BaseURL returns the catalog base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListActiveTemplates streams the templates the catalog offers for the
// released version.
func (c *Client) ListActiveTemplates(ctx context.Context) (*TemplateStream, error) {
	u, err := CatalogURL(c.baseURL, c.versionQuery(), "api", "v1", "app-templates")
	if err != nil {
		return nil, err
	}
	return c.stream(ctx, opListActive, u)
}

// ListSimilarTemplates streams templates the catalog recommends alongside templateID.
func (c *Client) ListSimilarTemplates(ctx context.Context, templateID string) (*TemplateStream, error) {
	u, err := CatalogURL(c.baseURL, c.versionQuery(), "api", "v1", "app-templates", templateID, "similar")
	if err != nil {
		return nil, err
	}
	return c.stream(ctx, opListSimilar, u)
}

// GetTemplateDetails fetches one template. An empty answer from the catalog
// is reported as a TEMPLATE_NOT_FOUND error, never as a nil summary.
func (c *Client) GetTemplateDetails(ctx context.Context, templateID string) (*models.TemplateSummary, error) {
	u, err := CatalogURL(c.baseURL, nil, "api", "v1", "app-templates", templateID)
	if err != nil {
		return nil, err
	}

	body, err := c.fetch(ctx, opDetails, u)
	if err != nil {
		return nil, err
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, errors.TemplateNotFound(templateID)
	}

	var summary models.TemplateSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		return nil, errors.Transport(opDetails, err)
	}
	if summary.ID == "" {
		return nil, errors.TemplateNotFound(templateID)
	}
	return &summary, nil
}

// FetchDefinitionDocument downloads and decodes the definition document at
// payloadURL. Build payloadURL with PayloadURL so its encoding is preserved.
func (c *Client) FetchDefinitionDocument(ctx context.Context, payloadURL *url.URL) (*appjson.Document, error) {
	body, err := c.fetch(ctx, opDocument, payloadURL)
	if err != nil {
		return nil, err
	}

	doc, err := appjson.Decode(body)
	if err != nil {
		return nil, errors.DocumentParse(err).WithField("url", PayloadString(payloadURL))
	}
	return doc, nil
}

func (c *Client) versionQuery() url.Values {
	q := url.Values{}
	if c.version != nil {
		q.Set("version", c.version.ReleasedVersion())
	}
	return q
}

func (c *Client) stream(ctx context.Context, op string, u *url.URL) (*TemplateStream, error) {
	resp, err := c.exchange(ctx, op, u)
	if err != nil {
		return nil, err
	}
	return newTemplateStream(op, resp.Body), nil
}

// fetch performs a request and reads the whole successful body.
func (c *Client) fetch(ctx context.Context, op string, u *url.URL) ([]byte, error) {
	resp, err := c.exchange(ctx, op, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Transport(op, err)
	}
	return body, nil
}

// exchange sends a GET and classifies the response before anything reads
// the body. Only a success is returned with its body open.
func (c *Client) exchange(ctx context.Context, op string, u *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "", nil)
	if err != nil {
		return nil, errors.Transport(op, err)
	}
	req.URL = u
	req.Host = u.Host
	req.Header.Set("Accept", mediaTypeJSON)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Transport(op, err)
	}

	out := classify(resp)
	switch out.kind {
	case outcomeSuccess:
		return resp, nil
	case outcomeServiceError:
		discard(resp.Body)
		return nil, errors.CatalogService(op, out.status)
	default:
		discard(resp.Body)
		return nil, errors.UnexpectedStatus(op, out.status, out.detail)
	}
}

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeServiceError
	outcomeUnexpected
)

// outcome is the classified form of a catalog response.
type outcome struct {
	kind   outcomeKind
	status int
	detail string
}

func classify(resp *http.Response) outcome {
	switch {
	case resp.StatusCode == http.StatusOK:
		return outcome{kind: outcomeSuccess, status: resp.StatusCode}
	case resp.StatusCode >= 400 && resp.StatusCode < 600:
		return outcome{kind: outcomeServiceError, status: resp.StatusCode}
	default:
		detail := resp.Status
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return outcome{kind: outcomeUnexpected, status: resp.StatusCode, detail: detail}
	}
}

func discard(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}
