package catalog

import (
	"fmt"
	"net/url"
	"strings"

	"stencil/internal/pkg/errors"
)

// CatalogURL builds a request URL for the catalog service with standard
// encoding: every segment is path-escaped and query is form-encoded.
func CatalogURL(baseURL string, query url.Values, segments ...string) (*url.URL, error) {
	base, err := parseAbsolute(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeValidation, "catalog.url", "invalid catalog base url").
			WithField("field", "catalog.base_url")
	}

	escaped := make([]string, 0, len(segments))
	for _, s := range segments {
		if s == "" || s == "." || s == ".." {
			return nil, errors.ValidationField("path", fmt.Sprintf("invalid path segment %q", s))
		}
		escaped = append(escaped, url.PathEscape(s))
	}

	if base.Path == "" {
		base.Path = "/"
	}
	u := base.JoinPath(escaped...)
	u.RawQuery = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	u.Fragment = ""
	return u, nil
}

// PayloadURL builds a request target for a template's data payload.
//
// raw is already percent-encoded and is sent exactly as given. The escaped
// path is kept in RawPath so EscapedPath returns it unchanged; a path that
// net/http would re-encode goes into Opaque instead. Any fragment is dropped.
func PayloadURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, errors.InvalidPayloadURL(raw, fmt.Errorf("empty url"))
	}
	if strings.ContainsAny(raw, " \t\r\n") {
		return nil, errors.InvalidPayloadURL(raw, fmt.Errorf("url contains whitespace"))
	}

	u, err := parseAbsolute(raw)
	if err != nil {
		return nil, errors.InvalidPayloadURL(raw, err)
	}

	// Everything after "scheme://authority" up to the query or fragment.
	rest := raw[strings.Index(raw, "://")+3:]
	path := ""
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		path = rest[i:]
	}
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	u.Fragment = ""
	u.RawFragment = ""
	if path == "" {
		return u, nil
	}

	u.RawPath = path
	if u.EscapedPath() == path {
		return u, nil
	}

	// Opaque is written verbatim unless it starts with "//", which
	// RequestURI turns into an absolute-form target.
	if strings.HasPrefix(path, "//") {
		return nil, errors.InvalidPayloadURL(raw, fmt.Errorf("path cannot be sent unchanged"))
	}
	return &url.URL{
		Scheme:   u.Scheme,
		User:     u.User,
		Host:     u.Host,
		Opaque:     path,
		RawQuery:   u.RawQuery,
		ForceQuery: u.ForceQuery,
	}, nil
}

// PayloadString renders a URL built by PayloadURL back to its original form.
func PayloadString(u *url.URL) string {
	if u.Opaque == "" {
		return u.String()
	}
	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")
	if u.User != nil {
		b.WriteString(u.User.String())
		b.WriteString("@")
	}
	b.WriteString(u.Host)
	b.WriteString(u.Opaque)
	if u.ForceQuery || u.RawQuery != "" {
		b.WriteString("?")
		b.WriteString(u.RawQuery)
	}
	return b.String()
}

func parseAbsolute(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Opaque != "" || u.Host == "" {
		return nil, fmt.Errorf("url has no host")
	}
	return u, nil
}
