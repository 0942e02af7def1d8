package catalog

import (
	"net/url"
	"testing"

	"stencil/internal/pkg/errors"
)

func TestCatalogURL(t *testing.T) {
	version := url.Values{"version": {"v1.9.2"}}

	tests := []struct {
		name     string
		base     string
		query    url.Values
		segments []string
		want     string
	}{
		{
			name:     "listing",
			base:     "https://cs.example.com",
			query:    version,
			segments: []string{"api", "v1", "app-templates"},
			want:     "https://cs.example.com/api/v1/app-templates?version=v1.9.2",
		},
		{
			name:     "base with prefix and trailing slash",
			base:     "https://cs.example.com/cloud/",
			segments: []string{"api", "v1", "app-templates", "t1"},
			want:     "https://cs.example.com/cloud/api/v1/app-templates/t1",
		},
		{
			name:     "template id is escaped",
			base:     "https://cs.example.com",
			segments: []string{"api", "v1", "app-templates", "a/b c", "similar"},
			want:     "https://cs.example.com/api/v1/app-templates/a%2Fb%20c/similar",
		},
		{
			name:     "query values are escaped",
			base:     "http://localhost:8090",
			query:    url.Values{"version": {"v1.9 beta&x"}},
			segments: []string{"api"},
			want:     "http://localhost:8090/api?version=v1.9+beta%26x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := CatalogURL(tt.base, tt.query, tt.segments...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := u.String(); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestCatalogURLInvalid(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		segments []string
	}{
		{"no scheme", "cs.example.com", []string{"api"}},
		{"ftp scheme", "ftp://cs.example.com", []string{"api"}},
		{"empty base", "", []string{"api"}},
		{"empty segment", "https://cs.example.com", []string{"api", ""}},
		{"dot-dot segment", "https://cs.example.com", []string{"api", ".."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CatalogURL(tt.base, nil, tt.segments...)
			if !errors.IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestPayloadURLPreservesEncoding(t *testing.T) {
	tests := []struct {
		raw        string
		host       string
		requestURI string
	}{
		{
			raw:        "https://cdn.example/t1.json%20v2",
			host:       "cdn.example",
			requestURI: "/t1.json%20v2",
		},
		{
			raw:        "https://cdn.example/files/a%2Fb%7E%41.json?sig=a%2Bb%3D&x=1+2",
			host:       "cdn.example",
			requestURI: "/files/a%2Fb%7E%41.json?sig=a%2Bb%3D&x=1+2",
		},
		{
			raw:        "http://127.0.0.1:8080/caf%C3%A9/%25done.json",
			host:       "127.0.0.1:8080",
			requestURI: "/caf%C3%A9/%25done.json",
		},
		{
			raw:        "https://cdn.example?token=%2F%2F",
			host:       "cdn.example",
			requestURI: "/?token=%2F%2F",
		},
		{
			raw:        "https://cdn.example//bucket/t1.json%20v2",
			host:       "cdn.example",
			requestURI: "//bucket/t1.json%20v2",
		},
		{
			raw:        "https://cdn.example/a|b.json?v=1",
			host:       "cdn.example",
			requestURI: "/a|b.json?v=1",
		},
		{
			raw:        "https://cdn.example/t.json?",
			host:       "cdn.example",
			requestURI: "/t.json?",
		},
		{
			raw:        "https://cdn.example/t.json#section",
			host:       "cdn.example",
			requestURI: "/t.json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			u, err := PayloadURL(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if u.Host != tt.host {
				t.Errorf("expected host %s, got %s", tt.host, u.Host)
			}
			if got := u.RequestURI(); got != tt.requestURI {
				t.Errorf("expected request uri %s, got %s", tt.requestURI, got)
			}
		})
	}
}

func TestPayloadString(t *testing.T) {
	inputs := []string{
		"https://cdn.example/t1.json%20v2?a=%2B",
		"https://cdn.example//bucket/t1.json",
		"https://cdn.example/a|b.json?v=1",
	}

	for _, raw := range inputs {
		u, err := PayloadURL(raw)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", raw, err)
		}
		if got := PayloadString(u); got != raw {
			t.Errorf("expected %s, got %s", raw, got)
		}
	}
}

func TestPayloadURLInvalid(t *testing.T) {
	inputs := []string{
		"",
		"/relative/path.json",
		"cdn.example/t1.json",
		"ftp://cdn.example/t1.json",
		"mailto:someone@example.com",
		"https:///no-host.json",
		"https://cdn.example/has space.json",
		"https://cdn.example/bad%zzescape.json",
		"https://cdn.example/t1.json\n",
		"https://cdn.example//a|b.json",
	}

	for _, raw := range inputs {
		t.Run(raw, func(t *testing.T) {
			_, err := PayloadURL(raw)
			if !errors.IsCode(err, errors.CodeInvalidPayloadURL) {
				t.Errorf("expected invalid payload url error, got %v", err)
			}
		})
	}
}
