package httpkit

import (
	"net/http"
	"strconv"
	"strings"
)

type CORSOptions struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAgeSeconds    int
}

// corsPolicy holds the header values computed once from CORSOptions.
type corsPolicy struct {
	anyOrigin bool
	origins   map[string]struct{}
	headers   http.Header
}

func newCORSPolicy(opt CORSOptions) *corsPolicy {
	p := &corsPolicy{origins: map[string]struct{}{}, headers: http.Header{}}

	for _, o := range opt.AllowedOrigins {
		switch o = strings.TrimSpace(o); o {
		case "":
		case "*":
			p.anyOrigin = true
		default:
			p.origins[o] = struct{}{}
		}
	}

	methods := opt.AllowedMethods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	headers := opt.AllowedHeaders
	if len(headers) == 0 {
		headers = []string{"Content-Type", "Authorization", "Accept"}
	}
	maxAge := opt.MaxAgeSeconds
	if maxAge == 0 {
		maxAge = 600
	}

	p.headers.Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))
	p.headers.Set("Access-Control-Allow-Headers", strings.Join(headers, ", "))
	p.headers.Set("Access-Control-Max-Age", strconv.Itoa(maxAge))
	if len(opt.ExposedHeaders) > 0 {
		p.headers.Set("Access-Control-Expose-Headers", strings.Join(opt.ExposedHeaders, ", "))
	}
	if opt.AllowCredentials {
		p.headers.Set("Access-Control-Allow-Credentials", "true")
	}
	return p
}

func (p *corsPolicy) allows(origin string) bool {
	if origin == "" {
		return false
	}
	if p.anyOrigin {
		return true
	}
	_, ok := p.origins[origin]
	return ok
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
}

// CORS decorates responses for allowed origins and answers preflight
// requests with 204. A plain OPTIONS request reaches the router. "*" in
// AllowedOrigins allows any origin; the request's origin is echoed back.
func CORS(opt CORSOptions) func(http.Handler) http.Handler {
	policy := newCORSPolicy(opt)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); policy.allows(origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				for k, v := range policy.headers {
					h[k] = append([]string(nil), v...)
				}
			}

			if isPreflight(r) {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
