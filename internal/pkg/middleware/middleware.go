// Package middleware provides HTTP middleware for the stencil API.
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"stencil/internal/httpkit"
	"stencil/internal/pkg/errors"
	"stencil/internal/pkg/logger"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLen = 64

// statusRecorder remembers what has been sent so far. Listings are streamed,
// so "headers sent" and "flushed" matter to the middleware after next returns.
type statusRecorder struct {
	http.ResponseWriter
	status   int
	bytes    int
	sent     bool
	streamed bool
}

func record(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.sent {
		return
	}
	s.status, s.sent = code, true
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.WriteHeader(http.StatusOK)
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

// Flush pushes buffered listing elements to the client.
func (s *statusRecorder) Flush() {
	f, ok := s.ResponseWriter.(http.Flusher)
	if !ok {
		return
	}
	s.WriteHeader(http.StatusOK)
	s.streamed = true
	f.Flush()
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// RequestID tags the request with an ID. A caller-supplied ID is kept only
// when it is short and made of safe characters; anything else is replaced.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.ContextWithRequestID(r.Context(), id)))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

// Logging writes one record per request once the handler returns. The level
// follows the status: 5xx error, 4xx warn, everything else info.
func Logging(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := record(w)

			next.ServeHTTP(rec, r)

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"bytes", rec.bytes,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if route := routePattern(r); route != "" {
				attrs = append(attrs, "route", route)
			}
			if rec.streamed {
				attrs = append(attrs, "streamed", true)
			}

			reqLog := log.FromContext(r.Context())
			switch {
			case rec.status >= 500:
				reqLog.Error("request completed", attrs...)
			case rec.status >= 400:
				reqLog.Warn("request completed", attrs...)
			default:
				reqLog.Info("request completed", attrs...)
			}
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

// Recovery turns a handler panic into a 500 envelope. If the response has
// already started, the envelope can no longer be sent and the connection is
// aborted instead. http.ErrAbortHandler passes through untouched.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := record(w)
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}

				log.FromContext(r.Context()).Error("panic recovered",
					"panic", v,
					"stack", string(debug.Stack()),
					"method", r.Method,
					"path", r.URL.Path,
					"response_started", rec.sent,
				)

				if rec.sent {
					panic(http.ErrAbortHandler)
				}
				WriteErrorResponse(rec, errors.CodeInternal, "internal server error", nil)
			}()

			next.ServeHTTP(rec, r)
		})
	}
}

// ErrorHandlerFunc is a handler that reports failures by returning them.
type ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request) error

// WrapHandler adapts fn to http.HandlerFunc, answering returned errors with
// HandleError.
func WrapHandler(log *logger.Logger, fn ErrorHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			HandleError(w, r, log, err)
		}
	}
}

// HandleError logs err and writes its envelope. Error fields are logged with
// a "detail_" prefix and returned as the envelope details.
func HandleError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	code := errors.GetCode(err)
	status := errors.GetHTTPStatus(err)
	fields := errors.GetFields(err)

	message := err.Error()
	var appErr *errors.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	attrs := make([]any, 0, 10+2*len(fields))
	attrs = append(attrs, "error", err.Error(), "code", string(code), "status", status, "method", r.Method, "path", r.URL.Path)
	for k, v := range fields {
		attrs = append(attrs, "detail_"+k, v)
	}

	reqLog := log.FromContext(r.Context())
	if status >= 500 {
		if appErr != nil && len(appErr.Stack) > 0 {
			attrs = append(attrs, "stack", appErr.StackTrace())
		}
		reqLog.Error("request failed", attrs...)
	} else {
		reqLog.Warn("request rejected", attrs...)
	}

	WriteErrorResponse(w, code, message, fields)
}

// WriteErrorResponse writes the error envelope with the status of code.
func WriteErrorResponse(w http.ResponseWriter, code errors.Code, message string, details map[string]any) {
	httpkit.WriteErr(w, (&errors.Error{Code: code}).HTTPStatus(), string(code), message, details)
}
