// Package errors provides the coded error values used across stencil.
// Every failure that crosses a package boundary carries a Code so callers
// (the HTTP layer, the worker) can tell catalog, transport and parse
// failures apart without string matching.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// Code categorizes an Error.
type Code string

// Generic codes.
const (
	CodeInternal    Code = "INTERNAL_ERROR"
	CodeValidation  Code = "VALIDATION_ERROR"
	CodeNotFound    Code = "NOT_FOUND"
	CodeConflict    Code = "CONFLICT"
	CodeUnavailable Code = "UNAVAILABLE"
)

// Template catalog codes.
const (
	// CodeCatalogService means the catalog answered with a 4xx/5xx status.
	CodeCatalogService Code = "CATALOG_SERVICE_ERROR"
	// CodeTransport covers connectivity failures and unexpected non-error statuses.
	CodeTransport Code = "TRANSPORT_ERROR"
	// CodeTemplateNotFound means the catalog returned no data for a template.
	CodeTemplateNotFound Code = "TEMPLATE_NOT_FOUND"
	// CodeInvalidPayloadURL means a template's appDataUrl is not a usable absolute URL.
	CodeInvalidPayloadURL Code = "INVALID_PAYLOAD_URL"
	// CodeDocumentParse means a definition document could not be decoded.
	CodeDocumentParse Code = "DOCUMENT_PARSE_ERROR"
)

// Upstream catalog and payload failures surface as 502 at the API edge.
var statusByCode = map[Code]int{
	CodeValidation:        http.StatusBadRequest,
	CodeNotFound:          http.StatusNotFound,
	CodeTemplateNotFound:  http.StatusNotFound,
	CodeConflict:          http.StatusConflict,
	CodeUnavailable:       http.StatusServiceUnavailable,
	CodeCatalogService:    http.StatusBadGateway,
	CodeTransport:         http.StatusBadGateway,
	CodeInvalidPayloadURL: http.StatusBadGateway,
	CodeDocumentParse:     http.StatusBadGateway,
}

const maxStackDepth = 16

// Error is a coded error with optional operation, cause and context fields.
type Error struct {
	Code    Code
	Message string
	// Op is the operation that failed, e.g. "catalog.details".
	Op     string
	Err    error
	Fields map[string]any
	// Stack holds the program counters of the creating call site.
	Stack []uintptr
}

func build(code Code, op, message string, cause error) *Error {
	var pcs [maxStackDepth]uintptr
	// Skip runtime.Callers, build and the exported constructor.
	n := runtime.Callers(3, pcs[:])
	return &Error{Code: code, Op: op, Message: message, Err: cause, Stack: pcs[:n:n]}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		fmt.Fprintf(&b, "%s: ", e.Op)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, "[%s] ", e.Code)
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// WithField records a context field. Fields are returned to API clients as
// error details.
func (e *Error) WithField(key string, value any) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]any, 1)
	}
	e.Fields[key] = value
	return e
}

// HTTPStatus returns the status an API edge should answer with.
func (e *Error) HTTPStatus() int {
	if status, ok := statusByCode[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// StackTrace renders Stack one frame per line, runtime frames omitted.
func (e *Error) StackTrace() string {
	if len(e.Stack) == 0 {
		return ""
	}
	var b strings.Builder
	frames := runtime.CallersFrames(e.Stack)
	for {
		f, more := frames.Next()
		if !strings.HasPrefix(f.Function, "runtime.") {
			fmt.Fprintf(&b, "  %s:%d %s\n", f.File, f.Line, f.Function)
		}
		if !more {
			break
		}
	}
	return b.String()
}

// New creates an error with the given code and message.
func New(code Code, message string) *Error {
	return build(code, "", message, nil)
}

// Wrap wraps err with an operation and message. The code and fields of a
// wrapped *Error are kept; any other error becomes CodeInternal.
func Wrap(err error, op string, message string) *Error {
	if err == nil {
		return nil
	}
	e := build(CodeInternal, op, message, err)
	if inner, ok := lookup(err); ok {
		e.Code = inner.Code
		e.Fields = inner.Fields
	}
	return e
}

// WrapWithCode wraps err under code.
func WrapWithCode(err error, code Code, op string, message string) *Error {
	if err == nil {
		return nil
	}
	return build(code, op, message, err)
}

// Validation creates a validation error.
func Validation(message string) *Error {
	return build(CodeValidation, "", message, nil)
}

// ValidationField creates a validation error for a specific field.
func ValidationField(field string, message string) *Error {
	return build(CodeValidation, "", message, nil).WithField("field", field)
}

// Conflict creates a conflict error.
func Conflict(message string) *Error {
	return build(CodeConflict, "", message, nil)
}

// CatalogService reports an error status returned by the catalog.
func CatalogService(op string, status int) *Error {
	return build(CodeCatalogService, op, fmt.Sprintf("catalog service responded with status %d", status), nil).
		WithField("status", status)
}

// Transport reports a connectivity or protocol failure. cause may be nil.
func Transport(op string, cause error) *Error {
	return build(CodeTransport, op, "request to catalog failed", cause)
}

// UnexpectedStatus reports a status that is neither 200 nor an error status.
func UnexpectedStatus(op string, status int, statusText string) *Error {
	return build(CodeTransport, op, "unexpected response status "+statusText, nil).
		WithField("status", status)
}

// TemplateNotFound reports that the catalog has no data for templateID.
func TemplateNotFound(templateID string) *Error {
	return build(CodeTemplateNotFound, "", "template not found: "+templateID, nil).
		WithField("template_id", templateID)
}

// InvalidPayloadURL reports an unusable appDataUrl.
func InvalidPayloadURL(raw string, cause error) *Error {
	return build(CodeInvalidPayloadURL, "", "template data url is not a valid absolute http(s) url", cause).
		WithField("url", raw)
}

// DocumentParse reports a definition document that could not be decoded.
func DocumentParse(cause error) *Error {
	return build(CodeDocumentParse, "", "failed to parse application definition document", cause)
}

func lookup(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// GetCode returns the code of the first *Error in err's chain, or
// CodeInternal.
func GetCode(err error) Code {
	if e, ok := lookup(err); ok {
		return e.Code
	}
	return CodeInternal
}

// GetHTTPStatus returns the API status for err.
func GetHTTPStatus(err error) int {
	if e, ok := lookup(err); ok {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// GetFields returns the context fields of err, or nil.
func GetFields(err error) map[string]any {
	if e, ok := lookup(err); ok {
		return e.Fields
	}
	return nil
}

// StatusOf returns the upstream HTTP status recorded on err, if any.
func StatusOf(err error) (int, bool) {
	status, ok := GetFields(err)["status"].(int)
	return status, ok
}

// IsCode reports whether err carries code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

func IsValidation(err error) bool { return IsCode(err, CodeValidation) }

func IsCatalogService(err error) bool { return IsCode(err, CodeCatalogService) }

func IsTransport(err error) bool { return IsCode(err, CodeTransport) }

// As is errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is is errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
