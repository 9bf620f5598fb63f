// Package response writes JSON and HTML responses for the shell.
package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/openhis/slotkit/internal/extension"
	"github.com/openhis/slotkit/internal/resource"
	"github.com/openhis/slotkit/internal/web/cache"
)

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Error is an error with an HTTP status.
type Error struct {
	Status  int
	Kind    string
	Message string
	Err     error
}

// NewError creates an Error.
func NewError(status int, kind, message string) *Error {
	return &Error{Status: status, Kind: kind, Message: message}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound is a 404 error.
func NotFound(message string) *Error {
	if message == "" {
		message = "Resource not found"
	}
	return NewError(http.StatusNotFound, "not_found", message)
}

// BadRequest is a 400 error.
func BadRequest(message string) *Error {
	return NewError(http.StatusBadRequest, "bad_request", message)
}

// Unauthorized is a 401 error.
func Unauthorized(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return NewError(http.StatusUnauthorized, "unauthorized", message)
}

// FromError maps err to an HTTP error. Backend failures become 502,
// configuration problems 500.
func FromError(err error) *Error {
	var he *Error
	if errors.As(err, &he) {
		return he
	}

	var re *resource.Error
	if errors.As(err, &re) {
		switch re.Kind {
		case resource.KindNetwork:
			return &Error{Status: http.StatusBadGateway, Kind: "backend_unavailable", Message: "The backend could not be reached", Err: err}
		case resource.KindDecode:
			return &Error{Status: http.StatusBadGateway, Kind: "backend_response", Message: "The backend returned an unreadable response", Err: err}
		case resource.KindNotFound:
			return &Error{Status: http.StatusNotFound, Kind: "not_found", Message: "Resource not found", Err: err}
		}
	}

	if extension.IsConfigurationError(err) || resource.IsKind(err, resource.KindConfiguration) {
		return &Error{Status: http.StatusInternalServerError, Kind: "configuration", Message: "The application is misconfigured", Err: err}
	}
	return &Error{Status: http.StatusInternalServerError, Kind: "internal_server_error", Message: "An unexpected error occurred", Err: err}
}

// RenderError writes err as JSON. Wrapped causes are not exposed.
func RenderError(w http.ResponseWriter, err error) {
	he := FromError(err)
	JSON(w, he.Status, ErrorResponse{
		Error:   he.Kind,
		Message: he.Message,
		Code:    he.Status,
	})
}

// JSON writes v with status.
func JSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal Server Error"))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// HTML writes an HTML body with status.
func HTML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// ConditionalJSON writes v with an ETag, or 304 when the request already
// holds the same body.
func ConditionalJSON(w http.ResponseWriter, r *http.Request, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		JSON(w, http.StatusOK, v)
		return
	}
	conditional(w, r, "application/json; charset=utf-8", body)
}

// ConditionalHTML is ConditionalJSON for an HTML body.
func ConditionalHTML(w http.ResponseWriter, r *http.Request, body string) {
	conditional(w, r, "text/html; charset=utf-8", []byte(body))
}

func conditional(w http.ResponseWriter, r *http.Request, contentType string, body []byte) {
	w.Header().Set("Cache-Control", "no-cache")
	if cache.NotModified(w, r, cache.GenerateETag(body)) {
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// WantsJSON reports whether the client prefers JSON to HTML.
func WantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}
