package router

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// PathParam returns the named chi URL parameter.
func PathParam(req *http.Request, name string) string {
	return chi.URLParam(req, name)
}

// Wildcard returns the part of the path matched by a trailing "*".
func Wildcard(req *http.Request) string {
	return chi.URLParam(req, "*")
}

// QueryParam returns the query value of name, or defaultValue when absent.
func QueryParam(req *http.Request, name, defaultValue string) string {
	if v := req.URL.Query().Get(name); v != "" {
		return v
	}
	return defaultValue
}

// QueryInt returns the integer query value of name, or defaultValue when it
// is absent or malformed.
func QueryInt(req *http.Request, name string, defaultValue int) int {
	v := req.URL.Query().Get(name)
	if v == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return i
}
