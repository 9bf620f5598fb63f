// Package router wraps chi with route introspection.
package router

import (
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/openhis/slotkit/internal/web/middleware"
)

// RouteInfo describes a registered route.
type RouteInfo struct {
	Method     string   `json:"method"`
	Pattern    string   `json:"pattern"`
	Name       string   `json:"name,omitempty"`
	Parameters []string `json:"parameters,omitempty"`
}

// Route is returned by the registration methods so callers can name it.
type Route struct {
	info *RouteInfo
	mu   *sync.RWMutex
}

// Named sets the route name.
func (r *Route) Named(name string) *Route {
	r.mu.Lock()
	r.info.Name = name
	r.mu.Unlock()
	return r
}

// Router manages HTTP routing using chi. Middleware must be added before the
// first route.
type Router struct {
	mux chi.Router

	mu     sync.RWMutex
	routes []*RouteInfo
}

// NewRouter creates a router.
func NewRouter() *Router {
	return &Router{mux: chi.NewRouter()}
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Use adds middleware to every route.
func (r *Router) Use(middlewares ...middleware.Middleware) {
	for _, m := range middlewares {
		r.mux.Use(m)
	}
}

// Get registers a GET route.
func (r *Router) Get(pattern string, handler http.HandlerFunc) *Route {
	r.mux.Get(pattern, handler)
	return r.record(http.MethodGet, pattern)
}

// Post registers a POST route.
func (r *Router) Post(pattern string, handler http.HandlerFunc) *Route {
	r.mux.Post(pattern, handler)
	return r.record(http.MethodPost, pattern)
}

// Handle registers handler for every method.
func (r *Router) Handle(pattern string, handler http.Handler) *Route {
	r.mux.Handle(pattern, handler)
	return r.record("*", pattern)
}

// NotFound sets the handler for unmatched paths.
func (r *Router) NotFound(handler http.HandlerFunc) {
	r.mux.NotFound(handler)
}

// MethodNotAllowed sets the handler for unmatched methods.
func (r *Router) MethodNotAllowed(handler http.HandlerFunc) {
	r.mux.MethodNotAllowed(handler)
}

func (r *Router) record(method, pattern string) *Route {
	info := &RouteInfo{
		Method:     method,
		Pattern:    pattern,
		Parameters: extractParameters(pattern),
	}
	r.mu.Lock()
	r.routes = append(r.routes, info)
	r.mu.Unlock()
	return &Route{info: info, mu: &r.mu}
}

// Routes returns the registered routes sorted by pattern, then method.
func (r *Router) Routes() []RouteInfo {
	r.mu.RLock()
	out := make([]RouteInfo, 0, len(r.routes))
	for _, info := range r.routes {
		out = append(out, *info)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Pattern != out[j].Pattern {
			return out[i].Pattern < out[j].Pattern
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// URL returns the path of the named route with params substituted in
// pattern order. Trailing wildcards are dropped.
func (r *Router) URL(name string, params ...string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, info := range r.routes {
		if info.Name != name {
			continue
		}
		path := strings.TrimSuffix(info.Pattern, "/*")
		for i, p := range info.Parameters {
			if i >= len(params) {
				return "", false
			}
			path = strings.Replace(path, "{"+p+"}", params[i], 1)
		}
		return path, true
	}
	return "", false
}

func extractParameters(pattern string) []string {
	var params []string
	for _, part := range strings.Split(pattern, "/") {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			name := strings.Trim(part, "{}")
			if i := strings.IndexByte(name, ':'); i >= 0 {
				name = name[:i]
			}
			params = append(params, name)
		}
	}
	return params
}
