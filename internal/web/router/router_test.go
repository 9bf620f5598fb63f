package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_Methods(t *testing.T) {
	r := NewRouter()
	r.Get("/items", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("get")) })
	r.Post("/items", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("post")) })

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(method, "/items", nil))
		assert.Equal(t, http.StatusOK, rec.Code, method)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/items", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_Middleware(t *testing.T) {
	r := NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("X-Seen", "yes")
			next.ServeHTTP(w, req)
		})
	})
	r.Get("/", func(http.ResponseWriter, *http.Request) {})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "yes", rec.Header().Get("X-Seen"))
}

func TestRouter_Params(t *testing.T) {
	r := NewRouter()
	var slot, name, rest string
	var page int
	r.Get("/slots/{slot}/{name}", func(_ http.ResponseWriter, req *http.Request) {
		slot = PathParam(req, "slot")
		name = PathParam(req, "name")
		page = QueryInt(req, "page", 1)
	})
	r.Get("/spa/*", func(_ http.ResponseWriter, req *http.Request) {
		rest = Wildcard(req)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/slots/left-panel/pharmacy?page=x", nil))
	assert.Equal(t, "left-panel", slot)
	assert.Equal(t, "pharmacy", name)
	assert.Equal(t, 1, page)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/spa/home/visits", nil))
	assert.Equal(t, "home/visits", rest)
}

func TestRouter_RoutesAndURL(t *testing.T) {
	r := NewRouter()
	r.Get("/slots/{slot}/{name}", func(http.ResponseWriter, *http.Request) {}).Named("extension")
	r.Get("/healthz", func(http.ResponseWriter, *http.Request) {})
	r.Post("/healthz", func(http.ResponseWriter, *http.Request) {})

	routes := r.Routes()
	require.Len(t, routes, 3)
	assert.Equal(t, "/healthz", routes[0].Pattern)
	assert.Equal(t, http.MethodGet, routes[0].Method)
	assert.Equal(t, []string{"slot", "name"}, routes[2].Parameters)

	u, ok := r.URL("extension", "left-panel", "home")
	require.True(t, ok)
	assert.Equal(t, "/slots/left-panel/home", u)

	_, ok = r.URL("extension", "left-panel")
	assert.False(t, ok)
	_, ok = r.URL("missing")
	assert.False(t, ok)
}

func TestQueryParam(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?q=doe", nil)
	assert.Equal(t, "doe", QueryParam(req, "q", ""))
	assert.Equal(t, "x", QueryParam(req, "missing", "x"))
}
