// Package profiling serves the runtime pprof endpoints.
//
// The endpoints expose goroutine stacks and heap contents. The shell mounts
// them only when server.pprof is set, and they should stay behind a
// trusted network.
package profiling

import (
	"net/http"
	"net/http/pprof"
	"runtime"

	"github.com/go-chi/chi/v5"
)

// Config configures the endpoints.
type Config struct {
	// Path is the URL prefix, "/debug/pprof" by default.
	Path string
	// BlockRate is passed to runtime.SetBlockProfileRate when positive.
	BlockRate int
	// MutexFraction is passed to runtime.SetMutexProfileFraction when
	// positive.
	MutexFraction int
}

// DefaultConfig enables block and mutex sampling.
func DefaultConfig() Config {
	return Config{Path: "/debug/pprof", BlockRate: 1, MutexFraction: 1}
}

var profiles = []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"}

// Handler serves the pprof index and profiles under cfg.Path. Mount it for
// cfg.Path and everything below it.
func Handler(cfg Config) http.Handler {
	if cfg.Path == "" {
		cfg.Path = DefaultConfig().Path
	}
	if cfg.BlockRate > 0 {
		runtime.SetBlockProfileRate(cfg.BlockRate)
	}
	if cfg.MutexFraction > 0 {
		runtime.SetMutexProfileFraction(cfg.MutexFraction)
	}

	r := chi.NewRouter()
	r.Route(cfg.Path, func(r chi.Router) {
		r.Get("/", pprof.Index)
		r.Get("/cmdline", pprof.Cmdline)
		r.Get("/profile", pprof.Profile)
		r.Get("/symbol", pprof.Symbol)
		r.Post("/symbol", pprof.Symbol)
		r.Get("/trace", pprof.Trace)
		for _, name := range profiles {
			r.Handle("/"+name, pprof.Handler(name))
		}
	})
	return r
}
