// Package shell is the host application. It serves the registered
// extensions as HTML fragments and pages, exposes the registry for
// diagnostics and streams resource updates over a websocket.
package shell

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openhis/slotkit/internal/extension"
	"github.com/openhis/slotkit/internal/resource"
	"github.com/openhis/slotkit/internal/swr"
	"github.com/openhis/slotkit/internal/web/auth"
	"github.com/openhis/slotkit/internal/web/middleware"
	"github.com/openhis/slotkit/internal/web/profiling"
	"github.com/openhis/slotkit/internal/web/ratelimit"
	"github.com/openhis/slotkit/internal/web/response"
	"github.com/openhis/slotkit/internal/web/router"
	"github.com/openhis/slotkit/internal/web/websocket"
)

// Config wires the shell to its collaborators.
type Config struct {
	Registry *extension.Registry
	Store    *swr.Store
	Client   *resource.Client
	Sessions *auth.SessionService
	Logger   *zap.Logger

	// SPABase is the path prefix of pages. Defaults to "/spa".
	SPABase string
	// Home is the dashboard path opened at SPABase. Defaults to "home".
	Home string
	// RenderTimeout bounds how long data-bound units wait for their data.
	RenderTimeout time.Duration
	// User is recorded in sessions issued without a prior session.
	User           string
	SecureCookies  bool
	AllowedOrigins []string

	// Limiter, when set, bounds location selections and websocket upgrades
	// per client address.
	Limiter ratelimit.Limiter
	// Profiling mounts the pprof endpoints under /debug/pprof.
	Profiling bool
}

func (c *Config) setDefaults() {
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.SPABase == "" {
		c.SPABase = "/spa"
	}
	c.SPABase = "/" + strings.Trim(c.SPABase, "/")
	if c.Home == "" {
		c.Home = "home"
	}
	if c.RenderTimeout <= 0 {
		c.RenderTimeout = 2 * time.Second
	}
	if c.User == "" {
		c.User = "anonymous"
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.Registry == nil {
		errs = append(errs, errors.New("registry is required"))
	}
	if c.Store == nil {
		errs = append(errs, errors.New("store is required"))
	}
	if c.Client == nil {
		errs = append(errs, errors.New("resource client is required"))
	}
	if c.Sessions == nil {
		errs = append(errs, errors.New("session service is required"))
	}
	return errors.Join(errs...)
}

// Shell serves the extension registry.
type Shell struct {
	cfg     Config
	router  *router.Router
	handler http.Handler
	hub     *websocket.Hub
	stream  *stream
	started time.Time
}

// New builds the shell. The websocket hub lives until ctx ends or Close is
// called.
func New(ctx context.Context, cfg Config) (*Shell, error) {
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger.Named("shell")

	s := &Shell{
		cfg:     cfg,
		router:  router.NewRouter(),
		stream:  newStream(cfg.Store, cfg.Client, logger),
		started: time.Now(),
	}
	s.hub = websocket.NewHub(ctx,
		websocket.WithLogger(logger.Named("ws")),
		websocket.WithRoomEmpty(s.stream.release),
	)
	websocket.RegisterDefaultHandlers(s.hub)
	s.stream.attach(s.hub)
	s.hub.Start()

	s.routes()
	s.handler = middleware.NewChain(
		middleware.RequestID(),
		middleware.Recovery(logger),
		middleware.Logging(logger, "/healthz"),
		middleware.Session(cfg.Sessions, logger),
	).Then(s.router)

	return s, nil
}

// Handler returns the root handler with middleware applied.
func (s *Shell) Handler() http.Handler { return s.handler }

// Routes lists the registered routes.
func (s *Shell) Routes() []router.RouteInfo { return s.router.Routes() }

// Close disconnects websocket clients and releases their subscriptions.
func (s *Shell) Close() { s.hub.Shutdown() }

func (s *Shell) routes() {
	r := s.router
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		s.fail(w, req, notFound("no route for "+req.URL.Path))
	})

	r.Get("/healthz", s.health).Named("health")
	r.Get("/api/routes", s.listRoutes).Named("routes")
	r.Get("/api/slots", s.listSlots).Named("slots")
	r.Get("/api/slots/{slot}", s.showSlot).Named("slot")
	r.Get("/api/resources/events", s.located(http.HandlerFunc(s.resourceEvents)).ServeHTTP).Named("resource-events")
	r.Get("/slots/{slot}", s.renderSlot).Named("slot-fragment")
	r.Get("/slots/{slot}/{name}", s.renderExtension).Named("extension-fragment")
	r.Get(s.cfg.SPABase, s.redirectHome)
	r.Get(s.cfg.SPABase+"/*", s.page).Named("page")
	r.Get("/login/location", s.locationForm).Named("login-location")
	r.Post("/login/location", s.limited(http.HandlerFunc(s.selectLocation)).ServeHTTP)
	r.Handle("/ws", s.limited(s.located(websocket.NewUpgrader(&websocket.Config{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		AllowedOrigins:  s.cfg.AllowedOrigins,
	}, s.hub)))).Named("ws")

	if s.cfg.Profiling {
		pc := profiling.DefaultConfig()
		r.Handle(pc.Path+"/*", profiling.Handler(pc)).Named("pprof")
	}
}

// located rejects requests whose session has not selected a location.
// Resource streams fetch with the backend credentials of the shell.
func (s *Shell) located(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.FromContext(r.Context()).HasLocation() {
			s.fail(w, r, response.Unauthorized("a session with a location is required"))
			return
		}
		h.ServeHTTP(w, r)
	})
}

func (s *Shell) limited(h http.Handler) http.Handler {
	if s.cfg.Limiter == nil {
		return h
	}
	return middleware.RateLimit(s.cfg.Limiter, middleware.ClientIP, s.cfg.Logger.Named("ratelimit"))(h)
}
