package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ShutdownHook releases a resource during shutdown.
type ShutdownHook func(ctx context.Context) error

// GracefulShutdown runs a server until its context ends, then stops it and
// runs the registered hooks.
type GracefulShutdown struct {
	server  *Server
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.Mutex
	hooks []namedHook
}

type namedHook struct {
	name string
	fn   ShutdownHook
}

// NewGracefulShutdown creates a runner. A zero timeout means 30 seconds.
func NewGracefulShutdown(server *Server, timeout time.Duration, logger *zap.Logger) *GracefulShutdown {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GracefulShutdown{server: server, timeout: timeout, logger: logger}
}

// RegisterHook adds a hook. Hooks run after the server stopped, in
// registration order.
func (gs *GracefulShutdown) RegisterHook(name string, hook ShutdownHook) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.hooks = append(gs.hooks, namedHook{name: name, fn: hook})
}

// Run serves until ctx ends or the server fails.
func (gs *GracefulShutdown) Run(ctx context.Context) error {
	if err := gs.server.Listen(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		gs.logger.Info("server listening", zap.String("addr", gs.server.Addr()))
		errCh <- gs.server.Serve()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		gs.logger.Info("shutting down", zap.Duration("timeout", gs.timeout))
	}

	return gs.shutdown()
}

func (gs *GracefulShutdown) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), gs.timeout)
	defer cancel()

	var errs []error
	if err := gs.server.Shutdown(ctx); err != nil {
		gs.logger.Error("server shutdown failed", zap.Error(err))
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}

	gs.mu.Lock()
	hooks := append([]namedHook(nil), gs.hooks...)
	gs.mu.Unlock()

	for _, h := range hooks {
		if err := h.fn(ctx); err != nil {
			gs.logger.Error("shutdown hook failed", zap.String("hook", h.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}
	gs.logger.Info("shutdown complete")
	return errors.Join(errs...)
}
