package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openhis/slotkit/internal/shell"
	"github.com/openhis/slotkit/internal/web/auth"
	"github.com/openhis/slotkit/internal/web/server"
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	var (
		host  string
		port  int
		pprof bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the shell",
		Long: `Serve pages, slot fragments and the resource stream.

The shell listens until interrupted and then drains connections for
server.shutdown_timeout before closing the store and the cache.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				a.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			if pprof {
				a.cfg.Server.Pprof = true
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "override server.host")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "override server.port")
	cmd.Flags().BoolVar(&pprof, "pprof", false, "mount /debug/pprof (server.pprof)")
	return cmd
}

// serve runs the shell until ctx ends. It takes ownership of a.
func serve(ctx context.Context, a *app) error {
	defer a.Close()

	secret := a.cfg.Session.Secret
	if secret == "" {
		secret = uuid.NewString()
		a.logger.Warn("session.secret is not set; sessions will not survive a restart")
	}
	sessions, err := auth.NewSessionService(secret, a.cfg.Session.TTL)
	if err != nil {
		return err
	}

	limiter, closeLimiter, err := a.newLimiter()
	if err != nil {
		return err
	}
	defer closeLimiter()

	sh, err := shell.New(ctx, shell.Config{
		Registry:       a.registry,
		Store:          a.store,
		Client:         a.client,
		Sessions:       sessions,
		Logger:         a.logger.Named("shell"),
		SPABase:        a.cfg.Server.SPABase,
		RenderTimeout:  a.cfg.Server.RenderTimeout,
		User:           a.cfg.Backend.Username,
		SecureCookies:  a.cfg.Session.Secure,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		Limiter:        limiter,
		Profiling:      a.cfg.Server.Pprof,
	})
	if err != nil {
		return err
	}
	defer sh.Close()

	srv, err := server.New(server.DefaultConfig(a.cfg.Server.Address(), sh.Handler()))
	if err != nil {
		return err
	}

	gs := server.NewGracefulShutdown(srv, a.cfg.Server.ShutdownTimeout, a.logger)
	gs.RegisterHook("websocket", func(context.Context) error {
		sh.Close()
		return nil
	})
	gs.RegisterHook("store", func(context.Context) error {
		a.store.Close()
		return nil
	})

	a.logger.Info("starting shell",
		zap.String("addr", a.cfg.Server.Address()),
		zap.String("backend", a.cfg.Backend.BaseURL),
		zap.String("cache", a.cfg.Cache.Backend),
		zap.Int("extensions", a.registry.Count()),
		zap.Bool("pprof", a.cfg.Server.Pprof),
	)
	return gs.Run(ctx)
}
