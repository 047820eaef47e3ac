// Package app wires the haven server runtime: config, logging, storage,
// the session core and the HTTP surface.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"haven/cmd/identity"
	authapi "haven/cmd/internal/auth/api"
	"haven/cmd/internal/auth/authn"
	"haven/cmd/internal/auth/session"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App is the haven server runtime. It owns the stores and the HTTP handler.
type App struct {
	cfg Config
	log *slog.Logger

	stores   *Stores
	sessions *session.Service
	handler  http.Handler
}

// New validates cfg, opens the configured backend and wires every route.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.Log, nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	codec, err := session.NewCodec(cfg.Token)
	if err != nil {
		return nil, err
	}
	fp, err := newFingerprinter(cfg.Log)
	if err != nil {
		return nil, err
	}

	stores, err := OpenStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	verifier := identity.NewVerifier(stores.Users, cfg.Password, cfg.API().ServerName)
	sessions := session.NewService(stores.Sessions, verifier, codec)

	opts := []authapi.HandlerOption{authapi.WithFingerprinter(fp)}
	var gatherer prometheus.Gatherer
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts = append(opts, authapi.WithMetrics(authapi.NewMetrics(reg)))
		gatherer = reg
	}

	auth, err := authapi.NewHandler(log, cfg.API(), sessions, stores.Users, opts...)
	if err != nil {
		_ = stores.Close()
		return nil, err
	}

	mux := http.NewServeMux()
	registerHTTP(mux, log, cfg, stores, gatherer, auth)

	var h http.Handler = mux
	h = authn.Authenticator(sessions, log)(h)
	h = WithCORS(h)
	h = WithSecurityHeaders(h)
	h = WithRecover(h, log)
	h = WithRequestLogging(h, log)

	log.Info("app.ready",
		"backend", stores.Backend,
		"server_name", cfg.API().ServerName,
		"token_algorithm", cfg.Token.Algorithm,
		"token_ttl", codec.TTL(),
		"metrics", cfg.Metrics.Enabled,
	)

	return &App{
		cfg:      cfg,
		log:      log,
		stores:   stores,
		sessions: sessions,
		handler:  h,
	}, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Stores exposes the opened backend.
func (a *App) Stores() *Stores { return a.stores }

// Run serves HTTP until ctx is cancelled or the server fails, then shuts
// down gracefully and closes the stores.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.Server.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.Server.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.Server.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.Server.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.Server.Addr, "backend", a.stores.Backend)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case runErr = <-errCh:
		a.log.Error("server.fail", "err", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.Server.ShutdownTimeout, 10*time.Second))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		runErr = errors.Join(runErr, err)
	}

	if err := a.Close(); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return runErr
}

// Close releases the stores. It is called by Run on the way out.
func (a *App) Close() error {
	return a.stores.Close()
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
