package app

import (
	"log/slog"
	"net/http"

	authapi "haven/cmd/internal/auth/api"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func registerHTTP(
	mux *http.ServeMux,
	log *slog.Logger,
	cfg Config,
	stores *Stores,
	gatherer prometheus.Gatherer,
	auth *authapi.Handler,
) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Readiness.RequireDB && stores.Backend != BackendPostgres {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}

		if err := stores.Ping(r.Context()); err != nil {
			http.Error(w, "store not ready", http.StatusServiceUnavailable)
			log.Info("readyz.store.not_ready", "backend", stores.Backend, "err", err)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	auth.Register(mux)
}
