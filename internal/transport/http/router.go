// Package httptransport assembles the public HTTP surface. Handlers stay in
// their domain packages; this router only mounts them and the operational
// endpoints.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	evidencehandler "pfascert/internal/evidence/handler"
	"pfascert/internal/platform/middleware"
	verificationhandler "pfascert/internal/verification/handler"
)

// NewRouter wires all public endpoints.
func NewRouter(
	logger *slog.Logger,
	evidence *evidencehandler.Handler,
	verification *verificationhandler.Handler,
	health func() error,
) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestContext)
	r.Use(middleware.RequestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if health != nil {
			if err := health(); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		evidence.Register(api)
		verification.Register(api)
	})
	return r
}
