// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	committeesfeature "github.com/dalemusser/recruithub/internal/app/features/committees"
	uierrors "github.com/dalemusser/recruithub/internal/app/features/errors"
	feedbackfeature "github.com/dalemusser/recruithub/internal/app/features/feedback"
	healthfeature "github.com/dalemusser/recruithub/internal/app/features/health"
	"github.com/dalemusser/recruithub/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed. RecruitHub mounts:
//   - /health for load balancers
//   - /feedback for reviewers following a feedback link (rate limited per IP)
//   - /committees for the hiring team, behind the operator gateway
//   - /metrics for Prometheus, when enabled
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	s := current(appCfg, deps, logger)
	errLog := uierrors.NewErrorLogger(logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	healthHandler := healthfeature.NewHandler(deps.MongoClient, appCfg.MailTransport(), logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	feedbackHandler := feedbackfeature.NewHandler(s.orchestrator, errLog, logger)
	r.Mount("/feedback", feedbackfeature.Routes(feedbackHandler, ratelimit.Middleware(s.limiter)))

	committeesHandler := committeesfeature.NewHandler(s.orchestrator, deps.MongoDatabase, errLog, logger)
	r.Mount("/committees", committeesfeature.Routes(committeesHandler))

	if appCfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		uierrors.Write(w, http.StatusNotFound, "not_found", "Not found.")
	})
	return r, nil
}
