package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	audithttp "github.com/ausbildung/nachweis/internal/audit/http"
	"github.com/ausbildung/nachweis/internal/auth"
	"github.com/ausbildung/nachweis/internal/notifications"
	"github.com/ausbildung/nachweis/internal/observability"
	"github.com/ausbildung/nachweis/internal/records"
	"github.com/ausbildung/nachweis/internal/shared"
	"github.com/ausbildung/nachweis/jobs"
	"github.com/ausbildung/nachweis/report"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger   *slog.Logger
	Config   *Config
	Verifier auth.Verifier
	Metrics  *observability.Metrics

	RecordsHandler       *records.Handler
	AuditHandler         *audithttp.Handler
	NotificationsHandler *notifications.Handler
	JobHandler           *jobs.Handler
	ReportHandler        *report.Handler
}

// NewRouter constructs the chi.Router with the service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(params.Verifier, params.Logger))

		if params.RecordsHandler != nil {
			r.Route("/records", params.RecordsHandler.MountRoutes)
		}
		if params.NotificationsHandler != nil {
			r.Route("/notifications", params.NotificationsHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			params.AuditHandler.MountRoutes(r)
		}
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(shared.RoleAdmin))
			if params.JobHandler != nil {
				r.Route("/jobs", params.JobHandler.MountRoutes)
			}
			if params.ReportHandler != nil {
				r.Route("/report", params.ReportHandler.MountRoutes)
			}
		})
	})

	return r
}
