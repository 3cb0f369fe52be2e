package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"server/internal/http/handlers"
	"server/internal/infra"
	"server/internal/middleware"
)

// NewRouter wires the HTTP surface: health, operator credential/alert
// administration and job submit/poll.
func NewRouter(app *handlers.App, cfg *infra.Config, logger infra.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
		middleware.CORS(nil),
		middleware.RateLimit(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/admin", func(r chi.Router) {
		r.Use(middleware.OperatorAuth(cfg.AdminJWTSecret))
		r.Route("/credentials", func(r chi.Router) {
			r.Post("/", app.AddCredential)
			r.Get("/", app.ListCredentials)
			r.Post("/refresh", app.RefreshCredentials)
			r.Delete("/{id}", app.DeleteCredential)
			r.Post("/{id}/current", app.SetCurrentCredential)
			r.Post("/{id}/probe", app.ProbeCredential)
		})
		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", app.ListAlerts)
			r.Post("/{id}/read", app.MarkAlertRead)
		})
	})

	r.Route("/v1/jobs", func(r chi.Router) {
		r.Use(middleware.OperatorAuth(cfg.AdminJWTSecret))
		r.Post("/{type}", app.SubmitJob)
		r.Get("/{type}/{taskID}", app.JobStatus)
	})

	if cfg.MediaStore == "filesystem" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StoragePath)))
		r.Get("/static/*", fs.ServeHTTP)
	}

	return r
}
