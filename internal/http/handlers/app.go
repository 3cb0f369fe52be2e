package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"server/internal/credpool"
	"server/internal/domain"
	"server/internal/gateway"
	"server/internal/infra"
)

// App bundles the handler dependencies.
type App struct {
	Pool     *credpool.Manager
	Gateway  *gateway.Gateway
	Alerts   domain.AlertRepository
	Logger   infra.Logger
	validate *validator.Validate
}

func NewApp(pool *credpool.Manager, gw *gateway.Gateway, alerts domain.AlertRepository, logger infra.Logger) *App {
	return &App{
		Pool:     pool,
		Gateway:  gw,
		Alerts:   alerts,
		Logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// jsonError maps domain error kinds to HTTP statuses and emits a uniform
// error body.
func (a *App) jsonError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrUnsupportedJobType):
		code = http.StatusBadRequest
	case errors.Is(err, domain.ErrNoCredentialAvailable):
		code = http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrInsufficientCredits):
		code = http.StatusPaymentRequired
	case errors.Is(err, domain.ErrUpstream):
		code = http.StatusBadGateway
	}
	if code == http.StatusInternalServerError {
		a.Logger.Error().Err(err).Msg("handlers: internal error")
	}
	a.json(w, code, map[string]string{"error": err.Error()})
}

func (a *App) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return a.validate.Struct(v)
}
