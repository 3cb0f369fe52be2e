package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// ListAlerts returns the most recent operator alerts.
func (a *App) ListAlerts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	alerts, err := a.Alerts.List(r.Context(), limit)
	if err != nil {
		a.jsonError(w, err)
		return
	}
	a.json(w, http.StatusOK, alerts)
}

// MarkAlertRead flags one alert as read so it no longer suppresses new
// alerts of its category.
func (a *App) MarkAlertRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Alerts.MarkRead(r.Context(), id); err != nil {
		a.jsonError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
