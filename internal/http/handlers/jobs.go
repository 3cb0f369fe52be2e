package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
)

// SubmitJob forwards a generation request of the given type to the upstream
// through the gateway. The body passes through as-is; the upstream validates
// its own job-specific fields.
func (a *App) SubmitJob(w http.ResponseWriter, r *http.Request) {
	jobType := domain.JobType(chi.URLParam(r, "type"))
	if !domain.KnownJobType(jobType) {
		a.jsonError(w, fmt.Errorf("%w: %q", domain.ErrUnsupportedJobType, jobType))
		return
	}
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.json(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	result, err := a.Gateway.Submit(r.Context(), jobType, body)
	if err != nil {
		a.jsonError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, result)
}

// JobStatus polls the upstream for a task and returns the normalized result.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobType := domain.JobType(chi.URLParam(r, "type"))
	if !domain.KnownJobType(jobType) {
		a.jsonError(w, fmt.Errorf("%w: %q", domain.ErrUnsupportedJobType, jobType))
		return
	}
	taskID := chi.URLParam(r, "taskID")
	if taskID == "" {
		a.json(w, http.StatusBadRequest, map[string]string{"error": "taskID is required"})
		return
	}
	result, err := a.Gateway.PollStatus(r.Context(), jobType, taskID)
	if err != nil {
		a.jsonError(w, err)
		return
	}
	a.json(w, http.StatusOK, result)
}
