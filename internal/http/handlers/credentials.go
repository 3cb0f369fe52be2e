package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
)

type addCredentialRequest struct {
	APIKey string `json:"apiKey" validate:"required,min=8"`
	Name   string `json:"name" validate:"max=128"`
}

type credentialResponse struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Credits      float64    `json:"credits"`
	Active       bool       `json:"active"`
	Current      bool       `json:"current"`
	LastProbedAt *time.Time `json:"lastProbedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// toCredentialResponse strips the secret key material from API output.
func toCredentialResponse(c *domain.Credential) credentialResponse {
	return credentialResponse{
		ID:           c.ID,
		Name:         c.Name,
		Credits:      c.Credits,
		Active:       c.Active,
		Current:      c.Current,
		LastProbedAt: c.LastProbedAt,
		CreatedAt:    c.CreatedAt,
	}
}

// AddCredential registers a new upstream API key. The key is probed
// synchronously; a failed probe stores the credential inactive rather than
// rejecting it.
func (a *App) AddCredential(w http.ResponseWriter, r *http.Request) {
	var req addCredentialRequest
	if err := a.decode(r, &req); err != nil {
		a.json(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	cred, err := a.Pool.AddCredential(r.Context(), req.APIKey, req.Name)
	if err != nil {
		a.jsonError(w, err)
		return
	}
	a.json(w, http.StatusCreated, toCredentialResponse(cred))
}

// ListCredentials returns the whole pool, secrets omitted.
func (a *App) ListCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := a.Pool.List(r.Context())
	if err != nil {
		a.jsonError(w, err)
		return
	}
	out := make([]credentialResponse, 0, len(creds))
	for i := range creds {
		out = append(out, toCredentialResponse(&creds[i]))
	}
	a.json(w, http.StatusOK, out)
}

// DeleteCredential removes a credential, failing over when it was current.
func (a *App) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Pool.Remove(r.Context(), id); err != nil {
		a.jsonError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetCurrentCredential is the operator override that force-designates a
// credential as current regardless of balance.
func (a *App) SetCurrentCredential(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Pool.SetCurrent(r.Context(), id); err != nil {
		a.jsonError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ProbeCredential re-probes one credential and reconciles pool state.
func (a *App) ProbeCredential(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	credits, err := a.Pool.ProbeAndReconcile(r.Context(), id)
	if err != nil {
		a.jsonError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]float64{"credits": credits})
}

// RefreshCredentials probes every credential in the pool.
func (a *App) RefreshCredentials(w http.ResponseWriter, r *http.Request) {
	if err := a.Pool.RefreshAll(r.Context()); err != nil {
		a.jsonError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
