package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"coachscope.org/internal/identity"
	"coachscope.org/internal/retrieval"
)

type searchRequest struct {
	Query          string   `json:"query"`
	Types          []string `json:"types"`
	CoachID        string   `json:"coach_id"`
	ClientID       string   `json:"client_id"`
	OrganizationID string   `json:"organization_id"`
	Threshold      *float64 `json:"threshold"`
	Limit          int      `json:"limit"`
}

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.search(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost)
	}
}

func (a *API) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, r, http.StatusBadRequest, "query is required")
		return
	}
	if req.Limit < 0 {
		writeError(w, r, http.StatusBadRequest, "limit must be >= 0")
		return
	}

	actor := identity.ActorFromContext(r.Context())
	result, err := a.engine.Search(r.Context(), actor, retrieval.Request{
		Query:          req.Query,
		Types:          req.Types,
		CoachID:        strings.TrimSpace(req.CoachID),
		ClientID:       strings.TrimSpace(req.ClientID),
		OrganizationID: strings.TrimSpace(req.OrganizationID),
		Threshold:      req.Threshold,
		Limit:          req.Limit,
	})
	if err != nil {
		handleSearchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func handleSearchError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, retrieval.ErrInvalidRequest):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, retrieval.ErrEmbeddingUnavailable):
		w.Header().Set("Retry-After", "5")
		writeError(w, r, http.StatusServiceUnavailable, "embedding service unavailable, retry shortly")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
