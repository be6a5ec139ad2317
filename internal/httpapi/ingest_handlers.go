package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"coachscope.org/internal/audit"
	"coachscope.org/internal/domain"
	"coachscope.org/internal/svctoken"
)

type ingestRequest struct {
	DataType       string         `json:"data_type"`
	CoachID        string         `json:"coach_id"`
	ClientID       string         `json:"client_id"`
	OrganizationID string         `json:"organization_id"`
	Visibility     string         `json:"visibility_level"`
	Attributes     map[string]any `json:"attributes"`
	Content        string         `json:"content"`
	// Chunks overrides the default single-chunk split. Each entry becomes one
	// searchable fragment, embedded in order.
	Chunks []string `json:"chunks"`
}

func (a *API) handleDataItemsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.ingestDataItem(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost)
	}
}

func (a *API) handleDataItemResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/data-items/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getDataItem(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

// ingestDataItem accepts new documents from trusted pipeline collaborators.
// Callers authenticate with a service JWT carrying the ingest scope, never
// with an actor credential.
func (a *API) ingestDataItem(w http.ResponseWriter, r *http.Request) {
	if !a.requireIngestToken(w, r) {
		return
	}

	var req ingestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	item := domain.DataItem{
		// Lowercased to match search-side type filter normalization.
		DataType:       strings.ToLower(strings.TrimSpace(req.DataType)),
		CoachID:        strings.TrimSpace(req.CoachID),
		ClientID:       strings.TrimSpace(req.ClientID),
		OrganizationID: strings.TrimSpace(req.OrganizationID),
		Visibility:     domain.VisibilityLevel(strings.TrimSpace(req.Visibility)),
		Attributes:     req.Attributes,
		Content:        req.Content,
	}
	if err := domain.ValidateItem(item); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	texts := req.Chunks
	if len(texts) == 0 {
		texts = []string{req.Content}
	}
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			writeError(w, r, http.StatusBadRequest, "chunks must not be empty")
			return
		}
	}

	vectors, err := a.embedder.Embed(r.Context(), texts)
	if err != nil {
		w.Header().Set("Retry-After", "5")
		writeError(w, r, http.StatusServiceUnavailable, "embedding service unavailable, retry shortly")
		return
	}
	if len(vectors) != len(texts) {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	chunks := make([]domain.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = domain.Chunk{Seq: i, Content: t, Embedding: vectors[i]}
	}

	if err := a.items.InsertDataItem(r.Context(), &item, chunks); err != nil {
		if errors.Is(err, domain.ErrInvalidItem) {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	if a.recorder != nil {
		a.recorder.Record(r.Context(), audit.Record{
			Event:     audit.EventDataItemIngested,
			ActorKind: "service",
			Filters: map[string]any{
				"data_item_id":     item.ID,
				"data_type":        item.DataType,
				"visibility_level": string(item.Visibility),
				"chunks":           len(chunks),
			},
		})
	}

	w.Header().Set("Location", "/v1/data-items/"+item.ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         item.ID,
		"data_type":  item.DataType,
		"chunks":     len(chunks),
		"created_at": item.CreatedAt,
	})
}

func (a *API) getDataItem(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}
	it, err := a.items.GetDataItem(r.Context(), id)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":               it.ID,
		"data_type":        it.DataType,
		"coach_id":         it.CoachID,
		"client_id":        it.ClientID,
		"organization_id":  it.OrganizationID,
		"visibility_level": string(it.Visibility),
		"attributes":       it.Attributes,
		"content":          it.Content,
		"created_at":       it.CreatedAt,
		"updated_at":       it.UpdatedAt,
	})
}

func (a *API) requireIngestToken(w http.ResponseWriter, r *http.Request) bool {
	token := extractBearerToken(r.Header.Get(authHeader))
	if token == "" {
		writeError(w, r, http.StatusUnauthorized, "service token required")
		return false
	}
	claims, err := svctoken.ParseAndValidate(token)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid service token")
		return false
	}
	if !claims.HasScope(svctoken.ScopeIngest) {
		writeError(w, r, http.StatusForbidden, "ingest scope required")
		return false
	}
	return true
}
