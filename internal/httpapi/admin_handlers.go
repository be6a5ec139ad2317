package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"coachscope.org/internal/audit"
	"coachscope.org/internal/domain"
	"coachscope.org/internal/identity"
	"coachscope.org/internal/ids"
	"coachscope.org/internal/store/pg"
)

type issueCredentialRequest struct {
	Kind      string `json:"kind"`
	SubjectID string `json:"subject_id"`
	ExpiresAt string `json:"expires_at"`
}

type createCoachRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type createClientRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	PrimaryCoachID string `json:"primary_coach_id"`
	OrganizationID string `json:"organization_id"`
}

type createOrganizationRequest struct {
	Name string `json:"name"`
}

type linkRequest struct {
	CoachID  string `json:"coach_id"`
	ClientID string `json:"client_id"`
}

func (a *API) handleCredentialsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.issueCredential(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost)
	}
}

func (a *API) handleCredentialResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/admin/credentials/")
	id, ok := strings.CutSuffix(path, "/revoke")
	if !ok || id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodPost:
		a.revokeCredential(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodPost)
	}
}

// issueCredential mints a new credential. The full token appears exactly
// once in the response; only its prefix and hash are stored.
func (a *API) issueCredential(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.requireAdmin(w, r)
	if !ok {
		return
	}

	var req issueCredentialRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	kind := identity.Kind(strings.TrimSpace(req.Kind))
	if !kind.Valid() {
		writeError(w, r, http.StatusBadRequest, "kind must be coach, client, or admin")
		return
	}
	subjectID := strings.TrimSpace(req.SubjectID)
	if subjectID == "" {
		writeError(w, r, http.StatusBadRequest, "subject_id is required")
		return
	}

	var expiresAt time.Time
	if s := strings.TrimSpace(req.ExpiresAt); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "expires_at must be RFC3339")
			return
		}
		if !t.After(time.Now()) {
			writeError(w, r, http.StatusBadRequest, "expires_at must be in the future")
			return
		}
		expiresAt = t
	}

	minted, err := identity.Mint()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	cred := identity.Credential{
		ID:         ids.New(),
		Prefix:     minted.Prefix,
		SecretHash: minted.SecretHash,
		Kind:       kind,
		SubjectID:  subjectID,
		ExpiresAt:  expiresAt,
	}
	if err := a.admin.CreateCredential(r.Context(), &cred); err != nil {
		handleStoreError(w, r, err)
		return
	}

	a.auditAdmin(r, actor, audit.EventCredentialIssued, map[string]any{
		"credential_id": cred.ID,
		"kind":          string(kind),
		"subject_id":    subjectID,
	})

	resp := map[string]any{
		"id":         cred.ID,
		"token":      minted.Token,
		"kind":       string(kind),
		"subject_id": subjectID,
	}
	if !expiresAt.IsZero() {
		resp["expires_at"] = expiresAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// revokeCredential takes effect on the next resolution attempt; there is no
// grace period.
func (a *API) revokeCredential(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.requireAdmin(w, r)
	if !ok {
		return
	}
	if err := a.admin.RevokeCredential(r.Context(), id); err != nil {
		handleStoreError(w, r, err)
		return
	}
	a.auditAdmin(r, actor, audit.EventCredentialRevoked, map[string]any{
		"credential_id": id,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      id,
		"revoked": true,
	})
}

func (a *API) handleCoaches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}
	var req createCoachRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}
	coach := domain.Coach{
		ID:    ids.New(),
		Name:  strings.TrimSpace(req.Name),
		Email: strings.TrimSpace(req.Email),
	}
	if err := a.admin.CreateCoach(r.Context(), &coach); err != nil {
		handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, coach)
}

func (a *API) handleClients(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}
	var req createClientRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}
	client := domain.Client{
		ID:             ids.New(),
		Name:           strings.TrimSpace(req.Name),
		Email:          strings.TrimSpace(req.Email),
		PrimaryCoachID: strings.TrimSpace(req.PrimaryCoachID),
		OrganizationID: strings.TrimSpace(req.OrganizationID),
	}
	if err := a.admin.CreateClient(r.Context(), &client); err != nil {
		handleStoreError(w, r, err)
		return
	}
	// the primary coach sees the client through a link row, never implicitly
	if client.PrimaryCoachID != "" {
		if err := a.admin.AssignClient(r.Context(), client.PrimaryCoachID, client.ID); err != nil {
			handleStoreError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, client)
}

func (a *API) handleOrganizations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}
	var req createOrganizationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}
	org := domain.Organization{
		ID:   ids.New(),
		Name: strings.TrimSpace(req.Name),
	}
	if err := a.admin.CreateOrganization(r.Context(), &org); err != nil {
		handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, org)
}

// handleLinks manages coach-client links. Links take effect on the next
// search; scopes are rebuilt per request, never cached.
func (a *API) handleLinks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost, http.MethodDelete:
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
		return
	}
	actor, ok := a.requireAdmin(w, r)
	if !ok {
		return
	}
	var req linkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	coachID := strings.TrimSpace(req.CoachID)
	clientID := strings.TrimSpace(req.ClientID)
	if coachID == "" || clientID == "" {
		writeError(w, r, http.StatusBadRequest, "coach_id and client_id are required")
		return
	}

	var (
		err    error
		action string
	)
	if r.Method == http.MethodPost {
		err = a.admin.AssignClient(r.Context(), coachID, clientID)
		action = "assigned"
	} else {
		err = a.admin.UnassignClient(r.Context(), coachID, clientID)
		action = "unassigned"
	}
	if err != nil {
		handleStoreError(w, r, err)
		return
	}

	a.auditAdmin(r, actor, audit.EventCoachClientLinkChanged, map[string]any{
		"coach_id":  coachID,
		"client_id": clientID,
		"action":    action,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"coach_id":  coachID,
		"client_id": clientID,
		"action":    action,
	})
}

func (a *API) auditAdmin(r *http.Request, actor identity.Actor, event string, filters map[string]any) {
	if a.recorder == nil {
		return
	}
	a.recorder.Record(r.Context(), audit.Record{
		Event:     event,
		ActorKind: string(actor.Kind),
		ActorID:   actor.ID,
		Filters:   filters,
	})
}

func handleStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pg.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	case errors.Is(err, pg.ErrConflict):
		writeError(w, r, http.StatusConflict, "resource already exists")
	case errors.Is(err, pg.ErrReferenceMissing):
		writeError(w, r, http.StatusBadRequest, "referenced resource does not exist")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
