package httpapi

import (
	"net/http"
	"testing"
	"time"

	"coachscope.org/internal/domain"
	"coachscope.org/internal/identity"
	"coachscope.org/internal/store/pg"
	"coachscope.org/internal/svctoken"
)

func ingestToken(t *testing.T, scopes ...string) string {
	t.Helper()
	svctoken.ResetSecretForTests()
	t.Setenv("COACHSCOPE_SVC_SECRET", "0123456789abcdef0123456789abcdef")
	t.Cleanup(svctoken.ResetSecretForTests)
	tok, err := svctoken.Generate("pipeline", scopes, time.Minute)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return tok
}

func validIngestBody() map[string]any {
	return map[string]any{
		"data_type":        "exercise",
		"visibility_level": "public",
		"content":          "notice five things you can see",
		"attributes":       map[string]any{"topic": "grounding"},
	}
}

func TestIngestRequiresServiceToken(t *testing.T) {
	ta := newTestAPI(t)
	w := ta.do(t, http.MethodPost, "/v1/data-items", "", validIngestBody())
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestIngestRejectsActorCredential(t *testing.T) {
	ta := newTestAPI(t)
	tok := ta.mintCredential(t, identity.KindAdmin, "admin-1")
	w := ta.do(t, http.MethodPost, "/v1/data-items", tok, validIngestBody())
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestIngestRejectsWrongScope(t *testing.T) {
	ta := newTestAPI(t)
	tok := ingestToken(t, "read")
	w := ta.do(t, http.MethodPost, "/v1/data-items", tok, validIngestBody())
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestIngestCreatesItem(t *testing.T) {
	ta := newTestAPI(t)
	tok := ingestToken(t, svctoken.ScopeIngest)

	w := ta.do(t, http.MethodPost, "/v1/data-items", tok, validIngestBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatalf("body = %v", body)
	}
	if got := w.Header().Get("Location"); got != "/v1/data-items/"+id {
		t.Fatalf("Location = %q", got)
	}
	if len(ta.items.lastChunks) != 1 || ta.items.lastChunks[0].Content != "notice five things you can see" {
		t.Fatalf("chunks = %+v", ta.items.lastChunks)
	}
	if len(ta.items.lastChunks[0].Embedding) == 0 {
		t.Fatal("chunk not embedded")
	}
}

func TestIngestNormalizesDataType(t *testing.T) {
	ta := newTestAPI(t)
	tok := ingestToken(t, svctoken.ScopeIngest)

	body := validIngestBody()
	body["data_type"] = "  Transcript "
	w := ta.do(t, http.MethodPost, "/v1/data-items", tok, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	// Search lowercases requested type filters; stored types must match.
	if got := ta.items.lastItem.DataType; got != "transcript" {
		t.Fatalf("stored data_type = %q", got)
	}
	if decodeBody(t, w)["data_type"] != "transcript" {
		t.Fatal("response echoes unnormalized data_type")
	}
}

func TestIngestExplicitChunks(t *testing.T) {
	ta := newTestAPI(t)
	tok := ingestToken(t, svctoken.ScopeIngest)

	body := validIngestBody()
	body["chunks"] = []string{"part one", "part two", "part three"}
	w := ta.do(t, http.MethodPost, "/v1/data-items", tok, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(ta.items.lastChunks) != 3 {
		t.Fatalf("chunks = %d", len(ta.items.lastChunks))
	}
	for i, c := range ta.items.lastChunks {
		if c.Seq != i {
			t.Fatalf("chunk %d has seq %d", i, c.Seq)
		}
	}
}

func TestIngestInvalidItem(t *testing.T) {
	ta := newTestAPI(t)
	tok := ingestToken(t, svctoken.ScopeIngest)

	body := validIngestBody()
	body["visibility_level"] = "backstage"
	w := ta.do(t, http.MethodPost, "/v1/data-items", tok, body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestIngestEmbedderDown(t *testing.T) {
	ta := newTestAPI(t)
	tok := ingestToken(t, svctoken.ScopeIngest)
	ta.embedder.err = errTransport

	w := ta.do(t, http.MethodPost, "/v1/data-items", tok, validIngestBody())
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "5" {
		t.Fatalf("Retry-After = %q", got)
	}
}

func TestGetDataItemAdminOnly(t *testing.T) {
	ta := newTestAPI(t)
	ta.items.item = domain.DataItem{
		ID:         "item-1",
		DataType:   "exercise",
		Visibility: domain.VisibilityPublic,
		Content:    "notice five things you can see",
	}

	w := ta.do(t, http.MethodGet, "/v1/data-items/item-1", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: status = %d", w.Code)
	}

	adminTok := ta.mintCredential(t, identity.KindAdmin, "admin-1")
	w = ta.do(t, http.MethodGet, "/v1/data-items/item-1", adminTok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin: status = %d, body = %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["id"] != "item-1" || body["visibility_level"] != "public" {
		t.Fatalf("body = %v", body)
	}
}

func TestGetDataItemNotFoundMapsTo404(t *testing.T) {
	ta := newTestAPI(t)
	ta.items.getErr = pg.ErrNotFound
	adminTok := ta.mintCredential(t, identity.KindAdmin, "admin-1")

	w := ta.do(t, http.MethodGet, "/v1/data-items/item-missing", adminTok, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}
