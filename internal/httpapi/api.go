// Package httpapi is the HTTP surface of the retrieval service: search,
// ingestion, credential administration, and operational endpoints.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"coachscope.org/internal/audit"
	"coachscope.org/internal/domain"
	"coachscope.org/internal/embedder"
	"coachscope.org/internal/identity"
	"coachscope.org/internal/obs"
	"coachscope.org/internal/retrieval"
	"coachscope.org/internal/stream"
)

// ReadyProbe checks backing dependencies for /readyz.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// AdminStore is the persistence surface of the admin endpoints.
type AdminStore interface {
	CreateCredential(ctx context.Context, c *identity.Credential) error
	RevokeCredential(ctx context.Context, id string) error
	CreateCoach(ctx context.Context, c *domain.Coach) error
	CreateClient(ctx context.Context, c *domain.Client) error
	CreateOrganization(ctx context.Context, o *domain.Organization) error
	AssignClient(ctx context.Context, coachID, clientID string) error
	UnassignClient(ctx context.Context, coachID, clientID string) error
}

// ItemStore persists ingested documents.
type ItemStore interface {
	InsertDataItem(ctx context.Context, item *domain.DataItem, chunks []domain.Chunk) error
	GetDataItem(ctx context.Context, id string) (domain.DataItem, error)
}

// Deps wires the API to its collaborators.
type Deps struct {
	Version    string
	ReadyProbe ReadyProbe
	Resolver   *identity.Resolver
	Engine     *retrieval.Engine
	Recorder   *audit.Recorder
	Admin      AdminStore
	Items      ItemStore
	Embedder   embedder.Embedder
	Stream     *stream.Stream

	RateRPS   float64
	RateBurst int
}

// API is the HTTP layer.
type API struct {
	mux      *http.ServeMux
	version  string
	ready    ReadyProbe
	resolver *identity.Resolver
	engine   *retrieval.Engine
	recorder *audit.Recorder
	admin    AdminStore
	items    ItemStore
	embedder embedder.Embedder
	stream   *stream.Stream

	rateRPS   float64
	rateBurst int
}

func New(d Deps) *API {
	a := &API{
		mux:       http.NewServeMux(),
		version:   d.Version,
		ready:     d.ReadyProbe,
		resolver:  d.Resolver,
		engine:    d.Engine,
		recorder:  d.Recorder,
		admin:     d.Admin,
		items:     d.Items,
		embedder:  d.Embedder,
		stream:    d.Stream,
		rateRPS:   d.RateRPS,
		rateBurst: d.RateBurst,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// retrieval
	a.mux.HandleFunc("/v1/search", a.handleSearch)

	// ingestion
	a.mux.HandleFunc("/v1/data-items", a.handleDataItemsCollection)
	a.mux.HandleFunc("/v1/data-items/", a.handleDataItemResource)

	// administration
	a.mux.HandleFunc("/v1/admin/credentials", a.handleCredentialsCollection)
	a.mux.HandleFunc("/v1/admin/credentials/", a.handleCredentialResource)
	a.mux.HandleFunc("/v1/admin/coaches", a.handleCoaches)
	a.mux.HandleFunc("/v1/admin/clients", a.handleClients)
	a.mux.HandleFunc("/v1/admin/organizations", a.handleOrganizations)
	a.mux.HandleFunc("/v1/admin/links", a.handleLinks)
	a.mux.HandleFunc("/v1/admin/events", a.handleEvents)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withActor(h)
	h = MaxBodyBytes(h, 1<<20)
	if a.rateRPS > 0 {
		h = RateLimit(h, a.rateBurst, a.rateRPS)
	}
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "coachscope-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.ready.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "coachscope-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
