package retrieval

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"coachscope.org/internal/audit"
	"coachscope.org/internal/domain"
	"coachscope.org/internal/embedder"
	"coachscope.org/internal/identity"
	"coachscope.org/internal/obs"
	"coachscope.org/internal/scope"
)

// Store executes similarity searches under the native row-security
// predicate parameterized by the effective filter.
type Store interface {
	SearchChunks(ctx context.Context, eff scope.Effective, queryVec []float32, threshold float64, limit int) ([]domain.ChunkMatch, error)
}

// Engine ties scope construction, embedding, and filtered search together.
type Engine struct {
	scopes   *scope.Builder
	store    Store
	embedder embedder.Embedder
	recorder *audit.Recorder

	embedTimeout time.Duration
}

// EngineOption configures Engine behavior.
type EngineOption func(*Engine)

// WithEmbedTimeout bounds each embedding attempt (default 10s).
func WithEmbedTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.embedTimeout = d
		}
	}
}

// NewEngine constructs an Engine.
func NewEngine(scopes *scope.Builder, store Store, emb embedder.Embedder, recorder *audit.Recorder, opts ...EngineOption) *Engine {
	e := &Engine{
		scopes:       scopes,
		store:        store,
		embedder:     emb,
		recorder:     recorder,
		embedTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search runs one access-controlled similarity search for the actor. The
// steps are strictly sequential: scope build, filter merge, query embedding,
// store search, application-level re-check, truncation.
func (e *Engine) Search(ctx context.Context, actor identity.Actor, req Request) (Result, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return Result{}, fmt.Errorf("%w: query is required", ErrInvalidRequest)
	}
	threshold := DefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
		if threshold < 0 || threshold > 1 {
			return Result{}, fmt.Errorf("%w: threshold must be within [0, 1]", ErrInvalidRequest)
		}
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	filter, err := e.scopes.Build(ctx, actor)
	if err != nil {
		return Result{}, fmt.Errorf("build scope: %w", err)
	}
	eff := filter.Merge(scope.DimensionFilters{
		Types:          normalizeTypes(req.Types),
		CoachID:        strings.TrimSpace(req.CoachID),
		ClientID:       strings.TrimSpace(req.ClientID),
		OrganizationID: strings.TrimSpace(req.OrganizationID),
	})

	applied := AppliedFilters{
		Types:          eff.Types,
		CoachID:        eff.CoachID,
		ClientID:       eff.ClientID,
		OrganizationID: eff.OrganizationID,
		Threshold:      threshold,
		Limit:          limit,
		Narrowed:       eff.Narrowed,
	}

	if eff.Empty {
		// The intersection authorizes nothing: an empty result set, not an
		// error, so unauthorized and nonexistent IDs are indistinguishable.
		e.auditSearch(ctx, actor, query, applied, 0, "")
		obs.ObserveSearch(string(actor.Kind))
		return Result{Results: []Match{}, Count: 0, FiltersApplied: applied}, nil
	}

	queryVec, err := e.embedQuery(ctx, query)
	if err != nil {
		e.auditSearch(ctx, actor, query, applied, 0, "embedding_unavailable")
		return Result{}, err
	}

	matches, err := e.store.SearchChunks(ctx, eff, queryVec, threshold, limit)
	if err != nil {
		return Result{}, fmt.Errorf("similarity search: %w", err)
	}

	// Independent second pass over returned rows. Any row failing it was let
	// through by the native predicate and must be dropped; its occurrence is
	// a bug signal, not a normal code path.
	results := make([]Match, 0, len(matches))
	violations := 0
	for _, m := range matches {
		if !filter.AllowsItem(m.Item) || !matchesDimensions(eff, m.Item) {
			violations++
			e.recorder.Record(ctx, audit.Record{
				Event:     audit.EventScopeViolationPrevent,
				ActorKind: string(actor.Kind),
				ActorID:   actor.ID,
				Query:     query,
				Reason:    "row failed application-level scope check",
				Filters:   map[string]any{"data_item_id": m.Item.ID, "chunk_id": m.Chunk.ID},
			})
			continue
		}
		if len(results) < limit {
			results = append(results, annotate(m))
		}
	}
	obs.ObserveScopeViolations(violations)

	e.auditSearch(ctx, actor, query, applied, len(results), "")
	obs.ObserveSearch(string(actor.Kind))

	return Result{Results: results, Count: len(results), FiltersApplied: applied}, nil
}

// embedQuery converts the query text into its embedding vector, retrying
// once on transient failure with a fresh per-attempt timeout.
func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vec, err := e.embedOnce(ctx, query)
	if err == nil {
		return vec, nil
	}
	if ctx.Err() != nil || !embedder.IsRetryable(err) {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	vec, err = e.embedOnce(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	return vec, nil
}

func (e *Engine) embedOnce(ctx context.Context, query string) ([]float32, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.embedTimeout)
	defer cancel()
	start := time.Now()
	vecs, err := e.embedder.Embed(attemptCtx, []string{query})
	obs.ObserveEmbedding(time.Since(start))
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("embedder returned %d vectors for one input", len(vecs))
	}
	return vecs[0], nil
}

func (e *Engine) auditSearch(ctx context.Context, actor identity.Actor, query string, applied AppliedFilters, count int, reason string) {
	filters := map[string]any{
		"threshold": applied.Threshold,
		"limit":     applied.Limit,
	}
	if len(applied.Types) > 0 {
		filters["types"] = applied.Types
	}
	if applied.CoachID != "" {
		filters["coach_id"] = applied.CoachID
	}
	if applied.ClientID != "" {
		filters["client_id"] = applied.ClientID
	}
	if applied.OrganizationID != "" {
		filters["organization_id"] = applied.OrganizationID
	}
	if len(applied.Narrowed) > 0 {
		filters["narrowed"] = applied.Narrowed
	}
	e.recorder.Record(ctx, audit.Record{
		Event:       audit.EventSearch,
		ActorKind:   string(actor.Kind),
		ActorID:     actor.ID,
		Query:       query,
		Filters:     filters,
		ResultCount: count,
		Reason:      reason,
	})
}

// matchesDimensions re-checks the effective dimension filters against a
// returned row.
func matchesDimensions(eff scope.Effective, it domain.DataItem) bool {
	if len(eff.Types) > 0 && !slices.Contains(eff.Types, it.DataType) {
		return false
	}
	if eff.CoachID != "" && it.CoachID != eff.CoachID {
		return false
	}
	if eff.ClientID != "" && it.ClientID != eff.ClientID {
		return false
	}
	if eff.OrganizationID != "" && it.OrganizationID != eff.OrganizationID {
		return false
	}
	return true
}

func normalizeTypes(types []string) []string {
	var out []string
	for _, t := range types {
		t = strings.TrimSpace(strings.ToLower(t))
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}
