// Package retrieval implements the access-controlled similarity search:
// scope construction, filter merging, query embedding, store search under
// the native row-security predicate, and the independent application-level
// re-check of every returned row.
package retrieval

import (
	"errors"
	"time"

	"coachscope.org/internal/domain"
)

const (
	// DefaultThreshold is the tuned empirical similarity cutoff. Not a hard
	// relevance guarantee; callers may override within [0, 1].
	DefaultThreshold = 0.3
	// DefaultLimit is the result count when the caller does not specify one.
	DefaultLimit = 10
	// MaxLimit caps the per-request result count.
	MaxLimit = 50
)

var (
	// ErrEmbeddingUnavailable indicates the embedding collaborator failed
	// even after the single transient retry. Retryable by the caller.
	ErrEmbeddingUnavailable = errors.New("retrieval: embedding service unavailable")
	// ErrInvalidRequest indicates a malformed search request (empty query,
	// threshold outside [0,1]).
	ErrInvalidRequest = errors.New("retrieval: invalid request")
)

// Request is one search call.
type Request struct {
	Query          string
	Types          []string
	CoachID        string
	ClientID       string
	OrganizationID string
	// Threshold overrides DefaultThreshold when non-nil. Must be in [0, 1].
	Threshold *float64
	// Limit caps results; 0 means DefaultLimit, values above MaxLimit are
	// clamped.
	Limit int
}

// Match is one ranked, annotated result row.
type Match struct {
	ID             string         `json:"id"`
	DataItemID     string         `json:"data_item_id"`
	DataType       string         `json:"data_type"`
	DataTypeLabel  string         `json:"data_type_label"`
	Content        string         `json:"content"`
	Similarity     float64        `json:"similarity"`
	CoachID        string         `json:"coach_id,omitempty"`
	ClientID       string         `json:"client_id,omitempty"`
	OrganizationID string         `json:"organization_id,omitempty"`
	Visibility     string         `json:"visibility_level"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// AppliedFilters reports the effective, post-merge filter of a search. When
// a requested dimension was narrowed, the effective value is reported here,
// never the requested one.
type AppliedFilters struct {
	Types          []string `json:"types,omitempty"`
	CoachID        string   `json:"coach_id,omitempty"`
	ClientID       string   `json:"client_id,omitempty"`
	OrganizationID string   `json:"organization_id,omitempty"`
	Threshold      float64  `json:"threshold"`
	Limit          int      `json:"limit"`
	Narrowed       []string `json:"narrowed,omitempty"`
}

// Result is a completed search.
type Result struct {
	Results        []Match        `json:"results"`
	Count          int            `json:"count"`
	FiltersApplied AppliedFilters `json:"filters_applied"`
}

func annotate(m domain.ChunkMatch) Match {
	info := domain.LookupDataType(m.Item.DataType)
	return Match{
		ID:             m.Chunk.ID,
		DataItemID:     m.Item.ID,
		DataType:       m.Item.DataType,
		DataTypeLabel:  info.Label,
		Content:        m.Chunk.Content,
		Similarity:     m.Similarity,
		CoachID:        m.Item.CoachID,
		ClientID:       m.Item.ClientID,
		OrganizationID: m.Item.OrganizationID,
		Visibility:     string(m.Item.Visibility),
		Metadata:       m.Item.Attributes,
		CreatedAt:      m.Item.CreatedAt,
	}
}
