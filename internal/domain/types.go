// Package domain defines the shared data model of the retrieval service:
// identity entities (coaches, clients, organizations), stored documents and
// their searchable chunks, and the visibility levels that govern access.
package domain

import "time"

// VisibilityLevel is the per-item access tier.
type VisibilityLevel string

const (
	// VisibilityPrivate restricts the item to its creator.
	VisibilityPrivate VisibilityLevel = "private"
	// VisibilityCoachOnly restricts the item to coaches responsible for the
	// owning client (or the owning coach). Clients never see coach_only items,
	// even about themselves.
	VisibilityCoachOnly VisibilityLevel = "coach_only"
	// VisibilityOrgVisible extends coach_only to every coach with at least one
	// client in the item's organization.
	VisibilityOrgVisible VisibilityLevel = "org_visible"
	// VisibilityPublic makes the item readable by anyone, including anonymous
	// callers.
	VisibilityPublic VisibilityLevel = "public"
)

// Valid reports whether v is one of the defined visibility levels.
func (v VisibilityLevel) Valid() bool {
	switch v {
	case VisibilityPrivate, VisibilityCoachOnly, VisibilityOrgVisible, VisibilityPublic:
		return true
	}
	return false
}

// Coach is a coaching practitioner with zero or more assigned clients.
type Coach struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Client is a coached individual. A client belongs to at most one
// organization and has a primary coach; additional coaches are linked through
// CoachClientLink rows.
type Client struct {
	ID             string
	Name           string
	Email          string
	PrimaryCoachID string
	OrganizationID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Organization groups clients of one company or program.
type Organization struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CoachClientLink is the authoritative record of which clients a coach may
// see. The primary-coach field on Client is informational; access is derived
// from these rows alone and recomputed on every request.
type CoachClientLink struct {
	CoachID   string
	ClientID  string
	CreatedAt time.Time
}

// DataItem is one stored document. Ownership fields are independently
// optional: an item may reference only an organization (a shared company
// document), only a client, or any combination.
type DataItem struct {
	ID             string
	DataType       string
	CoachID        string
	ClientID       string
	OrganizationID string
	Visibility     VisibilityLevel
	Attributes     map[string]any
	Content        string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Chunk is a similarity-searchable fragment of a DataItem. A chunk belongs to
// exactly one item and inherits that item's access rules.
type Chunk struct {
	ID         string
	DataItemID string
	Seq        int
	Content    string
	Embedding  []float32
	CreatedAt  time.Time
}

// ChunkMatch is a chunk returned from a similarity search together with its
// parent item and the cosine similarity against the query vector.
type ChunkMatch struct {
	Chunk      Chunk
	Item       DataItem
	Similarity float64
}
