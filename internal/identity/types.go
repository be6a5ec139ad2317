// Package identity resolves opaque API credentials into authenticated actors.
//
// A credential is minted once, handed to the holder in full, and stored only
// as a short non-secret prefix plus a salted one-way hash. Resolution looks
// up candidates by prefix, verifies the secret in constant time, and rejects
// revoked or expired records. All rejection reasons collapse into one generic
// error at the caller boundary; the precise reason is only visible to the
// audit trail.
package identity

import "time"

// Kind is the role behind a credential. A credential is bound to exactly one
// kind; an actor never holds more than one role at a time.
type Kind string

const (
	KindCoach  Kind = "coach"
	KindClient Kind = "client"
	KindAdmin  Kind = "admin"
	// KindAnonymous is the scope of requests carrying no credential at all.
	// It is never persisted; anonymous actors see only public items.
	KindAnonymous Kind = "anonymous"
)

// Valid reports whether k is a persistable credential kind.
func (k Kind) Valid() bool {
	switch k {
	case KindCoach, KindClient, KindAdmin:
		return true
	}
	return false
}

// Actor is the authenticated caller behind a request. Derived at request
// time, never persisted.
type Actor struct {
	Kind Kind
	// ID is the coach, client, or admin identifier. Empty for anonymous.
	ID string
	// AssignedClientIDs is the coach's current coach-client link set, loaded
	// fresh at resolution time. Nil for every other kind.
	AssignedClientIDs []string
}

// Anonymous returns the maximally-restrictive actor used for requests
// without a credential.
func Anonymous() Actor {
	return Actor{Kind: KindAnonymous}
}

// Credential is the stored form of an API credential. The secret itself is
// never persisted, only its bcrypt hash.
type Credential struct {
	ID         string
	Prefix     string
	SecretHash string
	Kind       Kind
	SubjectID  string
	ExpiresAt  time.Time
	Revoked    bool
	LastUsedAt time.Time
	CreatedAt  time.Time
}

// Expired reports whether the credential is past its expiry at time now.
// Credentials with a zero ExpiresAt never expire.
func (c Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}
