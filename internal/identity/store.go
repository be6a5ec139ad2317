package identity

import "context"

// Store describes the persistence operations the resolver needs.
type Store interface {
	// CredentialsByPrefix returns all live and revoked credential records
	// sharing the given non-secret prefix.
	CredentialsByPrefix(ctx context.Context, prefix string) ([]Credential, error)
	// TouchCredential updates the last-used timestamp. Best-effort: callers
	// ignore the returned error.
	TouchCredential(ctx context.Context, id string) error
	// AssignedClientIDs returns the coach's current coach-client link set.
	AssignedClientIDs(ctx context.Context, coachID string) ([]string, error)
}
