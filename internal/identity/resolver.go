package identity

import (
	"context"
	"sort"
	"time"
)

// Resolver maps opaque credentials to actors.
type Resolver struct {
	store Store
	now   func() time.Time
}

// ResolverOption configures Resolver behavior.
type ResolverOption func(*Resolver)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewResolver constructs a Resolver over the given store.
func NewResolver(store Store, opts ...ResolverOption) *Resolver {
	r := &Resolver{store: store, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve verifies a raw credential and returns the actor behind it. For
// coaches the current coach-client link set is loaded as part of resolution
// so every downstream authorization decision reflects the latest
// assignments. On failure the returned error compares equal to
// ErrInvalidCredential; the audit reason is available via DenialReason.
func (r *Resolver) Resolve(ctx context.Context, raw string) (Actor, error) {
	prefix, secret, err := SplitToken(raw)
	if err != nil {
		return Actor{}, deny(ReasonMalformed)
	}

	candidates, err := r.store.CredentialsByPrefix(ctx, prefix)
	if err != nil {
		return Actor{}, err
	}

	// Verify every candidate: prefixes are not unique by construction, and
	// bailing out on the first hash mismatch would leak timing.
	var match *Credential
	for i := range candidates {
		if VerifySecret(candidates[i].SecretHash, secret) {
			match = &candidates[i]
			break
		}
	}
	if match == nil {
		return Actor{}, deny(ReasonNotFound)
	}
	if match.Revoked {
		return Actor{}, deny(ReasonRevoked)
	}
	if match.Expired(r.now()) {
		return Actor{}, deny(ReasonExpired)
	}

	actor := Actor{Kind: match.Kind, ID: match.SubjectID}
	if match.Kind == KindCoach {
		clientIDs, err := r.store.AssignedClientIDs(ctx, match.SubjectID)
		if err != nil {
			return Actor{}, err
		}
		sort.Strings(clientIDs)
		actor.AssignedClientIDs = clientIDs
	}

	// Failure to record last use must not fail the request.
	_ = r.store.TouchCredential(ctx, match.ID)

	return actor, nil
}
