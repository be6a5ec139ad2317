// Package scope converts an authenticated actor into an enforceable filter
// over stored documents.
//
// The filter is applied twice, independently: once as the parameter set for
// the store's native row-security predicate, and once more in the
// application layer over returned rows. A result is included only if it
// passes both. The redundancy is deliberate and load-bearing; do not collapse
// the two passes into one.
package scope

import (
	"context"
	"sort"

	"coachscope.org/internal/domain"
	"coachscope.org/internal/identity"
)

// Directory is the fresh relationship read the builder depends on.
type Directory interface {
	// OrganizationsForClients returns the distinct organization IDs of the
	// given clients, skipping clients without an organization.
	OrganizationsForClients(ctx context.Context, clientIDs []string) ([]string, error)
}

// Filter is the derived, non-persisted authorization scope of one request.
// Built fresh per request; never cached across requests because the
// underlying relationships can change between any two requests.
type Filter struct {
	ActorKind identity.Kind
	ActorID   string
	// OwnedIDs holds the identity IDs the actor may see data for: the
	// actor's own ID plus, for a coach, the assigned client IDs.
	OwnedIDs map[string]struct{}
	// VisibleOrgIDs holds the organizations whose org_visible documents the
	// actor may see. Always empty for clients.
	VisibleOrgIDs map[string]struct{}
	// CanSeeAll is true only for admins.
	CanSeeAll bool
}

// Builder derives scope filters from fresh directory reads.
type Builder struct {
	dir Directory
}

// NewBuilder constructs a Builder.
func NewBuilder(dir Directory) *Builder {
	return &Builder{dir: dir}
}

// Build computes the scope filter for an actor. It is a pure function of the
// actor and the current directory state: calling it twice with no
// intervening relationship change yields an identical filter.
func (b *Builder) Build(ctx context.Context, actor identity.Actor) (Filter, error) {
	f := Filter{
		ActorKind:     actor.Kind,
		ActorID:       actor.ID,
		OwnedIDs:      map[string]struct{}{},
		VisibleOrgIDs: map[string]struct{}{},
	}
	switch actor.Kind {
	case identity.KindAdmin:
		f.CanSeeAll = true
	case identity.KindCoach:
		f.OwnedIDs[actor.ID] = struct{}{}
		for _, id := range actor.AssignedClientIDs {
			f.OwnedIDs[id] = struct{}{}
		}
		orgIDs, err := b.dir.OrganizationsForClients(ctx, actor.AssignedClientIDs)
		if err != nil {
			return Filter{}, err
		}
		for _, id := range orgIDs {
			f.VisibleOrgIDs[id] = struct{}{}
		}
	case identity.KindClient:
		// A client's scope is always just themselves. No organization
		// visibility, even for their own organization.
		f.OwnedIDs[actor.ID] = struct{}{}
	case identity.KindAnonymous:
		// Empty scope: only public items pass.
	}
	return f, nil
}

// ClientIDs returns the actor's visible client IDs in sorted order, with the
// actor's own ID excluded for coaches.
func (f Filter) ClientIDs() []string {
	out := make([]string, 0, len(f.OwnedIDs))
	for id := range f.OwnedIDs {
		if f.ActorKind == identity.KindCoach && id == f.ActorID {
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// OrgIDs returns the visible organization IDs in sorted order.
func (f Filter) OrgIDs() []string {
	out := make([]string, 0, len(f.VisibleOrgIDs))
	for id := range f.VisibleOrgIDs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// AllowsItem is the application-level half of the dual enforcement: it
// re-checks a returned row against the scope using only the row's ownership
// fields and visibility level. In correct operation every row the store
// returns already satisfies it; a failure here indicates a native-predicate
// bug and the row must be dropped and reported.
//
// Private items with a coach_id are coach-created and visible to that coach
// alone; private items with only a client_id are client-created and visible
// to that client alone.
func (f Filter) AllowsItem(it domain.DataItem) bool {
	if it.Visibility == domain.VisibilityPublic {
		return true
	}
	if f.CanSeeAll {
		return true
	}
	switch f.ActorKind {
	case identity.KindCoach:
		switch it.Visibility {
		case domain.VisibilityPrivate:
			return it.CoachID != "" && it.CoachID == f.ActorID
		case domain.VisibilityCoachOnly:
			return f.coversItem(it)
		case domain.VisibilityOrgVisible:
			if f.coversItem(it) {
				return true
			}
			if it.OrganizationID == "" {
				return false
			}
			_, ok := f.VisibleOrgIDs[it.OrganizationID]
			return ok
		}
		return false
	case identity.KindClient:
		// Clients see only their own private items. coach_only and
		// org_visible are coach-side tiers regardless of ownership.
		if it.Visibility != domain.VisibilityPrivate {
			return false
		}
		return it.ClientID == f.ActorID && it.CoachID == ""
	}
	return false
}

// coversItem reports whether the item is owned by the coach or one of the
// coach's assigned clients.
func (f Filter) coversItem(it domain.DataItem) bool {
	if it.CoachID != "" && it.CoachID == f.ActorID {
		return true
	}
	if it.ClientID == "" {
		return false
	}
	_, ok := f.OwnedIDs[it.ClientID]
	return ok
}
