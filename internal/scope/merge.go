package scope

import "coachscope.org/internal/identity"

// DimensionFilters are the caller-supplied search dimensions.
type DimensionFilters struct {
	Types          []string
	CoachID        string
	ClientID       string
	OrganizationID string
}

// Effective is the post-merge filter actually applied to the store query.
// It is always the intersection of the caller's dimensions with the actor's
// scope: an unauthorized dimension value collapses the result set to empty
// rather than being honored or rejected, so callers cannot distinguish
// "unknown ID" from "ID you may not see".
type Effective struct {
	Scope Filter

	Types          []string
	CoachID        string
	ClientID       string
	OrganizationID string

	// Empty marks an intersection that authorizes nothing. The store query
	// is skipped entirely.
	Empty bool
	// Narrowed lists the dimensions that were silently narrowed. Surfaced
	// through filters_applied, never as an error.
	Narrowed []string
}

// Merge intersects caller-supplied dimensions with the scope. The result
// never widens either input.
func (f Filter) Merge(req DimensionFilters) Effective {
	eff := Effective{Scope: f, Types: req.Types}

	if req.CoachID != "" {
		switch {
		case f.CanSeeAll:
			eff.CoachID = req.CoachID
		case f.ActorKind == identity.KindCoach && req.CoachID == f.ActorID:
			eff.CoachID = req.CoachID
		case f.ActorKind == identity.KindCoach:
			// Another coach's ID: narrow to the actor's own, which cannot
			// intersect the request. Fails closed, reports the own ID.
			eff.CoachID = f.ActorID
			eff.Empty = true
			eff.Narrowed = append(eff.Narrowed, "coach_id")
		default:
			eff.Empty = true
			eff.Narrowed = append(eff.Narrowed, "coach_id")
		}
	}

	if req.ClientID != "" {
		if f.CanSeeAll || f.allowsClientID(req.ClientID) {
			eff.ClientID = req.ClientID
		} else {
			eff.Empty = true
			eff.Narrowed = append(eff.Narrowed, "client_id")
		}
	}

	if req.OrganizationID != "" {
		if f.CanSeeAll {
			eff.OrganizationID = req.OrganizationID
		} else if _, ok := f.VisibleOrgIDs[req.OrganizationID]; ok {
			eff.OrganizationID = req.OrganizationID
		} else {
			eff.Empty = true
			eff.Narrowed = append(eff.Narrowed, "organization_id")
		}
	}

	return eff
}

// allowsClientID reports whether the scope authorizes filtering on the given
// client ID: a client may name themselves, a coach any assigned client.
func (f Filter) allowsClientID(clientID string) bool {
	if f.ActorKind == identity.KindCoach && clientID == f.ActorID {
		return false
	}
	_, ok := f.OwnedIDs[clientID]
	return ok
}
