package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"coachscope.org/internal/audit"
	"coachscope.org/internal/identity"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// withActor resolves the request credential into an actor. Requests without
// a credential proceed as anonymous; requests with a credential that fails
// resolution get one generic 401 regardless of the reason, while the precise
// reason goes to the audit trail only. Bearer tokens that are not service
// credentials (ingestion JWTs) pass through untouched for their handlers to
// verify.
func (a *API) withActor(next http.Handler) http.Handler {
	if a.resolver == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		token := extractBearerToken(r.Header.Get(authHeader))
		if token == "" || !strings.HasPrefix(token, identity.TokenPrefix) {
			next.ServeHTTP(w, r.WithContext(identity.ContextWithActor(r.Context(), identity.Anonymous())))
			return
		}

		actor, err := a.resolver.Resolve(r.Context(), token)
		if err != nil {
			if errors.Is(err, identity.ErrInvalidCredential) {
				a.auditResolve(r, audit.EventResolveDenied, identity.Anonymous(), identity.DenialReason(err))
				writeError(w, r, http.StatusUnauthorized, "invalid credential")
				return
			}
			writeError(w, r, http.StatusInternalServerError, "authentication error")
			return
		}

		a.auditResolve(r, audit.EventResolveOK, actor, "")
		next.ServeHTTP(w, r.WithContext(identity.ContextWithActor(r.Context(), actor)))
	})
}

func (a *API) auditResolve(r *http.Request, event string, actor identity.Actor, reason string) {
	if a.recorder == nil {
		return
	}
	a.recorder.Record(r.Context(), audit.Record{
		Event:     event,
		ActorKind: string(actor.Kind),
		ActorID:   actor.ID,
		Reason:    reason,
	})
}

// requireAdmin returns the actor when it is an authenticated admin.
func (a *API) requireAdmin(w http.ResponseWriter, r *http.Request) (identity.Actor, bool) {
	actor := identity.ActorFromContext(r.Context())
	switch actor.Kind {
	case identity.KindAdmin:
		return actor, true
	case identity.KindAnonymous:
		writeError(w, r, http.StatusUnauthorized, "credential required")
	default:
		writeError(w, r, http.StatusForbidden, "admin access required")
	}
	return identity.Actor{}, false
}

func extractBearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return ""
	}
	return strings.TrimSpace(header[len(bearer):])
}
