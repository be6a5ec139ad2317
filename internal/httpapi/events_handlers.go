package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"coachscope.org/internal/audit"
)

// handleEvents is a live tail of the audit trail for admins, delivered as
// server-sent events. Best effort only; the durable record is the store.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}
	if a.stream == nil {
		writeError(w, r, http.StatusNotFound, "event stream disabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := a.stream.Subscribe(r.Context())
	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		case rec, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(eventPayload(rec))
			if err != nil {
				continue
			}
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}

func eventPayload(rec audit.Record) map[string]any {
	out := map[string]any{
		"id":           rec.ID,
		"occurred_at":  rec.OccurredAt.Format(time.RFC3339Nano),
		"event":        rec.Event,
		"actor_kind":   rec.ActorKind,
		"result_count": rec.ResultCount,
	}
	if rec.ActorID != "" {
		out["actor_id"] = rec.ActorID
	}
	if rec.RequestID != "" {
		out["request_id"] = rec.RequestID
	}
	if rec.Reason != "" {
		out["reason"] = rec.Reason
	}
	if len(rec.Filters) > 0 {
		out["filters"] = rec.Filters
	}
	return out
}
