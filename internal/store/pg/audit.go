package pg

import (
	"context"
	"encoding/json"
	"fmt"

	"coachscope.org/internal/audit"
)

// Append writes one audit record. Called from the audit recorder's
// background loop, never from a request path.
func (s *Store) Append(ctx context.Context, rec *audit.Record) error {
	filters := []byte("{}")
	if len(rec.Filters) > 0 {
		raw, err := json.Marshal(rec.Filters)
		if err != nil {
			return fmt.Errorf("marshal filters: %w", err)
		}
		filters = raw
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_log (id, occurred_at, event, actor_kind, actor_id, request_id, reason, query, filters, result_count)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, rec.ID, rec.OccurredAt, rec.Event, rec.ActorKind, nullable(rec.ActorID),
		nullable(rec.RequestID), nullable(rec.Reason), nullable(rec.Query), filters, rec.ResultCount)
	return err
}
