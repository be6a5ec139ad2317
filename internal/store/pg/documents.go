package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"

	"coachscope.org/internal/domain"
	"coachscope.org/internal/identity"
	"coachscope.org/internal/ids"
	"coachscope.org/internal/scope"
)

// InsertDataItem stores an item and its chunks in one transaction. The item
// is validated before anything is written; an invalid item leaves no rows
// behind.
func (s *Store) InsertDataItem(ctx context.Context, item *domain.DataItem, chunks []domain.Chunk) error {
	if err := domain.ValidateItem(*item); err != nil {
		return err
	}
	if item.ID == "" {
		item.ID = ids.New()
	}

	attrs := []byte("{}")
	if len(item.Attributes) > 0 {
		raw, err := json.Marshal(item.Attributes)
		if err != nil {
			return fmt.Errorf("marshal attributes: %w", err)
		}
		attrs = raw
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		insert into data_items (id, data_type, coach_id, client_id, organization_id, visibility, attributes, content)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		returning created_at, updated_at
	`, item.ID, item.DataType, nullable(item.CoachID), nullable(item.ClientID), nullable(item.OrganizationID),
		string(item.Visibility), attrs, item.Content).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}

	for i := range chunks {
		c := &chunks[i]
		if c.ID == "" {
			c.ID = ids.New()
		}
		c.DataItemID = item.ID
		if _, err := tx.ExecContext(ctx, `
			insert into chunks (id, data_item_id, seq, content, embedding)
			values ($1, $2, $3, $4, $5)
		`, c.ID, c.DataItemID, c.Seq, c.Content, pgvector.NewVector(c.Embedding)); err != nil {
			return mapWriteError(err)
		}
	}

	return tx.Commit()
}

// SearchChunks runs a cosine-similarity search restricted by the effective
// filter. The transaction first binds the actor's scope into transaction-
// local settings consumed by the row-security policies, then runs the
// query: the native predicate is enforced atomically with the search, and
// the WHERE clause repeats the same restriction so either layer alone is
// sufficient to hold the tenant boundary.
func (s *Store) SearchChunks(ctx context.Context, eff scope.Effective, queryVec []float32, threshold float64, limit int) ([]domain.ChunkMatch, error) {
	if limit <= 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := bindScopeSettings(ctx, tx, eff.Scope); err != nil {
		return nil, err
	}

	where, args := searchPredicate(eff, pgvector.NewVector(queryVec), threshold)
	args = append(args, limit)

	query := fmt.Sprintf(`
		select c.id, c.data_item_id, c.seq, c.content,
		       1 - (c.embedding <=> $1) as similarity,
		       di.id, di.data_type, di.coach_id, di.client_id, di.organization_id,
		       di.visibility, di.attributes, di.created_at, di.updated_at
		from chunks c
		join data_items di on di.id = c.data_item_id
		where %s
		order by c.embedding <=> $1 asc, di.created_at desc
		limit $%d
	`, where, len(args))

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []domain.ChunkMatch
	for rows.Next() {
		var (
			m        domain.ChunkMatch
			coachID  sql.NullString
			clientID sql.NullString
			orgID    sql.NullString
			vis      string
			rawAttrs []byte
		)
		if err := rows.Scan(
			&m.Chunk.ID, &m.Chunk.DataItemID, &m.Chunk.Seq, &m.Chunk.Content,
			&m.Similarity,
			&m.Item.ID, &m.Item.DataType, &coachID, &clientID, &orgID,
			&vis, &rawAttrs, &m.Item.CreatedAt, &m.Item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		m.Item.CoachID = coachID.String
		m.Item.ClientID = clientID.String
		m.Item.OrganizationID = orgID.String
		m.Item.Visibility = domain.VisibilityLevel(vis)
		m.Item.Content = m.Chunk.Content
		if len(rawAttrs) > 0 {
			if err := json.Unmarshal(rawAttrs, &m.Item.Attributes); err != nil {
				return nil, fmt.Errorf("decode attributes: %w", err)
			}
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return matches, nil
}

// bindScopeSettings publishes the actor's scope as transaction-local
// settings. The row-security policies on data_items and chunks read these
// via current_setting; set_config with is_local=true confines them to this
// transaction.
func bindScopeSettings(ctx context.Context, tx *sql.Tx, f scope.Filter) error {
	_, err := tx.ExecContext(ctx, `
		select set_config('coachscope.actor_kind', $1, true),
		       set_config('coachscope.actor_id', $2, true),
		       set_config('coachscope.client_ids', $3, true),
		       set_config('coachscope.org_ids', $4, true)
	`, string(f.ActorKind), f.ActorID, strings.Join(f.ClientIDs(), ","), strings.Join(f.OrgIDs(), ","))
	return err
}

// searchPredicate builds the WHERE clause mirroring scope.Filter.AllowsItem
// plus the effective dimension filters and the similarity threshold.
func searchPredicate(eff scope.Effective, vec pgvector.Vector, threshold float64) (string, []any) {
	args := []any{vec, threshold}
	conds := []string{`1 - (c.embedding <=> $1) >= $2`}

	f := eff.Scope
	switch {
	case f.CanSeeAll:
		// No scope restriction.
	case f.ActorKind == identity.KindCoach:
		args = append(args, f.ActorID, f.ClientIDs(), f.OrgIDs())
		conds = append(conds, fmt.Sprintf(`(
			di.visibility = 'public'
			or (di.visibility = 'private' and di.coach_id = $%d)
			or (di.visibility = 'coach_only' and (di.coach_id = $%d or di.client_id = any($%d)))
			or (di.visibility = 'org_visible' and (di.coach_id = $%d or di.client_id = any($%d) or di.organization_id = any($%d)))
		)`, len(args)-2, len(args)-2, len(args)-1, len(args)-2, len(args)-1, len(args)))
	case f.ActorKind == identity.KindClient:
		args = append(args, f.ActorID)
		conds = append(conds, fmt.Sprintf(`(
			di.visibility = 'public'
			or (di.visibility = 'private' and di.client_id = $%d and di.coach_id is null)
		)`, len(args)))
	default:
		conds = append(conds, `di.visibility = 'public'`)
	}

	if len(eff.Types) > 0 {
		args = append(args, eff.Types)
		conds = append(conds, fmt.Sprintf(`di.data_type = any($%d)`, len(args)))
	}
	if eff.CoachID != "" {
		args = append(args, eff.CoachID)
		conds = append(conds, fmt.Sprintf(`di.coach_id = $%d`, len(args)))
	}
	if eff.ClientID != "" {
		args = append(args, eff.ClientID)
		conds = append(conds, fmt.Sprintf(`di.client_id = $%d`, len(args)))
	}
	if eff.OrganizationID != "" {
		args = append(args, eff.OrganizationID)
		conds = append(conds, fmt.Sprintf(`di.organization_id = $%d`, len(args)))
	}

	return strings.Join(conds, " and "), args
}

// GetDataItem loads one item without its chunks.
func (s *Store) GetDataItem(ctx context.Context, id string) (domain.DataItem, error) {
	var (
		it       domain.DataItem
		coachID  sql.NullString
		clientID sql.NullString
		orgID    sql.NullString
		vis      string
		rawAttrs []byte
	)
	err := s.db.QueryRowContext(ctx, `
		select id, data_type, coach_id, client_id, organization_id, visibility, attributes, content, created_at, updated_at
		from data_items where id = $1
	`, id).Scan(&it.ID, &it.DataType, &coachID, &clientID, &orgID, &vis, &rawAttrs, &it.Content, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DataItem{}, ErrNotFound
	}
	if err != nil {
		return domain.DataItem{}, err
	}
	it.CoachID = coachID.String
	it.ClientID = clientID.String
	it.OrganizationID = orgID.String
	it.Visibility = domain.VisibilityLevel(vis)
	if len(rawAttrs) > 0 {
		if err := json.Unmarshal(rawAttrs, &it.Attributes); err != nil {
			return domain.DataItem{}, fmt.Errorf("decode attributes: %w", err)
		}
	}
	return it, nil
}
