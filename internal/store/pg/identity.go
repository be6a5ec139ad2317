package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"coachscope.org/internal/domain"
	"coachscope.org/internal/identity"
	"coachscope.org/internal/ids"
)

var _ identity.Store = (*Store)(nil)

// CredentialsByPrefix returns all credential records with the given lookup
// prefix, including revoked ones: revocation must be distinguishable from
// not-found in the audit trail.
func (s *Store) CredentialsByPrefix(ctx context.Context, prefix string) ([]identity.Credential, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, prefix, secret_hash, kind, subject_id, expires_at, revoked, last_used_at, created_at
		from credentials
		where prefix = $1
	`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []identity.Credential
	for rows.Next() {
		var (
			c          identity.Credential
			kind       string
			expiresAt  sql.NullTime
			lastUsedAt sql.NullTime
		)
		if err := rows.Scan(&c.ID, &c.Prefix, &c.SecretHash, &kind, &c.SubjectID, &expiresAt, &c.Revoked, &lastUsedAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Kind = identity.Kind(kind)
		if expiresAt.Valid {
			c.ExpiresAt = expiresAt.Time
		}
		if lastUsedAt.Valid {
			c.LastUsedAt = lastUsedAt.Time
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// TouchCredential updates the last-used timestamp. Callers treat failures
// as non-fatal.
func (s *Store) TouchCredential(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `update credentials set last_used_at = now() where id = $1`, id)
	return err
}

// CreateCredential persists a freshly minted credential record.
func (s *Store) CreateCredential(ctx context.Context, c *identity.Credential) error {
	if c.ID == "" {
		c.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into credentials (id, prefix, secret_hash, kind, subject_id, expires_at)
		values ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.Prefix, c.SecretHash, string(c.Kind), c.SubjectID, nullableTime(c.ExpiresAt))
	return mapWriteError(err)
}

// RevokeCredential soft-deletes a credential. Records stay on disk while
// referenced by audit history; the flag takes effect on the very next
// resolution.
func (s *Store) RevokeCredential(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `update credentials set revoked = true where id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignedClientIDs returns the coach's current link set.
func (s *Store) AssignedClientIDs(ctx context.Context, coachID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select client_id from coach_client_links where coach_id = $1
	`, coachID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	return result, rows.Err()
}

// OrganizationsForClients returns the distinct organizations of the given
// clients.
func (s *Store) OrganizationsForClients(ctx context.Context, clientIDs []string) ([]string, error) {
	if len(clientIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		select distinct organization_id
		from clients
		where id = any($1) and organization_id is not null
	`, clientIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	return result, rows.Err()
}

// CreateCoach inserts a coach.
func (s *Store) CreateCoach(ctx context.Context, c *domain.Coach) error {
	if c.ID == "" {
		c.ID = ids.New()
	}
	err := s.db.QueryRowContext(ctx, `
		insert into coaches (id, name, email)
		values ($1, $2, $3)
		returning created_at, updated_at
	`, c.ID, c.Name, strings.ToLower(c.Email)).Scan(&c.CreatedAt, &c.UpdatedAt)
	return mapWriteError(err)
}

// CreateClient inserts a client.
func (s *Store) CreateClient(ctx context.Context, c *domain.Client) error {
	if c.ID == "" {
		c.ID = ids.New()
	}
	err := s.db.QueryRowContext(ctx, `
		insert into clients (id, name, email, primary_coach_id, organization_id)
		values ($1, $2, $3, $4, $5)
		returning created_at, updated_at
	`, c.ID, c.Name, strings.ToLower(c.Email), nullable(c.PrimaryCoachID), nullable(c.OrganizationID)).Scan(&c.CreatedAt, &c.UpdatedAt)
	return mapWriteError(err)
}

// CreateOrganization inserts an organization.
func (s *Store) CreateOrganization(ctx context.Context, o *domain.Organization) error {
	if o.ID == "" {
		o.ID = ids.New()
	}
	err := s.db.QueryRowContext(ctx, `
		insert into organizations (id, name)
		values ($1, $2)
		returning created_at, updated_at
	`, o.ID, o.Name).Scan(&o.CreatedAt, &o.UpdatedAt)
	return mapWriteError(err)
}

// AssignClient links a client to a coach. Idempotent.
func (s *Store) AssignClient(ctx context.Context, coachID, clientID string) error {
	_, err := s.db.ExecContext(ctx, `
		insert into coach_client_links (coach_id, client_id)
		values ($1, $2)
		on conflict (coach_id, client_id) do nothing
	`, coachID, clientID)
	return mapWriteError(err)
}

// UnassignClient removes a coach-client link. The coach's very next scope
// build no longer includes the client.
func (s *Store) UnassignClient(ctx context.Context, coachID, clientID string) error {
	res, err := s.db.ExecContext(ctx, `
		delete from coach_client_links where coach_id = $1 and client_id = $2
	`, coachID, clientID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetClient loads one client.
func (s *Store) GetClient(ctx context.Context, id string) (domain.Client, error) {
	var (
		c       domain.Client
		coachID sql.NullString
		orgID   sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, name, email, primary_coach_id, organization_id, created_at, updated_at
		from clients where id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Email, &coachID, &orgID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Client{}, ErrNotFound
	}
	if err != nil {
		return domain.Client{}, err
	}
	c.PrimaryCoachID = coachID.String
	c.OrganizationID = orgID.String
	return c, nil
}
