package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tuyosu/pprating/internal/config"
	"github.com/tuyosu/pprating/internal/domain/model"
)

const apiKeyColumns = `id, user_id, api_key_hash, description, scopes, created_at, last_used_at, expires_at, revoked`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAPIKey(r rowScanner) (model.APIKey, error) {
	var (
		k                   model.APIKey
		desc, scopes        sql.NullString
		lastUsed, expiresAt sql.NullTime
	)
	if err := r.Scan(&k.ID, &k.UserID, &k.Hash, &desc, &scopes, &k.CreatedAt, &lastUsed, &expiresAt, &k.Revoked); err != nil {
		return model.APIKey{}, err
	}
	k.Description = desc.String
	k.Scopes = scopes.String
	if lastUsed.Valid {
		t := lastUsed.Time
		k.LastUsedAt = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		k.ExpiresAt = &t
	}
	return k, nil
}

// APIKeyByHash looks a key up by the hex SHA-256 of its plain text.
func (s *Store) APIKeyByHash(ctx context.Context, hash string) (model.APIKey, bool, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+apiKeyColumns+` FROM api_keys WHERE api_key_hash = ?`), hash)
	k, err := scanAPIKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.APIKey{}, false, nil
	}
	if err != nil {
		return model.APIKey{}, false, fail("load api key", err)
	}
	return k, true, nil
}

// TouchAPIKey sets last_used_at of the key with hash.
func (s *Store) TouchAPIKey(ctx context.Context, hash string, at time.Time) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`UPDATE api_keys SET last_used_at = ? WHERE api_key_hash = ?`), at.UTC(), hash); err != nil {
		return fail("touch api key", err)
	}
	return nil
}

// CreateAPIKey inserts a key and returns it with its id and creation time set.
func (s *Store) CreateAPIKey(ctx context.Context, k model.APIKey) (model.APIKey, error) {
	k.CreatedAt = s.now().UTC().Truncate(time.Second)
	var expires any
	if k.ExpiresAt != nil {
		expires = k.ExpiresAt.UTC()
	}
	args := []any{k.UserID, k.Hash, nullString(k.Description), nullString(k.Scopes), k.CreatedAt, expires}
	const insert = `INSERT INTO api_keys (user_id, api_key_hash, description, scopes, created_at, expires_at, revoked)
VALUES (?, ?, ?, ?, ?, ?, FALSE)`

	if s.backend == config.BackendPostgres {
		if err := s.db.QueryRowContext(ctx, s.rebind(insert+` RETURNING id`), args...).Scan(&k.ID); err != nil {
			return model.APIKey{}, fail("create api key", err)
		}
		return k, nil
	}
	res, err := s.db.ExecContext(ctx, insert, args...)
	if err != nil {
		return model.APIKey{}, fail("create api key", err)
	}
	if k.ID, err = res.LastInsertId(); err != nil {
		return model.APIKey{}, fail("create api key", err)
	}
	return k, nil
}

// APIKeysByUser lists a user's keys, newest first.
func (s *Store) APIKeysByUser(ctx context.Context, userID int64, includeRevoked bool) ([]model.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE user_id = ?`
	if !includeRevoked {
		query += ` AND revoked = FALSE`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), userID)
	if err != nil {
		return nil, fail("list api keys", err)
	}
	defer func() { _ = rows.Close() }()

	out := []model.APIKey{}
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, fail("scan api key", err)
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("iterate api keys", err)
	}
	return out, nil
}

// RevokeAPIKey revokes key id if it belongs to userID. ok is false when no
// such key exists.
func (s *Store) RevokeAPIKey(ctx context.Context, id, userID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE api_keys SET revoked = TRUE WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return false, fail("revoke api key", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fail("revoke api key", err)
	}
	if n > 0 {
		return true, nil
	}
	// MySQL reports changed rows, so an already revoked key reads as zero.
	var count int
	err = s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM api_keys WHERE id = ? AND user_id = ?`), id, userID).Scan(&count)
	if err != nil {
		return false, fail("revoke api key", err)
	}
	return count > 0, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
