// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

package keystore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/gatehouse-project/gatehouse/lib/credhash"
	"github.com/gatehouse-project/gatehouse/lib/pak"
	"github.com/gatehouse-project/gatehouse/lib/sqlitepool"
)

// schema is applied on every open. CREATE IF NOT EXISTS makes reopening
// an existing database a no-op.
const schema = `
CREATE TABLE IF NOT EXISTS personal_api_keys (
    id            TEXT PRIMARY KEY,
    owner_user_id TEXT NOT NULL,
    owner_role    TEXT NOT NULL,
    label         TEXT,
    token_id      TEXT NOT NULL UNIQUE,
    secret_hash   TEXT NOT NULL,
    created_at    INTEGER NOT NULL,
    expires_at    INTEGER,
    last_used_at  INTEGER,
    revoked_at    INTEGER
);

CREATE INDEX IF NOT EXISTS idx_pak_owner
    ON personal_api_keys(owner_user_id, created_at);
`

// Config holds the parameters for opening a keystore.
type Config struct {
	// Path is the filesystem path to the SQLite database file. The
	// parent directory must exist. The file is created if it does
	// not exist.
	Path string

	// PoolSize is the number of connections in the pool. Defaults to
	// sqlitepool.DefaultPoolSize if zero or negative.
	PoolSize int

	// Logger receives operational messages.
	Logger *slog.Logger
}

// Keystore is the SQLite-backed pak.Store. Safe for concurrent use:
// each method borrows its own connection from the pool.
type Keystore struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

var _ pak.Store = (*Keystore)(nil)

// Open opens the key database, creating the file and schema as needed.
// The caller must call Close when done.
func Open(cfg Config) (*Keystore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("keystore: Path is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("keystore: Logger is required")
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("keystore: %w", err)
	}

	store := &Keystore{
		pool:   pool,
		logger: cfg.Logger,
	}

	if err := store.applySchema(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("keystore: applying schema: %w", err)
	}

	return store, nil
}

// Close closes the underlying connection pool. Blocks until all
// borrowed connections are returned.
func (s *Keystore) Close() error {
	return s.pool.Close()
}

func (s *Keystore) applySchema() error {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)
	return sqlitex.ExecuteScript(conn, schema, nil)
}

// Insert persists a new key row. A token_id collision returns an error
// wrapping pak.ErrDuplicateTokenID.
func (s *Keystore) Insert(ctx context.Context, key pak.Key) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("keystore: insert: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `INSERT INTO personal_api_keys
		(id, owner_user_id, owner_role, label, token_id, secret_hash,
		 created_at, expires_at, last_used_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				key.ID,
				key.OwnerUserID,
				key.OwnerRole,
				key.Label,
				key.TokenID,
				key.SecretHash.String(),
				key.CreatedAt.Unix(),
				unixColumn(key.ExpiresAt),
				unixColumn(key.LastUsedAt),
				unixColumn(key.RevokedAt),
			},
		})
	if err != nil {
		return fmt.Errorf("keystore: insert %s: %w", key.ID, classify(err))
	}
	return nil
}

// GetByTokenID returns the row whose token_id matches, or an error
// wrapping pak.ErrKeyNotFound.
func (s *Keystore) GetByTokenID(ctx context.Context, tokenID string) (pak.Key, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return pak.Key{}, fmt.Errorf("keystore: get: %w", err)
	}
	defer s.pool.Put(conn)

	var key pak.Key
	found := false
	err = sqlitex.Execute(conn, `SELECT id, owner_user_id, owner_role,
		label, token_id, secret_hash, created_at, expires_at,
		last_used_at, revoked_at
		FROM personal_api_keys WHERE token_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{tokenID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				scanned, err := scanKey(stmt)
				if err != nil {
					return err
				}
				key = scanned
				found = true
				return nil
			},
		})
	if err != nil {
		return pak.Key{}, fmt.Errorf("keystore: get token %s: %w", tokenID, classify(err))
	}
	if !found {
		return pak.Key{}, fmt.Errorf("keystore: get token %s: %w", tokenID, pak.ErrKeyNotFound)
	}
	return key, nil
}

// ListByOwner returns all of an owner's rows, newest first. Rows
// created in the same second keep insertion order, newest first.
func (s *Keystore) ListByOwner(ctx context.Context, ownerUserID string) ([]pak.Key, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("keystore: list: %w", err)
	}
	defer s.pool.Put(conn)

	var keys []pak.Key
	err = sqlitex.Execute(conn, `SELECT id, owner_user_id, owner_role,
		label, token_id, secret_hash, created_at, expires_at,
		last_used_at, revoked_at
		FROM personal_api_keys
		WHERE owner_user_id = ?
		ORDER BY created_at DESC, rowid DESC`,
		&sqlitex.ExecOptions{
			Args: []any{ownerUserID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				scanned, err := scanKey(stmt)
				if err != nil {
					return err
				}
				keys = append(keys, scanned)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("keystore: list owner %s: %w", ownerUserID, classify(err))
	}
	return keys, nil
}

// Revoke sets revoked_at on the owner's row. Already-revoked rows are
// left untouched and return nil. A row that does not exist for this
// owner returns an error wrapping pak.ErrKeyNotFound.
func (s *Keystore) Revoke(ctx context.Context, id, ownerUserID string, at time.Time) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("keystore: revoke: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `UPDATE personal_api_keys
		SET revoked_at = ?
		WHERE id = ? AND owner_user_id = ? AND revoked_at IS NULL`,
		&sqlitex.ExecOptions{
			Args: []any{at.Unix(), id, ownerUserID},
		})
	if err != nil {
		return fmt.Errorf("keystore: revoke %s: %w", id, classify(err))
	}
	if conn.Changes() > 0 {
		return nil
	}

	// Zero rows changed: either the row is already revoked (success,
	// revocation is idempotent) or it does not exist for this owner.
	exists := false
	err = sqlitex.Execute(conn, `SELECT 1 FROM personal_api_keys
		WHERE id = ? AND owner_user_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{id, ownerUserID},
			ResultFunc: func(*sqlite.Stmt) error {
				exists = true
				return nil
			},
		})
	if err != nil {
		return fmt.Errorf("keystore: revoke %s: %w", id, classify(err))
	}
	if !exists {
		return fmt.Errorf("keystore: revoke %s: %w", id, pak.ErrKeyNotFound)
	}
	return nil
}

// TouchLastUsed updates last_used_at on a row. A touch that matches
// no row is not an error; last-used tracking is best effort.
func (s *Keystore) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("keystore: touch: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `UPDATE personal_api_keys
		SET last_used_at = ? WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{at.Unix(), id},
		})
	if err != nil {
		return fmt.Errorf("keystore: touch %s: %w", id, classify(err))
	}
	return nil
}

// scanKey reads one personal_api_keys row from a result set. Column
// order matches the SELECT lists above.
func scanKey(stmt *sqlite.Stmt) (pak.Key, error) {
	key := pak.Key{
		ID:          stmt.ColumnText(0),
		OwnerUserID: stmt.ColumnText(1),
		OwnerRole:   stmt.ColumnText(2),
		Label:       stmt.ColumnText(3),
		TokenID:     stmt.ColumnText(4),
		CreatedAt:   time.Unix(stmt.ColumnInt64(6), 0).UTC(),
		ExpiresAt:   timeColumn(stmt, 7),
		LastUsedAt:  timeColumn(stmt, 8),
		RevokedAt:   timeColumn(stmt, 9),
	}

	digest, err := credhash.ParseDigest(stmt.ColumnText(5))
	if err != nil {
		return pak.Key{}, fmt.Errorf("row %s: secret hash: %w", key.ID, err)
	}
	key.SecretHash = digest

	return key, nil
}

// timeColumn reads a nullable Unix-seconds column.
func timeColumn(stmt *sqlite.Stmt, col int) *time.Time {
	if stmt.ColumnIsNull(col) {
		return nil
	}
	t := time.Unix(stmt.ColumnInt64(col), 0).UTC()
	return &t
}

// unixColumn converts an optional timestamp to its column value, nil
// mapping to SQL NULL.
func unixColumn(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

// classify maps SQLite failure codes onto the pak store contract
// errors. Anything unrecognized passes through unchanged.
func classify(err error) error {
	code := sqlite.ErrCode(err)
	switch {
	case code == sqlite.ResultConstraintUnique:
		return fmt.Errorf("%w: %w", pak.ErrDuplicateTokenID, err)
	case code.ToPrimary() == sqlite.ResultBusy, code.ToPrimary() == sqlite.ResultLocked:
		return fmt.Errorf("%w: %w", pak.ErrBusy, err)
	}
	return err
}
