package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"auth-control-plane/internal/token/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a refresh-token repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const tokenColumns = `id, session_id, account_id, scopes, token_hash, status, successor_id, issued_at, expires_at`

// Create persists a new token record.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (`+tokenColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.SessionID, t.AccountID, strings.Join(t.Scopes, " "), t.TokenHash,
		string(t.Status), nullString(t.SuccessorID), t.IssuedAt, t.ExpiresAt)
	return err
}

// GetByHash returns the token whose hash matches, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM refresh_tokens WHERE token_hash = $1`, hash)
	return scanToken(row)
}

// GetByID returns the token for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM refresh_tokens WHERE id = $1`, id)
	return scanToken(row)
}

// Consume runs the active->consumed transition and the successor insert in one
// transaction. The conditional UPDATE's row count decides the winner: zero
// rows means another caller consumed the token first and the transaction is
// rolled back.
func (r *PostgresRepository) Consume(ctx context.Context, id string, successor *domain.RefreshToken) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO refresh_tokens (`+tokenColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		successor.ID, successor.SessionID, successor.AccountID, strings.Join(successor.Scopes, " "),
		successor.TokenHash, string(successor.Status), nullString(successor.SuccessorID),
		successor.IssuedAt, successor.ExpiresAt); err != nil {
		return false, err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE refresh_tokens SET status = 'consumed', successor_id = $2 WHERE id = $1 AND status = 'active'`,
		id, successor.ID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// Revoke marks the token revoked, from any prior status. Unknown ids are a no-op.
func (r *PostgresRepository) Revoke(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET status = 'revoked' WHERE id = $1`, id)
	return err
}

// RevokeBySession marks every token belonging to the session revoked.
func (r *PostgresRepository) RevokeBySession(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET status = 'revoked' WHERE session_id = $1`, sessionID)
	return err
}

func scanToken(row *sql.Row) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	var scopes, status string
	var successor sql.NullString
	var issuedAt, expiresAt time.Time
	if err := row.Scan(&t.ID, &t.SessionID, &t.AccountID, &scopes, &t.TokenHash, &status, &successor, &issuedAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if scopes != "" {
		t.Scopes = strings.Fields(scopes)
	}
	t.Status = domain.Status(status)
	if successor.Valid {
		t.SuccessorID = successor.String
	}
	t.IssuedAt = issuedAt
	t.ExpiresAt = expiresAt
	return &t, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
