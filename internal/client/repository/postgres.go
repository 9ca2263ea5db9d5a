package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"auth-control-plane/internal/client/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a client repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByClientID returns the client with the given client_id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByClientID(ctx context.Context, clientID string) (*domain.Client, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT client_id, secret_hash, allowed_scopes, created_at FROM clients WHERE client_id = $1`, clientID)
	var c domain.Client
	var scopes string
	if err := row.Scan(&c.ClientID, &c.SecretHash, &scopes, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.AllowedScopes = splitScopes(scopes)
	return &c, nil
}

// Create persists the client to the database. A duplicate client_id is
// returned as ErrDuplicate.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.Client) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO clients (client_id, secret_hash, allowed_scopes, created_at) VALUES ($1, $2, $3, $4)`,
		c.ClientID, c.SecretHash, strings.Join(c.AllowedScopes, " "), c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
	}
	return err
}

// Scopes are stored space-joined, matching the OAuth wire format.
func splitScopes(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}
