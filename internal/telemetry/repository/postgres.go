package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"auth-control-plane/internal/telemetry/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a security event repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Save persists the security event. It sets e.ID on success.
func (r *PostgresRepository) Save(ctx context.Context, e *domain.SecurityEvent) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return r.db.QueryRowContext(ctx, `
		INSERT INTO security_events (account_id, client_id, session_id, event_type, source, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		nullStringFromPtr(e.AccountID),
		nullStringFromPtr(e.ClientID),
		nullStringFromPtr(e.SessionID),
		e.EventType,
		e.Source,
		eventMetadata(e.Metadata),
		createdAt,
	).Scan(&e.ID)
}

func nullStringFromPtr(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func eventMetadata(b []byte) json.RawMessage {
	if b == nil {
		return json.RawMessage("{}")
	}
	return json.RawMessage(b)
}
