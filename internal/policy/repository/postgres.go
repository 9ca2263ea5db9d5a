package repository

import (
	"context"
	"database/sql"

	"auth-control-plane/internal/policy/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a scope-policy repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ListEnabled returns all enabled scope policies, oldest first.
func (r *PostgresRepository) ListEnabled(ctx context.Context) ([]*domain.ScopePolicy, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, rules, enabled, created_at FROM scope_policies WHERE enabled ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.ScopePolicy
	for rows.Next() {
		var p domain.ScopePolicy
		if err := rows.Scan(&p.ID, &p.Name, &p.Rules, &p.Enabled, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// Create persists the scope policy to the database.
func (r *PostgresRepository) Create(ctx context.Context, p *domain.ScopePolicy) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO scope_policies (id, name, rules, enabled, created_at) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Name, p.Rules, p.Enabled, p.CreatedAt)
	return err
}
