package repository

import (
	"context"
	"errors"

	"auth-control-plane/internal/account/domain"
)

// ErrDuplicate is returned by Create when a unique constraint (id, username,
// or email) is violated.
var ErrDuplicate = errors.New("account already exists")

// Repository defines persistence for accounts.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByUsername(ctx context.Context, username string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Create(ctx context.Context, a *domain.Account) error
}
