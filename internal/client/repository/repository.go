package repository

import (
	"context"
	"errors"

	"auth-control-plane/internal/client/domain"
)

// ErrDuplicate is returned by Create when the client_id already exists.
var ErrDuplicate = errors.New("client already exists")

// Repository defines persistence for M2M clients.
type Repository interface {
	GetByClientID(ctx context.Context, clientID string) (*domain.Client, error)
	Create(ctx context.Context, c *domain.Client) error
}
