package repository

import (
	"context"

	"auth-control-plane/internal/telemetry/domain"
)

// Repository defines persistence for security events.
type Repository interface {
	Save(ctx context.Context, e *domain.SecurityEvent) error
}
