package telemetry

import (
	"context"
	"log"

	"auth-control-plane/internal/telemetry/domain"
)

// EventEmitter emits security events (e.g. to Kafka or OTel Logs).
// Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.SecurityEvent) error
}

// MultiEmitter fans an event out to several emitters. Each emitter is
// attempted; failures are logged and the last error is returned.
type MultiEmitter []EventEmitter

// Emit sends the event to every emitter in order.
func (m MultiEmitter) Emit(ctx context.Context, event *domain.SecurityEvent) error {
	var lastErr error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, event); err != nil {
			log.Printf("telemetry: emit failed: %v", err)
			lastErr = err
		}
	}
	return lastErr
}
