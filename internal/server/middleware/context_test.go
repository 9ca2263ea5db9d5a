package middleware

import (
	"context"
	"testing"

	"auth-control-plane/internal/security"
)

func TestIdentityRoundTrip(t *testing.T) {
	id := &security.AccessIdentity{Subject: "acc-1", SubjectKind: security.SubjectKindUser, SessionID: "sess-1"}
	ctx := WithIdentity(context.Background(), id)

	got, ok := IdentityFromContext(ctx)
	if !ok {
		t.Fatal("identity not found in context")
	}
	if got.Subject != "acc-1" || got.SessionID != "sess-1" {
		t.Errorf("identity = %+v", got)
	}
}

func TestIdentityFromContext_Empty(t *testing.T) {
	if _, ok := IdentityFromContext(context.Background()); ok {
		t.Error("empty context should carry no identity")
	}
}

func TestIdentityFromContext_NilIdentity(t *testing.T) {
	ctx := WithIdentity(context.Background(), nil)
	if _, ok := IdentityFromContext(ctx); ok {
		t.Error("nil identity should read as absent")
	}
}

func TestBadCredentials(t *testing.T) {
	if BadCredentials(context.Background()) {
		t.Error("fresh context should not be marked")
	}
	if !BadCredentials(withBadCredentials(context.Background())) {
		t.Error("marked context should report bad credentials")
	}
}

func TestClientIP_Default(t *testing.T) {
	if got := ClientIP(context.Background()); got != "unknown" {
		t.Errorf("ip = %q, want %q", got, "unknown")
	}
}

func TestClientIP_RoundTrip(t *testing.T) {
	ctx := WithClientIP(context.Background(), "192.168.1.3")
	if got := ClientIP(ctx); got != "192.168.1.3" {
		t.Errorf("ip = %q, want %q", got, "192.168.1.3")
	}
}
