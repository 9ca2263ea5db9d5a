package service

import (
	"context"
	"errors"
	"testing"
	"time"

	accountrepo "auth-control-plane/internal/account/repository"
	"auth-control-plane/internal/security"
	sessionrepo "auth-control-plane/internal/session/repository"
	tokenrepo "auth-control-plane/internal/token/repository"
	tokensvc "auth-control-plane/internal/token/service"
)

func newTestAuthService(t *testing.T) (*AuthService, *tokensvc.RotationService) {
	t.Helper()
	provider, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	accounts := accountrepo.NewMemoryRepository()
	sessions := sessionrepo.NewMemoryRepository()
	tokens := tokenrepo.NewMemoryRepository(0)
	rotation := tokensvc.NewRotationService(tokens, sessions, provider, 24*time.Hour)
	hasher := security.NewHasher(10)
	svc := NewAuthService(accounts, sessions, rotation, hasher, 48*time.Hour, []string{"read", "write"})
	return svc, rotation
}

func TestAuthService_Register(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	account, err := svc.Register(ctx, "alice", "Alice@Example.com", "password123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if account.ID == "" {
		t.Fatal("expected account id")
	}
	if account.Email != "alice@example.com" {
		t.Errorf("email not normalized: got %q", account.Email)
	}
	if account.PasswordHash == "" || account.PasswordHash == "password123" {
		t.Error("password stored in the clear or not at all")
	}

	if _, err := svc.Register(ctx, "alice", "other@example.com", "password123"); err != ErrConflict {
		t.Errorf("duplicate username: want ErrConflict, got %v", err)
	}
	if _, err := svc.Register(ctx, "alice2", "alice@example.com", "password123"); err != ErrConflict {
		t.Errorf("duplicate email: want ErrConflict, got %v", err)
	}
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	for _, tc := range []struct {
		name                      string
		username, email, password string
	}{
		{"empty username", "", "a@b.co", "password123"},
		{"bad email", "bob", "not-an-email", "password123"},
		{"short password", "bob", "a@b.co", "short"},
	} {
		_, err := svc.Register(ctx, tc.username, tc.email, tc.password)
		if !errors.Is(err, ErrValidation) {
			t.Errorf("%s: want ErrValidation, got %v", tc.name, err)
		}
	}
}

func TestAuthService_VerifyUserCredentials(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "alice", "alice@example.com", "password123"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	account, err := svc.VerifyUserCredentials(ctx, "alice", "password123")
	if err != nil {
		t.Fatalf("VerifyUserCredentials: %v", err)
	}
	if account.Username != "alice" {
		t.Errorf("username: got %q", account.Username)
	}

	// Wrong password and unknown user are indistinguishable.
	if _, err := svc.VerifyUserCredentials(ctx, "alice", "wrong-password"); err != ErrInvalidCredentials {
		t.Errorf("wrong password: want ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.VerifyUserCredentials(ctx, "nobody", "password123"); err != ErrInvalidCredentials {
		t.Errorf("unknown user: want ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.VerifyUserCredentials(ctx, "alice", ""); err != ErrInvalidCredentials {
		t.Errorf("empty password: want ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Login(t *testing.T) {
	svc, rotation := newTestAuthService(t)
	ctx := context.Background()
	account, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	res, err := svc.Login(ctx, "alice", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("Login should return a token pair")
	}
	if res.AccountID != account.ID || res.SessionID == "" {
		t.Errorf("login identity: got account=%q session=%q", res.AccountID, res.SessionID)
	}
	if len(res.Scopes) != 2 || res.Scopes[0] != "read" || res.Scopes[1] != "write" {
		t.Errorf("scopes: got %v", res.Scopes)
	}

	// The refresh token is live and bound to the session.
	pair, err := rotation.Refresh(ctx, res.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh after login: %v", err)
	}
	if pair.SessionID != res.SessionID {
		t.Errorf("rotated pair session: got %q, want %q", pair.SessionID, res.SessionID)
	}

	if _, err := svc.Login(ctx, "alice", "wrong"); err != ErrInvalidCredentials {
		t.Errorf("wrong password login: want ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_CurrentUser(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "alice", "alice@example.com", "password123"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	res, err := svc.Login(ctx, "alice", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	account, err := svc.CurrentUser(ctx, res.SessionID)
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if account.Username != "alice" {
		t.Errorf("username: got %q", account.Username)
	}

	if _, err := svc.CurrentUser(ctx, ""); err != ErrNoSession {
		t.Errorf("no session: want ErrNoSession, got %v", err)
	}
	if _, err := svc.CurrentUser(ctx, "unknown-session"); err != ErrSessionRevoked {
		t.Errorf("unknown session: want ErrSessionRevoked, got %v", err)
	}
}

func TestAuthService_LogoutRevokesSessionAndLineage(t *testing.T) {
	svc, rotation := newTestAuthService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "alice", "alice@example.com", "password123"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	res, err := svc.Login(ctx, "alice", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	rotated, err := rotation.Refresh(ctx, res.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if err := svc.Logout(ctx, res.SessionID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.CurrentUser(ctx, res.SessionID); err != ErrSessionRevoked {
		t.Errorf("CurrentUser after logout: want ErrSessionRevoked, got %v", err)
	}
	// Every lineage member is dead, the active tip included.
	if _, err := rotation.Refresh(ctx, rotated.RefreshToken); err != tokensvc.ErrInvalidToken {
		t.Errorf("refresh tip after logout: want ErrInvalidToken, got %v", err)
	}
	if _, err := rotation.Refresh(ctx, res.RefreshToken); err != tokensvc.ErrInvalidToken {
		t.Errorf("refresh consumed ancestor after logout: want ErrInvalidToken, got %v", err)
	}

	// Logout is idempotent, for known and unknown sessions alike.
	if err := svc.Logout(ctx, res.SessionID); err != nil {
		t.Errorf("repeat logout: %v", err)
	}
	if err := svc.Logout(ctx, "unknown-session"); err != nil {
		t.Errorf("logout unknown session: %v", err)
	}
	if err := svc.Logout(ctx, ""); err != nil {
		t.Errorf("logout empty session: %v", err)
	}
}
