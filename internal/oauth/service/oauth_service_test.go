package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	clientrepo "auth-control-plane/internal/client/repository"
	"auth-control-plane/internal/security"
	sessiondomain "auth-control-plane/internal/session/domain"
	sessionrepo "auth-control-plane/internal/session/repository"
	tokendomain "auth-control-plane/internal/token/domain"
	tokenrepo "auth-control-plane/internal/token/repository"
)

func newTestOAuthService(t *testing.T) (*OAuthService, *tokenrepo.MemoryRepository, *sessionrepo.MemoryRepository, *security.TokenProvider) {
	t.Helper()
	provider, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	clients := clientrepo.NewMemoryRepository()
	tokens := tokenrepo.NewMemoryRepository(0)
	sessions := sessionrepo.NewMemoryRepository()
	svc := NewOAuthService(clients, tokens, sessions, provider, security.NewHasher(10))
	return svc, tokens, sessions, provider
}

func TestOAuthService_CreateClientAndVerify(t *testing.T) {
	svc, _, _, _ := newTestOAuthService(t)
	ctx := context.Background()

	secret, err := svc.CreateClient(ctx, "svc-a", []string{"read", "write"})
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	if secret == "" {
		t.Fatal("expected a generated secret")
	}

	client, err := svc.VerifyClientCredentials(ctx, "svc-a", secret)
	if err != nil {
		t.Fatalf("VerifyClientCredentials: %v", err)
	}
	if client.ClientID != "svc-a" {
		t.Errorf("client id: got %q", client.ClientID)
	}
	if client.SecretHash == secret {
		t.Error("secret stored in the clear")
	}

	if _, err := svc.VerifyClientCredentials(ctx, "svc-a", "wrong"); err != ErrInvalidClient {
		t.Errorf("wrong secret: want ErrInvalidClient, got %v", err)
	}
	if _, err := svc.VerifyClientCredentials(ctx, "nobody", secret); err != ErrInvalidClient {
		t.Errorf("unknown client: want ErrInvalidClient, got %v", err)
	}
	if _, err := svc.VerifyClientCredentials(ctx, "svc-a", ""); err != ErrInvalidClient {
		t.Errorf("empty secret: want ErrInvalidClient, got %v", err)
	}

	if _, err := svc.CreateClient(ctx, "svc-a", nil); err != ErrClientExists {
		t.Errorf("duplicate client: want ErrClientExists, got %v", err)
	}
}

func TestOAuthService_IssueClientTokens(t *testing.T) {
	svc, _, _, provider := newTestOAuthService(t)
	ctx := context.Background()
	secret, err := svc.CreateClient(ctx, "svc-a", []string{"read", "write"})
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}

	grant, err := svc.IssueClientTokens(ctx, "svc-a", secret, []string{"read"})
	if err != nil {
		t.Fatalf("IssueClientTokens: %v", err)
	}
	if len(grant.Scopes) != 1 || grant.Scopes[0] != "read" {
		t.Errorf("scopes: got %v", grant.Scopes)
	}
	id, err := provider.ValidateAccess(grant.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if id.Subject != "svc-a" || id.SubjectKind != security.SubjectKindClient {
		t.Errorf("token identity: got sub=%q kind=%q", id.Subject, id.SubjectKind)
	}
	if id.SessionID != "" {
		t.Errorf("client token carries session id %q", id.SessionID)
	}

	if _, err := svc.IssueClientTokens(ctx, "svc-a", "wrong", nil); err != ErrInvalidClient {
		t.Errorf("bad secret: want ErrInvalidClient, got %v", err)
	}
}

func TestOAuthService_IssueClientTokensTruncatesScopes(t *testing.T) {
	svc, _, _, _ := newTestOAuthService(t)
	ctx := context.Background()
	secret, err := svc.CreateClient(ctx, "svc-a", []string{"read", "write"})
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}

	// Over-asking truncates silently; no error, no admin scope.
	grant, err := svc.IssueClientTokens(ctx, "svc-a", secret, []string{"read", "admin"})
	if err != nil {
		t.Fatalf("IssueClientTokens: %v", err)
	}
	if len(grant.Scopes) != 1 || grant.Scopes[0] != "read" {
		t.Errorf("truncated scopes: got %v, want [read]", grant.Scopes)
	}

	// Empty request grants everything the client is allowed.
	grant, err = svc.IssueClientTokens(ctx, "svc-a", secret, nil)
	if err != nil {
		t.Fatalf("IssueClientTokens: %v", err)
	}
	if len(grant.Scopes) != 2 {
		t.Errorf("default scopes: got %v, want all allowed", grant.Scopes)
	}
}

func TestOAuthService_IntrospectAccessToken(t *testing.T) {
	svc, _, _, provider := newTestOAuthService(t)
	ctx := context.Background()
	secret, err := svc.CreateClient(ctx, "svc-a", []string{"read"})
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	grant, err := svc.IssueClientTokens(ctx, "svc-a", secret, nil)
	if err != nil {
		t.Fatalf("IssueClientTokens: %v", err)
	}

	out := svc.Introspect(ctx, grant.AccessToken)
	if !out.Active {
		t.Fatal("client access token should be active")
	}
	if out.TokenType != TokenTypeAccess || out.ClientID != "svc-a" || out.Scope != "read" {
		t.Errorf("introspection: got %+v", out)
	}
	if out.Exp == 0 || out.Iat == 0 || out.Jti == "" {
		t.Errorf("missing temporal claims: %+v", out)
	}

	// A user access token reports the session instead of a client id.
	userToken, _, _, err := provider.IssueAccess("acc-1", security.SubjectKindUser, "sess-1", []string{"read"})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	out = svc.Introspect(ctx, userToken)
	if !out.Active || out.ClientID != "" || out.SessionID != "sess-1" || out.Sub != "acc-1" {
		t.Errorf("user token introspection: got %+v", out)
	}
}

func TestOAuthService_IntrospectRefreshToken(t *testing.T) {
	svc, tokens, sessions, _ := newTestOAuthService(t)
	ctx := context.Background()

	now := time.Now().UTC()
	sessionID := uuid.New().String()
	if err := sessions.Create(ctx, &sessiondomain.Session{
		ID:        sessionID,
		AccountID: "acc-1",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}); err != nil {
		t.Fatalf("create session: %v", err)
	}
	value, err := security.NewOpaqueToken()
	if err != nil {
		t.Fatalf("NewOpaqueToken: %v", err)
	}
	rec := &tokendomain.RefreshToken{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		AccountID: "acc-1",
		Scopes:    []string{"read", "write"},
		TokenHash: security.HashRefreshToken(value),
		Status:    tokendomain.StatusActive,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
	if err := tokens.Create(ctx, rec); err != nil {
		t.Fatalf("create token: %v", err)
	}

	out := svc.Introspect(ctx, value)
	if !out.Active {
		t.Fatal("active refresh token should introspect active")
	}
	if out.TokenType != TokenTypeRefresh || out.Sub != "acc-1" || out.Scope != "read write" || out.SessionID != sessionID {
		t.Errorf("introspection: got %+v", out)
	}

	// Revoked record goes inactive.
	if err := tokens.Revoke(ctx, rec.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if out := svc.Introspect(ctx, value); out.Active {
		t.Error("revoked refresh token should be inactive")
	}
}

func TestOAuthService_IntrospectRefreshDeadSession(t *testing.T) {
	svc, tokens, sessions, _ := newTestOAuthService(t)
	ctx := context.Background()

	now := time.Now().UTC()
	sessionID := uuid.New().String()
	if err := sessions.Create(ctx, &sessiondomain.Session{
		ID:        sessionID,
		AccountID: "acc-1",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}); err != nil {
		t.Fatalf("create session: %v", err)
	}
	value, err := security.NewOpaqueToken()
	if err != nil {
		t.Fatalf("NewOpaqueToken: %v", err)
	}
	if err := tokens.Create(ctx, &tokendomain.RefreshToken{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		AccountID: "acc-1",
		TokenHash: security.HashRefreshToken(value),
		Status:    tokendomain.StatusActive,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("create token: %v", err)
	}
	if err := sessions.Revoke(ctx, sessionID); err != nil {
		t.Fatalf("revoke session: %v", err)
	}

	if out := svc.Introspect(ctx, value); out.Active {
		t.Error("refresh token with a revoked session should be inactive")
	}
}

func TestOAuthService_IntrospectNeverLeaksOnGarbage(t *testing.T) {
	svc, _, _, _ := newTestOAuthService(t)
	ctx := context.Background()

	for _, value := range []string{"", "garbage", "eyJhbGciOiJIUzI1NiJ9.broken.sig"} {
		out := svc.Introspect(ctx, value)
		if out.Active {
			t.Errorf("%q: should be inactive", value)
		}
		if out.TokenType != "" || out.Sub != "" || out.Scope != "" || out.Exp != 0 {
			t.Errorf("%q: inactive introspection leaks fields: %+v", value, out)
		}
	}
}
