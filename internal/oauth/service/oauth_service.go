package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	clientdomain "auth-control-plane/internal/client/domain"
	"auth-control-plane/internal/security"
	sessiondomain "auth-control-plane/internal/session/domain"
	tokendomain "auth-control-plane/internal/token/domain"
)

// Sentinel errors for the oauth service; the handler maps them onto the
// RFC 6749 error envelope. A credential failure (ErrInvalidClient) and a
// grant failure (ErrUnsupportedGrant) are distinct and never collapse.
var (
	ErrInvalidClient    = errors.New("invalid client credentials")
	ErrUnsupportedGrant = errors.New("unsupported grant type")
	ErrClientExists     = errors.New("client id already registered")
)

// GrantClientCredentials is the only grant type served by the token endpoint.
const GrantClientCredentials = "client_credentials"

// Token type labels reported by introspection.
const (
	TokenTypeAccess  = "access_token"
	TokenTypeRefresh = "refresh_token"
)

// AccessGrant is the outcome of the client-credentials grant: an access
// token with no refresh lineage behind it.
type AccessGrant struct {
	AccessToken string
	ExpiresAt   time.Time
	ClientID    string
	Scopes      []string
}

// Introspection is the RFC 7662 response body. Inactive tokens carry the
// active flag and nothing else.
type Introspection struct {
	Active    bool   `json:"active"`
	TokenType string `json:"token_type,omitempty"`
	Sub       string `json:"sub,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Scope     string `json:"scope,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Iat       int64  `json:"iat,omitempty"`
	Jti       string `json:"jti,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// ClientRepo is the minimal client repository needed by the oauth service.
type ClientRepo interface {
	GetByClientID(ctx context.Context, clientID string) (*clientdomain.Client, error)
	Create(ctx context.Context, c *clientdomain.Client) error
}

// TokenRepo is the refresh-token lookup needed by introspection.
type TokenRepo interface {
	GetByHash(ctx context.Context, hash string) (*tokendomain.RefreshToken, error)
}

// SessionRepo is the session lookup needed by introspection.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
}

// OAuthService implements the client-credentials grant and token
// introspection.
type OAuthService struct {
	clientRepo  ClientRepo
	tokenRepo   TokenRepo
	sessionRepo SessionRepo
	provider    *security.TokenProvider
	hasher      *security.Hasher

	clientGrants metric.Int64Counter
}

// NewOAuthService returns an OAuthService with the given dependencies.
func NewOAuthService(
	clientRepo ClientRepo,
	tokenRepo TokenRepo,
	sessionRepo SessionRepo,
	provider *security.TokenProvider,
	hasher *security.Hasher,
) *OAuthService {
	meter := otel.Meter("auth-control-plane/oauth")
	clientGrants, _ := meter.Int64Counter("auth.client_tokens_issued",
		metric.WithDescription("Access tokens issued via the client-credentials grant"))
	return &OAuthService{
		clientRepo:   clientRepo,
		tokenRepo:    tokenRepo,
		sessionRepo:  sessionRepo,
		provider:     provider,
		hasher:       hasher,
		clientGrants: clientGrants,
	}
}

// CreateClient registers a machine client with the given allowed scopes and
// returns the generated secret. The clear secret is returned exactly once;
// only its hash is stored.
func (s *OAuthService) CreateClient(ctx context.Context, clientID string, allowedScopes []string) (string, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return "", errors.New("client id is required")
	}
	existing, err := s.clientRepo.GetByClientID(ctx, clientID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", ErrClientExists
	}
	secret, err := security.NewOpaqueToken()
	if err != nil {
		return "", err
	}
	hashed, err := s.hasher.Hash([]byte(secret))
	if err != nil {
		return "", err
	}
	client := &clientdomain.Client{
		ClientID:      clientID,
		SecretHash:    hashed,
		AllowedScopes: allowedScopes,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.clientRepo.Create(ctx, client); err != nil {
		return "", err
	}
	return secret, nil
}

// VerifyClientCredentials authenticates a client_id/client_secret pair.
// Unknown client and wrong secret both return ErrInvalidClient; the bcrypt
// compare keeps the secret check constant-time.
func (s *OAuthService) VerifyClientCredentials(ctx context.Context, clientID, clientSecret string) (*clientdomain.Client, error) {
	if clientID == "" || clientSecret == "" {
		return nil, ErrInvalidClient
	}
	client, err := s.clientRepo.GetByClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if client == nil || client.SecretHash == "" {
		return nil, ErrInvalidClient
	}
	if err := s.hasher.Compare(client.SecretHash, []byte(clientSecret)); err != nil {
		return nil, ErrInvalidClient
	}
	return client, nil
}

// IssueClientTokens runs the client-credentials grant: verify the client,
// narrow the requested scopes to what the client may hold, and mint an
// access token. No refresh token is issued for machine clients.
func (s *OAuthService) IssueClientTokens(ctx context.Context, clientID, clientSecret string, requestedScopes []string) (*AccessGrant, error) {
	client, err := s.VerifyClientCredentials(ctx, clientID, clientSecret)
	if err != nil {
		return nil, err
	}
	scopes := client.GrantableScopes(requestedScopes)
	token, _, expiresAt, err := s.provider.IssueAccess(client.ClientID, security.SubjectKindClient, "", scopes)
	if err != nil {
		return nil, err
	}
	if s.clientGrants != nil {
		s.clientGrants.Add(ctx, 1)
	}
	return &AccessGrant{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		ClientID:    client.ClientID,
		Scopes:      scopes,
	}, nil
}

// Introspect reports the state of an access or refresh token. It never
// returns an error: anything unknown, expired, revoked, or malformed is
// simply inactive.
func (s *OAuthService) Introspect(ctx context.Context, tokenValue string) *Introspection {
	if tokenValue == "" {
		return &Introspection{Active: false}
	}
	if id, err := s.provider.ValidateAccess(tokenValue); err == nil {
		out := &Introspection{
			Active:    true,
			TokenType: TokenTypeAccess,
			Sub:       id.Subject,
			Scope:     strings.Join(id.Scopes, " "),
			Jti:       id.JTI,
			SessionID: id.SessionID,
		}
		if id.SubjectKind == security.SubjectKindClient {
			out.ClientID = id.Subject
		}
		if !id.IssuedAt.IsZero() {
			out.Iat = id.IssuedAt.Unix()
		}
		if !id.ExpiresAt.IsZero() {
			out.Exp = id.ExpiresAt.Unix()
		}
		return out
	}
	return s.introspectRefresh(ctx, tokenValue)
}

func (s *OAuthService) introspectRefresh(ctx context.Context, tokenValue string) *Introspection {
	inactive := &Introspection{Active: false}
	rec, err := s.tokenRepo.GetByHash(ctx, security.HashRefreshToken(tokenValue))
	if err != nil {
		log.Printf("oauth: introspect refresh lookup: %v", err)
		return inactive
	}
	now := time.Now().UTC()
	if rec == nil || rec.Status != tokendomain.StatusActive || rec.Expired(now) {
		return inactive
	}
	sess, err := s.sessionRepo.GetByID(ctx, rec.SessionID)
	if err != nil {
		log.Printf("oauth: introspect session lookup: %v", err)
		return inactive
	}
	if sess == nil || !sess.Live(now) {
		return inactive
	}
	return &Introspection{
		Active:    true,
		TokenType: TokenTypeRefresh,
		Sub:       rec.AccountID,
		Scope:     strings.Join(rec.Scopes, " "),
		Iat:       rec.IssuedAt.Unix(),
		Exp:       rec.ExpiresAt.Unix(),
		SessionID: rec.SessionID,
	}
}
