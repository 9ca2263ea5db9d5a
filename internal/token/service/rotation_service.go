package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"auth-control-plane/internal/security"
	sessiondomain "auth-control-plane/internal/session/domain"
	tokendomain "auth-control-plane/internal/token/domain"
)

// Sentinel errors for the rotation engine; handlers map both to 401.
// ErrTokenReused is distinct so callers can audit the reuse cascade.
var (
	ErrInvalidToken = errors.New("invalid or expired refresh token")
	ErrTokenReused  = errors.New("refresh token reuse detected; chain revoked")
)

// maxChainHops bounds cascade walks so a corrupted successor link can never
// loop forever. Lineages grow by one node per refresh and stay far below this.
const maxChainHops = 10000

// TokenRepo is the refresh-token repository needed by the rotation engine.
type TokenRepo interface {
	Create(ctx context.Context, t *tokendomain.RefreshToken) error
	GetByHash(ctx context.Context, hash string) (*tokendomain.RefreshToken, error)
	GetByID(ctx context.Context, id string) (*tokendomain.RefreshToken, error)
	Consume(ctx context.Context, id string, successor *tokendomain.RefreshToken) (bool, error)
	Revoke(ctx context.Context, id string) error
	RevokeBySession(ctx context.Context, sessionID string) error
}

// SessionRepo is the minimal session repository needed by the rotation engine.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	Revoke(ctx context.Context, id string) error
}

// TokenPair is a freshly minted access token plus the refresh token that can
// replace it.
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
	AccountID       string
	SessionID       string
	Scopes          []string
}

// RotationService owns refresh-token lineages: issuing the root pair at
// login, rotating on refresh with a single concurrent winner, and revoking
// chains on logout or reuse.
type RotationService struct {
	repo       TokenRepo
	sessions   SessionRepo
	provider   *security.TokenProvider
	refreshTTL time.Duration

	rotations metric.Int64Counter
	reuses    metric.Int64Counter
}

// NewRotationService returns a RotationService with the given dependencies.
func NewRotationService(repo TokenRepo, sessions SessionRepo, provider *security.TokenProvider, refreshTTL time.Duration) *RotationService {
	meter := otel.Meter("auth-control-plane/token")
	rotations, _ := meter.Int64Counter("auth.refresh_rotations",
		metric.WithDescription("Successful refresh token rotations."))
	reuses, _ := meter.Int64Counter("auth.refresh_reuse_detected",
		metric.WithDescription("Refresh calls that replayed a consumed token."))
	return &RotationService{
		repo:       repo,
		sessions:   sessions,
		provider:   provider,
		refreshTTL: refreshTTL,
		rotations:  rotations,
		reuses:     reuses,
	}
}

// IssueUserPair mints the root access/refresh pair for a session. Called at
// login; the stored record is the first node of the session's lineage.
func (s *RotationService) IssueUserPair(ctx context.Context, accountID, sessionID string, scopes []string) (*TokenPair, error) {
	access, _, accessExp, err := s.provider.IssueAccess(accountID, security.SubjectKindUser, sessionID, scopes)
	if err != nil {
		return nil, err
	}
	refresh, record, err := s.newRefreshRecord(accountID, sessionID, scopes)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:     access,
		RefreshToken:    refresh,
		AccessExpiresAt: accessExp,
		AccountID:       accountID,
		SessionID:       sessionID,
		Scopes:          record.Scopes,
	}, nil
}

// Refresh consumes the presented refresh token exactly once and returns its
// successor pair.
//
// Unknown, expired, and revoked tokens fail with ErrInvalidToken. A consumed
// token is a reuse signal: the chain descending from it is revoked along with
// its session, and the call fails with ErrTokenReused. Concurrent calls on
// the same value race on the store's Consume transition; the losers observe
// reuse semantics, so no two successor pairs ever derive from one token.
func (s *RotationService) Refresh(ctx context.Context, refreshValue string) (*TokenPair, error) {
	if refreshValue == "" {
		return nil, ErrInvalidToken
	}
	now := time.Now().UTC()
	rec, err := s.repo.GetByHash(ctx, security.HashRefreshToken(refreshValue))
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.Expired(now) {
		return nil, ErrInvalidToken
	}
	switch rec.Status {
	case tokendomain.StatusRevoked:
		return nil, ErrInvalidToken
	case tokendomain.StatusConsumed:
		return nil, s.handleReuse(ctx, rec)
	}

	sess, err := s.sessions.GetByID(ctx, rec.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || !sess.Live(now) {
		return nil, ErrInvalidToken
	}

	newValue, successor, err := s.newRefreshRecord(rec.AccountID, rec.SessionID, rec.Scopes)
	if err != nil {
		return nil, err
	}
	won, err := s.repo.Consume(ctx, rec.ID, successor)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, s.handleReuse(ctx, rec)
	}

	access, _, accessExp, err := s.provider.IssueAccess(rec.AccountID, security.SubjectKindUser, rec.SessionID, rec.Scopes)
	if err != nil {
		return nil, err
	}
	s.rotations.Add(ctx, 1)
	return &TokenPair{
		AccessToken:     access,
		RefreshToken:    newValue,
		AccessExpiresAt: accessExp,
		AccountID:       rec.AccountID,
		SessionID:       rec.SessionID,
		Scopes:          successor.Scopes,
	}, nil
}

// handleReuse revokes the chain descending from rec and rec's session, then
// reports the reuse. Revocation is the point of the branch, so failures are
// logged but never mask ErrTokenReused.
func (s *RotationService) handleReuse(ctx context.Context, rec *tokendomain.RefreshToken) error {
	if err := s.RevokeChain(ctx, rec.ID); err != nil {
		log.Printf("token: reuse cascade for %s: %v", rec.ID, err)
	}
	if err := s.sessions.Revoke(ctx, rec.SessionID); err != nil {
		log.Printf("token: revoke session %s: %v", rec.SessionID, err)
	}
	s.reuses.Add(ctx, 1)
	return ErrTokenReused
}

// RevokeChain marks the token and every reachable successor revoked, walking
// the forward links iteratively.
func (s *RotationService) RevokeChain(ctx context.Context, tokenID string) error {
	id := tokenID
	for hops := 0; id != "" && hops < maxChainHops; hops++ {
		cur, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if cur == nil {
			return nil
		}
		if err := s.repo.Revoke(ctx, cur.ID); err != nil {
			return err
		}
		id = cur.SuccessorID
	}
	return nil
}

// RevokeSessionTokens revokes every token in the session's lineage. Used by
// logout, where the session id is known and the whole family goes at once.
func (s *RotationService) RevokeSessionTokens(ctx context.Context, sessionID string) error {
	return s.repo.RevokeBySession(ctx, sessionID)
}

func (s *RotationService) newRefreshRecord(accountID, sessionID string, scopes []string) (string, *tokendomain.RefreshToken, error) {
	value, err := security.NewOpaqueToken()
	if err != nil {
		return "", nil, err
	}
	now := time.Now().UTC()
	record := &tokendomain.RefreshToken{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		AccountID: accountID,
		Scopes:    append([]string(nil), scopes...),
		TokenHash: security.HashRefreshToken(value),
		Status:    tokendomain.StatusActive,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.refreshTTL),
	}
	return value, record, nil
}
