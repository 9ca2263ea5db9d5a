package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	accountdomain "auth-control-plane/internal/account/domain"
	accountrepo "auth-control-plane/internal/account/repository"
	"auth-control-plane/internal/security"
	sessiondomain "auth-control-plane/internal/session/domain"
	tokensvc "auth-control-plane/internal/token/service"
)

// Sentinel errors for the auth service; the handler maps them to HTTP codes.
var (
	ErrConflict           = errors.New("username or email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoSession          = errors.New("no session presented")
	ErrSessionRevoked     = errors.New("session is revoked or expired")
	ErrValidation         = errors.New("invalid registration input")
)

// LoginResult holds the outcome of Login: the token pair plus the session
// the pair is bound to.
type LoginResult struct {
	AccessToken      string
	RefreshToken     string
	ExpiresAt        time.Time
	AccountID        string
	SessionID        string
	SessionExpiresAt time.Time
	Scopes           []string
}

// AccountRepo is the minimal account repository needed by the auth service.
type AccountRepo interface {
	GetByID(ctx context.Context, id string) (*accountdomain.Account, error)
	GetByUsername(ctx context.Context, username string) (*accountdomain.Account, error)
	GetByEmail(ctx context.Context, email string) (*accountdomain.Account, error)
	Create(ctx context.Context, a *accountdomain.Account) error
}

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	Create(ctx context.Context, s *sessiondomain.Session) error
	Revoke(ctx context.Context, id string) error
}

// AuthService implements password register, login, current-user lookup, and
// logout. Token issuance and the refresh lineage are delegated to the
// rotation service so logout can revoke a session's whole lineage.
type AuthService struct {
	accountRepo AccountRepo
	sessionRepo SessionRepo
	rotation    *tokensvc.RotationService
	hasher      *security.Hasher
	sessionTTL  time.Duration
	userScopes  []string

	registrations metric.Int64Counter
	logins        metric.Int64Counter
}

// NewAuthService returns an AuthService with the given dependencies.
// userScopes are the scopes granted to every user session.
func NewAuthService(
	accountRepo AccountRepo,
	sessionRepo SessionRepo,
	rotation *tokensvc.RotationService,
	hasher *security.Hasher,
	sessionTTL time.Duration,
	userScopes []string,
) *AuthService {
	meter := otel.Meter("auth-control-plane/auth")
	registrations, _ := meter.Int64Counter("auth.registrations",
		metric.WithDescription("Accounts registered"))
	logins, _ := meter.Int64Counter("auth.logins",
		metric.WithDescription("Successful password logins"))
	return &AuthService{
		accountRepo:   accountRepo,
		sessionRepo:   sessionRepo,
		rotation:      rotation,
		hasher:        hasher,
		sessionTTL:    sessionTTL,
		userScopes:    userScopes,
		registrations: registrations,
		logins:        logins,
	}
}

// Register creates an account with the given username, email, and password.
// Returns ErrConflict when either the username or the email is taken.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*accountdomain.Account, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	if existing, err := s.accountRepo.GetByUsername(ctx, username); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrConflict
	}
	if existing, err := s.accountRepo.GetByEmail(ctx, email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrConflict
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	account := &accountdomain.Account{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hashed,
		CreatedAt:    time.Now().UTC(),
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}
	if err := s.accountRepo.Create(ctx, account); err != nil {
		// Unique indexes close the check-then-create race.
		if errors.Is(err, accountrepo.ErrDuplicate) {
			return nil, ErrConflict
		}
		return nil, err
	}
	if s.registrations != nil {
		s.registrations.Add(ctx, 1)
	}
	return account, nil
}

// VerifyUserCredentials authenticates a username/password pair. Unknown user
// and wrong password both return ErrInvalidCredentials.
func (s *AuthService) VerifyUserCredentials(ctx context.Context, username, password string) (*accountdomain.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	account, err := s.accountRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if account == nil || account.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(account.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return account, nil
}

// Login authenticates with username/password, creates a session, and issues
// a token pair bound to it.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	account, err := s.VerifyUserCredentials(ctx, username, password)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &sessiondomain.Session{
		ID:        uuid.New().String(),
		AccountID: account.ID,
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
	}
	if err := s.sessionRepo.Create(ctx, sess); err != nil {
		return nil, err
	}
	pair, err := s.rotation.IssueUserPair(ctx, account.ID, sess.ID, s.userScopes)
	if err != nil {
		return nil, err
	}
	if s.logins != nil {
		s.logins.Add(ctx, 1)
	}
	return &LoginResult{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		ExpiresAt:        pair.AccessExpiresAt,
		AccountID:        account.ID,
		SessionID:        sess.ID,
		SessionExpiresAt: sess.ExpiresAt,
		Scopes:           pair.Scopes,
	}, nil
}

// CurrentUser resolves the account that owns the given session. An empty
// session id means no credential was presented at all (ErrNoSession); a
// session that is unknown, expired, or revoked returns ErrSessionRevoked.
func (s *AuthService) CurrentUser(ctx context.Context, sessionID string) (*accountdomain.Account, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || !sess.Live(time.Now().UTC()) {
		return nil, ErrSessionRevoked
	}
	account, err := s.accountRepo.GetByID(ctx, sess.AccountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrSessionRevoked
	}
	return account, nil
}

// Logout revokes the session and its entire refresh lineage. Unknown or
// already-revoked sessions are a no-op, so repeated logout is safe.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}
	if err := s.sessionRepo.Revoke(ctx, sessionID); err != nil {
		return err
	}
	return s.rotation.RevokeSessionTokens(ctx, sessionID)
}

func validateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("%w: username is required", ErrValidation)
	}
	if len(username) > 64 {
		return fmt.Errorf("%w: username must be at most 64 characters", ErrValidation)
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	const simpleEmail = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	ok, _ := regexp.MatchString(simpleEmail, email)
	if !ok {
		return fmt.Errorf("%w: invalid email format", ErrValidation)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}
	return nil
}
