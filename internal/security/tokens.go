package security

import (
	"crypto"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired, or fails validation.
	ErrInvalidToken = errors.New("invalid token")
)

// Subject kinds carried in access token claims. A token is minted either for
// an interactive user or a machine client, never both.
const (
	SubjectKindUser   = "user"
	SubjectKindClient = "client"
)

// AccessClaims holds JWT claims for the access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	SubjectKind string `json:"sub_kind"`
	Scope       string `json:"scope,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
}

// AccessIdentity is the validated view of an access token: who the bearer is
// and what the token grants. Returned by ValidateAccess.
type AccessIdentity struct {
	Subject     string
	SubjectKind string
	SessionID   string
	Scopes      []string
	JTI         string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// HasScope reports whether the identity carries the given scope.
func (id *AccessIdentity) HasScope(scope string) bool {
	for _, s := range id.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// TokenProvider issues and validates JWT access tokens. Signing is HS256 with
// a shared secret, or RS256/ES256 with a private/public key pair. Refresh
// tokens are opaque values managed by the token store, not JWTs; see
// NewOpaqueToken.
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
}

// NewTokenProvider returns a TokenProvider that signs with the given private
// key (RS256 or ES256). issuer and audience are set on claims and checked on
// validation.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, accessTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
	}
}

// NewHMACTokenProvider returns a TokenProvider that signs with HS256 using the
// given shared secret.
func NewHMACTokenProvider(secret []byte, issuer, audience string, accessTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		secret:    secret,
		issuer:    issuer,
		audience:  audience,
		accessTTL: accessTTL,
	}
}

// AccessTTL returns the configured access token lifetime.
func (p *TokenProvider) AccessTTL() time.Duration {
	return p.accessTTL
}

// IssueAccess issues a short-lived access JWT for the given subject.
// subjectKind is SubjectKindUser or SubjectKindClient; sessionID is empty for
// client tokens. Returns the token string, its jti, and expiration time.
func (p *TokenProvider) IssueAccess(subject, subjectKind, sessionID string, scopes []string) (token string, jti string, expiresAt time.Time, err error) {
	jti, err = generateJTI()
	if err != nil {
		return "", "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt = now.Add(p.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   subject,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SubjectKind: subjectKind,
		Scope:       strings.Join(scopes, " "),
		SessionID:   sessionID,
	}
	token, err = p.sign(claims)
	return token, jti, expiresAt, err
}

func (p *TokenProvider) sign(claims jwt.Claims) (string, error) {
	if p.secret != nil {
		t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		return t.SignedString(p.secret)
	}
	alg := KeyAlg(p.privateKey.Public())
	if alg == "" {
		return "", ErrInvalidToken
	}
	t := jwt.NewWithClaims(jwt.GetSigningMethod(alg), claims)
	return t.SignedString(p.privateKey)
}

func (p *TokenProvider) verificationKey(token *jwt.Token) (interface{}, error) {
	if p.secret != nil {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); ok {
			return p.secret, nil
		}
		return nil, ErrInvalidToken
	}
	if _, ok := token.Method.(*jwt.SigningMethodRSA); ok {
		return p.publicKey, nil
	}
	if _, ok := token.Method.(*jwt.SigningMethodECDSA); ok {
		return p.publicKey, nil
	}
	return nil, ErrInvalidToken
}

// ValidateAccess parses and validates the access token (signature, exp, iss,
// aud) and returns the identity it encodes.
func (p *TokenProvider) ValidateAccess(tokenString string) (*AccessIdentity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, p.verificationKey)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != p.issuer {
		return nil, ErrInvalidToken
	}
	audOk := false
	for _, a := range claims.Audience {
		if a == p.audience {
			audOk = true
			break
		}
	}
	if !audOk {
		return nil, ErrInvalidToken
	}
	id := &AccessIdentity{
		Subject:     claims.Subject,
		SubjectKind: claims.SubjectKind,
		SessionID:   claims.SessionID,
		JTI:         claims.ID,
	}
	if claims.Scope != "" {
		id.Scopes = strings.Fields(claims.Scope)
	}
	if claims.IssuedAt != nil {
		id.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
