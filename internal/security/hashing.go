package security

import (
	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies passwords and client secrets with bcrypt. The
// same instance serves both; only the cost differs per deployment.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given bcrypt cost. Zero or negative
// picks bcrypt.DefaultCost; out-of-range values are clamped to the bcrypt
// limits rather than rejected.
func NewHasher(cost int) *Hasher {
	switch {
	case cost <= 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash returns the bcrypt hash of secret in its standard string form.
func (h *Hasher) Hash(secret []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(secret, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare checks secret against a stored hash. Returns nil on match,
// bcrypt.ErrMismatchedHashAndPassword on mismatch, and another error for a
// malformed hash.
func (h *Hasher) Compare(hash string, secret []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), secret)
}
