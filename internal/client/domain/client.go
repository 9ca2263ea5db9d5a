package domain

import (
	"errors"
	"time"
)

// Client is a registered machine-to-machine client. Provisioned by an
// operator (see cmd/seed); static at runtime.
type Client struct {
	ClientID      string
	SecretHash    string
	AllowedScopes []string
	CreatedAt     time.Time
}

// Validate validates the client for persistence. Returns an error describing the first validation failure.
func (c *Client) Validate() error {
	if c.ClientID == "" {
		return errors.New("client_id is required")
	}
	if c.SecretHash == "" {
		return errors.New("secret hash is required")
	}
	return nil
}

// GrantableScopes intersects the requested scopes with AllowedScopes,
// preserving request order. Scopes the client does not hold are silently
// dropped, never rejected. An empty request grants everything the client is
// allowed.
func (c *Client) GrantableScopes(requested []string) []string {
	if len(requested) == 0 {
		out := make([]string, len(c.AllowedScopes))
		copy(out, c.AllowedScopes)
		return out
	}
	allowed := make(map[string]struct{}, len(c.AllowedScopes))
	for _, s := range c.AllowedScopes {
		allowed[s] = struct{}{}
	}
	out := make([]string, 0, len(requested))
	for _, s := range requested {
		if _, ok := allowed[s]; ok {
			out = append(out, s)
		}
	}
	return out
}
