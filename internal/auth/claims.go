package auth

import (
	"context"
	"errors"
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// Token kinds, as carried in the token_use claim.
const (
	TokenUseID     = "id"
	TokenUseAccess = "access"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// Claims covers both identity and access tokens issued by the user pool.
type Claims struct {
	TokenUse       string   `json:"token_use"`
	ClientID       string   `json:"client_id,omitempty"`
	Username       string   `json:"cognito:username,omitempty"`
	AccessUsername string   `json:"username,omitempty"`
	Email          string   `json:"email,omitempty"`
	Groups         []string `json:"cognito:groups,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller.
type Identity struct {
	Subject  string
	Username string
	Email    string
	TokenUse string
	Groups   []string
}

// Verifier authenticates a bearer token.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// checkAudience accepts an id token minted for clientID or an access token issued to it.
func (c *Claims) checkAudience(clientID string) error {
	switch c.TokenUse {
	case TokenUseID:
		if !slices.Contains(c.Audience, clientID) {
			return ErrInvalidToken
		}
	case TokenUseAccess:
		if c.ClientID != clientID {
			return ErrInvalidToken
		}
	default:
		return ErrInvalidToken
	}
	return nil
}

func (c *Claims) identity() *Identity {
	username := c.Username
	if username == "" {
		username = c.AccessUsername
	}
	return &Identity{
		Subject:  c.Subject,
		Username: username,
		Email:    c.Email,
		TokenUse: c.TokenUse,
		Groups:   c.Groups,
	}
}

// InGroup reports whether the identity carries group.
func (id *Identity) InGroup(group string) bool {
	return slices.Contains(id.Groups, group)
}

// Chain tries each verifier in order and returns the first accepted identity.
type Chain []Verifier

// Verify implements Verifier.
func (ch Chain) Verify(ctx context.Context, token string) (*Identity, error) {
	for _, v := range ch {
		if id, err := v.Verify(ctx, token); err == nil {
			return id, nil
		}
	}
	return nil, ErrInvalidToken
}
