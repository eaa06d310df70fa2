package auth

import (
	"context"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// CognitoConfig identifies the user pool and app client whose tokens are accepted.
type CognitoConfig struct {
	Region     string
	UserPoolID string
	ClientID   string
}

// Issuer returns the pool's token issuer URL.
func (c CognitoConfig) Issuer() string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", c.Region, c.UserPoolID)
}

// JWKSURL returns the pool's signing key set URL.
func (c CognitoConfig) JWKSURL() string {
	return c.Issuer() + "/.well-known/jwks.json"
}

// CognitoVerifier validates RS256 identity and access tokens from a Cognito user pool.
type CognitoVerifier struct {
	cfg     CognitoConfig
	keyfunc jwt.Keyfunc
}

// NewCognitoVerifier fetches and keeps refreshing the pool's JWKS.
func NewCognitoVerifier(ctx context.Context, cfg CognitoConfig) (*CognitoVerifier, error) {
	k, err := keyfunc.NewDefaultCtx(ctx, []string{cfg.JWKSURL()})
	if err != nil {
		return nil, fmt.Errorf("load jwks: %w", err)
	}
	return NewCognitoVerifierWithKeyfunc(cfg, k.Keyfunc), nil
}

// NewCognitoVerifierWithKeyfunc uses kf to resolve signing keys.
func NewCognitoVerifierWithKeyfunc(cfg CognitoConfig, kf jwt.Keyfunc) *CognitoVerifier {
	return &CognitoVerifier{cfg: cfg, keyfunc: kf}
}

// Verify implements Verifier.
func (v *CognitoVerifier) Verify(_ context.Context, tokenString string) (*Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.cfg.Issuer()),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if err := claims.checkAudience(v.cfg.ClientID); err != nil {
		return nil, err
	}
	return claims.identity(), nil
}
