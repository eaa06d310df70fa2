package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// LocalIssuer is the iss claim of tokens minted by JWTService.
const LocalIssuer = "forms-backend-local"

// TokenPair mirrors what the user pool hands out on sign-in.
type TokenPair struct {
	IDToken     string `json:"idToken"`
	AccessToken string `json:"accessToken"`
	ExpiresIn   int    `json:"expiresIn"`
	TokenType   string `json:"tokenType"`
}

// JWTService mints and validates HS256 token pairs for local development,
// standing in for the user pool when none is configured.
type JWTService struct {
	secret      []byte
	clientID    string
	expireHours int
	now         func() time.Time
}

// NewJWTService creates a JWT service.
func NewJWTService(secret, clientID string, expireHours int) *JWTService {
	if expireHours <= 0 {
		expireHours = 1
	}
	return &JWTService{
		secret:      []byte(secret),
		clientID:    clientID,
		expireHours: expireHours,
		now:         time.Now,
	}
}

// Generate creates an id token and an access token for the user.
func (s *JWTService) Generate(username, email string, groups []string) (*TokenPair, error) {
	now := s.now()
	ttl := time.Duration(s.expireHours) * time.Hour
	subject := uuid.NewSHA1(uuid.NameSpaceOID, []byte(username)).String()
	base := func(aud []string) jwt.RegisteredClaims {
		return jwt.RegisteredClaims{
			Issuer:    LocalIssuer,
			Subject:   subject,
			Audience:  aud,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		}
	}

	idToken, err := s.sign(Claims{
		TokenUse:         TokenUseID,
		Username:         username,
		Email:            email,
		Groups:           groups,
		RegisteredClaims: base(jwt.ClaimStrings{s.clientID}),
	})
	if err != nil {
		return nil, err
	}
	accessToken, err := s.sign(Claims{
		TokenUse:         TokenUseAccess,
		ClientID:         s.clientID,
		AccessUsername:   username,
		Groups:           groups,
		RegisteredClaims: base(nil),
	})
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		IDToken:     idToken,
		AccessToken: accessToken,
		ExpiresIn:   int(ttl.Seconds()),
		TokenType:   "Bearer",
	}, nil
}

func (s *JWTService) sign(c Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}

// Validate parses and validates a JWT, returning claims or error.
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithIssuer(LocalIssuer), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if err := claims.checkAudience(s.clientID); err != nil {
		return nil, err
	}
	return claims, nil
}

// Verify implements Verifier.
func (s *JWTService) Verify(_ context.Context, token string) (*Identity, error) {
	claims, err := s.Validate(token)
	if err != nil {
		return nil, err
	}
	return claims.identity(), nil
}
