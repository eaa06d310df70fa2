package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clc-ministry/forms-backend/pkg/utils"
)

var poolCfg = CognitoConfig{
	Region:     "us-east-1",
	UserPoolID: "us-east-1_test",
	ClientID:   "client-abc",
}

func rsaKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func signRS(t *testing.T, key *rsa.PrivateKey, c Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, c).SignedString(key)
	require.NoError(t, err)
	return s
}

func cognitoClaims(use string) Claims {
	c := Claims{
		TokenUse: use,
		Groups:   []string{"admins"},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    poolCfg.Issuer(),
			Subject:   "sub-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	if use == TokenUseID {
		c.Audience = jwt.ClaimStrings{poolCfg.ClientID}
		c.Username = "pastor"
		c.Email = "pastor@example.org"
	} else {
		c.ClientID = poolCfg.ClientID
		c.AccessUsername = "pastor"
	}
	return c
}

func TestCognitoVerifierAcceptsBothTokenKinds(t *testing.T) {
	key := rsaKey(t)
	v := NewCognitoVerifierWithKeyfunc(poolCfg, func(*jwt.Token) (interface{}, error) { return &key.PublicKey, nil })

	for _, use := range []string{TokenUseID, TokenUseAccess} {
		id, err := v.Verify(context.Background(), signRS(t, key, cognitoClaims(use)))
		require.NoError(t, err, use)
		assert.Equal(t, "pastor", id.Username)
		assert.Equal(t, use, id.TokenUse)
	}
}

func TestCognitoVerifierRejects(t *testing.T) {
	key := rsaKey(t)
	other := rsaKey(t)
	v := NewCognitoVerifierWithKeyfunc(poolCfg, func(*jwt.Token) (interface{}, error) { return &key.PublicKey, nil })

	expired := cognitoClaims(TokenUseID)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	wrongIssuer := cognitoClaims(TokenUseID)
	wrongIssuer.Issuer = "https://example.com"
	wrongAudience := cognitoClaims(TokenUseID)
	wrongAudience.Audience = jwt.ClaimStrings{"someone-else"}
	wrongClient := cognitoClaims(TokenUseAccess)
	wrongClient.ClientID = "someone-else"
	noUse := cognitoClaims(TokenUseID)
	noUse.TokenUse = ""

	cases := map[string]string{
		"expired":        signRS(t, key, expired),
		"wrong issuer":   signRS(t, key, wrongIssuer),
		"wrong audience": signRS(t, key, wrongAudience),
		"wrong client":   signRS(t, key, wrongClient),
		"no token_use":   signRS(t, key, noUse),
		"wrong key":      signRS(t, other, cognitoClaims(TokenUseID)),
		"garbage":        "not-a-jwt",
	}
	for name, token := range cases {
		_, err := v.Verify(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}
}

func TestIdentityGroups(t *testing.T) {
	key := rsaKey(t)
	v := NewCognitoVerifierWithKeyfunc(poolCfg, func(*jwt.Token) (interface{}, error) { return &key.PublicKey, nil })

	id, err := v.Verify(context.Background(), signRS(t, key, cognitoClaims(TokenUseID)))
	require.NoError(t, err)
	assert.True(t, id.InGroup("admins"))
	assert.False(t, id.InGroup("volunteers"))
}

func TestJWTServiceRoundTrip(t *testing.T) {
	svc := NewJWTService("secret", "local-client", 1)
	pair, err := svc.Generate("admin", "admin@example.org", []string{AdminGroup})
	require.NoError(t, err)

	id, err := svc.Verify(context.Background(), pair.IDToken)
	require.NoError(t, err)
	assert.Equal(t, TokenUseID, id.TokenUse)
	assert.Equal(t, "admin", id.Username)

	id, err = svc.Verify(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, TokenUseAccess, id.TokenUse)
	assert.Equal(t, "admin", id.Username)

	other := NewJWTService("other-secret", "local-client", 1)
	_, err = other.Verify(context.Background(), pair.IDToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	later := NewJWTService("secret", "local-client", 1)
	later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = later.Verify(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestChain(t *testing.T) {
	key := rsaKey(t)
	cognito := NewCognitoVerifierWithKeyfunc(poolCfg, func(*jwt.Token) (interface{}, error) { return &key.PublicKey, nil })
	local := NewJWTService("secret", "local-client", 1)
	chain := Chain{local, cognito}

	id, err := chain.Verify(context.Background(), signRS(t, key, cognitoClaims(TokenUseAccess)))
	require.NoError(t, err)
	assert.Equal(t, "sub-1", id.Subject)

	pair, err := local.Generate("admin", "", nil)
	require.NoError(t, err)
	_, err = chain.Verify(context.Background(), pair.IDToken)
	assert.NoError(t, err)

	_, err = chain.Verify(context.Background(), "junk")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hash, err := utils.HashPassword("hunter22")
	require.NoError(t, err)
	svc := NewJWTService("secret", "local-client", 1)
	h := NewHandler(map[string]string{"admin": hash}, svc, nil)
	r := gin.New()
	r.POST("/auth/login", h.Login)

	do := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, do(`{"username":"admin","password":"wrong"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, do(`{"username":"nobody","password":"hunter22"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(`{}`).Code)

	w := do(`{"username":"admin","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"idToken"`)
	assert.Contains(t, w.Body.String(), `"accessToken"`)
}
