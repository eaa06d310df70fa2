// Package cognito signs administrators in against a Cognito user pool and
// keeps the resulting session fresh. A *Provider is the token source the
// admin client uses.
package cognito

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/golang-jwt/jwt/v5"
)

// refreshSkew renews tokens this long before they expire.
const refreshSkew = time.Minute

var (
	ErrNoSession          = errors.New("cognito: not signed in")
	ErrInvalidCredentials = errors.New("cognito: incorrect username or password")
)

// ChallengeError is returned when the pool requires an extra step (for
// example NEW_PASSWORD_REQUIRED) that this client does not complete.
type ChallengeError struct {
	Name string
}

func (e *ChallengeError) Error() string { return "cognito: challenge required: " + e.Name }

// API is the subset of the Cognito identity provider client used here.
type API interface {
	InitiateAuth(ctx context.Context, in *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	GlobalSignOut(ctx context.Context, in *cip.GlobalSignOutInput, optFns ...func(*cip.Options)) (*cip.GlobalSignOutOutput, error)
}

var _ API = (*cip.Client)(nil)

// Config identifies the user pool app client.
type Config struct {
	Region     string
	UserPoolID string
	ClientID   string
	// Domain is the hosted UI domain, e.g. auth.example.org. Only LogoutURL uses it.
	Domain string
}

// Claims are the identity claims read from the ID token.
type Claims struct {
	Issuer   string `json:"iss"`
	Audience string `json:"aud"`
	Subject  string `json:"sub"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
}

// Session is a signed-in administrator's token set.
type Session struct {
	IDToken      string    `json:"idToken"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Claims       Claims    `json:"claims"`
}

// Expired reports whether the session is within skew of expiry at now.
func (s *Session) Expired(now time.Time, skew time.Duration) bool {
	return !now.Add(skew).Before(s.ExpiresAt)
}

// Store persists a session between processes.
type Store interface {
	Load() (*Session, error)
	Save(s *Session) error
	Clear() error
}

// Provider signs in, refreshes and signs out one session.
type Provider struct {
	api   API
	cfg   Config
	store Store
	now   func() time.Time

	mu      sync.Mutex
	session *Session
}

// NewProvider creates a provider backed by the AWS SDK. InitiateAuth and
// GlobalSignOut are public APIs, so no AWS credentials are loaded.
func NewProvider(ctx context.Context, cfg Config, store Store) (*Provider, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewProviderWithAPI(cip.NewFromConfig(awsCfg), cfg, store), nil
}

// NewProviderWithAPI creates a provider over an existing client. store may be nil.
func NewProviderWithAPI(api API, cfg Config, store Store) *Provider {
	return &Provider{api: api, cfg: cfg, store: store, now: time.Now}
}

// SignIn authenticates with USER_PASSWORD_AUTH and stores the new session.
func (p *Provider) SignIn(ctx context.Context, username, password string) (*Session, error) {
	out, err := p.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		ClientId: aws.String(p.cfg.ClientID),
		AuthParameters: map[string]string{
			"USERNAME": username,
			"PASSWORD": password,
		},
	})
	if err != nil {
		return nil, mapAuthError(err)
	}
	s, err := p.sessionFrom(out, "")
	if err != nil {
		return nil, err
	}
	return s, p.set(s)
}

// Restore loads a saved session, refreshing it if it has expired.
func (p *Provider) Restore(ctx context.Context) (*Session, error) {
	if p.store == nil {
		return nil, ErrNoSession
	}
	s, err := p.store.Load()
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoSession
	}
	p.mu.Lock()
	p.session = s
	p.mu.Unlock()
	if s.Expired(p.now(), refreshSkew) {
		return p.Refresh(ctx)
	}
	return s, nil
}

// Refresh exchanges the refresh token for new ID and access tokens.
func (p *Provider) Refresh(ctx context.Context) (*Session, error) {
	cur := p.Session()
	if cur == nil || cur.RefreshToken == "" {
		return nil, ErrNoSession
	}
	out, err := p.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       types.AuthFlowTypeRefreshTokenAuth,
		ClientId:       aws.String(p.cfg.ClientID),
		AuthParameters: map[string]string{"REFRESH_TOKEN": cur.RefreshToken},
	})
	if err != nil {
		var nae *types.NotAuthorizedException
		if errors.As(err, &nae) {
			p.discard()
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("refresh: %w", err)
	}
	s, err := p.sessionFrom(out, cur.RefreshToken)
	if err != nil {
		return nil, err
	}
	return s, p.set(s)
}

// SignOut revokes the session's tokens and discards it. The local session is
// discarded even when the revoke call fails.
func (p *Provider) SignOut(ctx context.Context) error {
	cur := p.Session()
	if cur == nil {
		return p.discard()
	}
	_, err := p.api.GlobalSignOut(ctx, &cip.GlobalSignOutInput{AccessToken: aws.String(cur.AccessToken)})
	if derr := p.discard(); derr != nil && err == nil {
		err = derr
	}
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// Session returns the current session or nil.
func (p *Provider) Session() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

// IDToken returns a fresh ID token, refreshing the session if needed.
func (p *Provider) IDToken(ctx context.Context) (string, error) {
	s, err := p.current(ctx)
	if err != nil {
		return "", err
	}
	return s.IDToken, nil
}

// AccessToken returns a fresh access token, refreshing the session if needed.
func (p *Provider) AccessToken(ctx context.Context) (string, error) {
	s, err := p.current(ctx)
	if err != nil {
		return "", err
	}
	return s.AccessToken, nil
}

func (p *Provider) current(ctx context.Context) (*Session, error) {
	s := p.Session()
	if s == nil {
		return nil, ErrNoSession
	}
	if s.Expired(p.now(), refreshSkew) {
		return p.Refresh(ctx)
	}
	return s, nil
}

func (p *Provider) set(s *Session) error {
	p.mu.Lock()
	p.session = s
	p.mu.Unlock()
	if p.store == nil {
		return nil
	}
	if err := p.store.Save(s); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (p *Provider) discard() error {
	p.mu.Lock()
	p.session = nil
	p.mu.Unlock()
	if p.store == nil {
		return nil
	}
	return p.store.Clear()
}

func (p *Provider) sessionFrom(out *cip.InitiateAuthOutput, refreshToken string) (*Session, error) {
	if out.ChallengeName != "" {
		return nil, &ChallengeError{Name: string(out.ChallengeName)}
	}
	res := out.AuthenticationResult
	if res == nil || aws.ToString(res.IdToken) == "" || aws.ToString(res.AccessToken) == "" {
		return nil, errors.New("cognito: authentication result missing tokens")
	}
	s := &Session{
		IDToken:      aws.ToString(res.IdToken),
		AccessToken:  aws.ToString(res.AccessToken),
		RefreshToken: aws.ToString(res.RefreshToken),
	}
	if s.RefreshToken == "" {
		s.RefreshToken = refreshToken
	}
	claims, exp, err := ParseClaims(s.IDToken)
	if err != nil {
		return nil, err
	}
	s.Claims = claims
	s.ExpiresAt = exp
	if exp.IsZero() {
		s.ExpiresAt = p.now().Add(time.Duration(res.ExpiresIn) * time.Second)
	}
	return s, nil
}

// ParseClaims reads identity claims and expiry from a token without verifying
// its signature. The server verifies every token it receives.
func ParseClaims(token string) (Claims, time.Time, error) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return Claims{}, time.Time{}, fmt.Errorf("parse token: %w", err)
	}
	c := Claims{
		Issuer:  claimString(mc, "iss"),
		Subject: claimString(mc, "sub"),
		Email:   claimString(mc, "email"),
	}
	if aud, err := mc.GetAudience(); err == nil && len(aud) > 0 {
		c.Audience = aud[0]
	} else {
		c.Audience = claimString(mc, "client_id")
	}
	c.Username = claimString(mc, "cognito:username")
	if c.Username == "" {
		c.Username = claimString(mc, "username")
	}
	var exp time.Time
	if e, err := mc.GetExpirationTime(); err == nil && e != nil {
		exp = e.Time
	}
	return c, exp, nil
}

func claimString(mc jwt.MapClaims, key string) string {
	s, _ := mc[key].(string)
	return s
}

func mapAuthError(err error) error {
	var nae *types.NotAuthorizedException
	var unf *types.UserNotFoundException
	if errors.As(err, &nae) || errors.As(err, &unf) {
		return ErrInvalidCredentials
	}
	return fmt.Errorf("initiate auth: %w", err)
}

// LogoutURL returns the hosted UI logout URL that ends the browser session and
// redirects to redirectURI.
func LogoutURL(cfg Config, redirectURI string) string {
	domain := strings.TrimSuffix(strings.TrimPrefix(cfg.Domain, "https://"), "/")
	q := url.Values{}
	q.Set("client_id", cfg.ClientID)
	q.Set("logout_uri", redirectURI)
	return "https://" + domain + "/logout?" + q.Encode()
}
