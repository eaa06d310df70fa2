package admincli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/clc-ministry/forms-backend/pkg/cognito"
)

// localProvider signs in against the server's POST /auth/login. Local tokens
// cannot be refreshed or revoked; signing out only forgets them.
type localProvider struct {
	base   string
	client *http.Client
	store  cognito.Store
	now    func() time.Time

	mu      sync.Mutex
	session *cognito.Session
}

func newLocalProvider(base string, client *http.Client, store cognito.Store) *localProvider {
	return &localProvider{base: base, client: client, store: store, now: time.Now}
}

func (p *localProvider) SignIn(ctx context.Context, username, password string) (*cognito.Session, error) {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, cognito.ErrInvalidCredentials
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sign in: status %d", resp.StatusCode)
	}
	var out struct {
		IDToken     string `json:"idToken"`
		AccessToken string `json:"accessToken"`
		ExpiresIn   int    `json:"expiresIn"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode sign in: %w", err)
	}
	claims, exp, err := cognito.ParseClaims(out.IDToken)
	if err != nil {
		return nil, err
	}
	if exp.IsZero() {
		exp = p.now().Add(time.Duration(out.ExpiresIn) * time.Second)
	}
	s := &cognito.Session{IDToken: out.IDToken, AccessToken: out.AccessToken, ExpiresAt: exp, Claims: claims}
	p.mu.Lock()
	p.session = s
	p.mu.Unlock()
	return s, p.store.Save(s)
}

func (p *localProvider) Restore(context.Context) (*cognito.Session, error) {
	s, err := p.store.Load()
	if err != nil {
		return nil, err
	}
	if s == nil || s.Expired(p.now(), 0) {
		return nil, cognito.ErrNoSession
	}
	p.mu.Lock()
	p.session = s
	p.mu.Unlock()
	return s, nil
}

func (p *localProvider) SignOut(context.Context) error {
	p.mu.Lock()
	p.session = nil
	p.mu.Unlock()
	return p.store.Clear()
}

func (p *localProvider) current() (*cognito.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil || p.session.Expired(p.now(), 0) {
		return nil, cognito.ErrNoSession
	}
	return p.session, nil
}

func (p *localProvider) IDToken(context.Context) (string, error) {
	s, err := p.current()
	if err != nil {
		return "", err
	}
	return s.IDToken, nil
}

func (p *localProvider) AccessToken(context.Context) (string, error) {
	s, err := p.current()
	if err != nil {
		return "", err
	}
	return s.AccessToken, nil
}
