// Package adminclient calls the admin endpoints on behalf of a signed-in
// administrator. Each call is sent with the session's ID token first and, if
// the server rejects it with 401 or 403, retried exactly once with the access
// token.
package adminclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout bounds each HTTP attempt when Client.Timeout is zero.
const DefaultTimeout = 15 * time.Second

// ErrBusy is returned when an action of the same kind is already in flight.
var ErrBusy = errors.New("adminclient: action already in progress")

// TokenSource supplies the two credentials of one session.
type TokenSource interface {
	IDToken(ctx context.Context) (string, error)
	AccessToken(ctx context.Context) (string, error)
}

// State is a step of the per-action call sequence.
type State int

const (
	StateIdle State = iota
	StateRequestingPrimary
	StateRetryingFallback
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequestingPrimary:
		return "requesting_primary"
	case StateRetryingFallback:
		return "retrying_fallback"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var transitions = map[State][]State{
	StateIdle:              {StateRequestingPrimary},
	StateRequestingPrimary: {StateSuccess, StateRetryingFallback, StateFailed},
	StateRetryingFallback:  {StateSuccess, StateFailed},
	StateSuccess:           {StateIdle},
	StateFailed:            {StateIdle},
}

func canMove(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Action names a user-triggered operation. At most one call per action is in flight.
type Action string

const (
	ActionListOrders        Action = "list_orders"
	ActionListRegistrations Action = "list_registrations"
	ActionApprove           Action = "approve"
	ActionAttendance        Action = "attendance"
	ActionDelete            Action = "delete"
	ActionExport            Action = "export"
	ActionExportStatus      Action = "export_status"
)

// Request describes one admin API call relative to the client's base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Response is a successful (2xx) reply.
type Response struct {
	Status int
	Body   []byte
}

// Client is the admin session client. The zero value is not usable; set
// BaseURL and Tokens or use New.
type Client struct {
	BaseURL    string
	Tokens     TokenSource
	HTTPClient *http.Client
	// Timeout bounds each attempt. Zero means DefaultTimeout; negative disables it.
	Timeout time.Duration
	// OnTransition, when set, observes every state change. It runs with the
	// client's lock held and must not call back into the client.
	OnTransition func(action Action, from, to State)

	mu     sync.Mutex
	states map[Action]State
}

// New creates a client for the API at baseURL.
func New(baseURL string, tokens TokenSource) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), Tokens: tokens}
}

// State reports the current state of action; StateIdle when nothing is in flight.
func (c *Client) State(action Action) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[action]
}

func (c *Client) begin(action Action) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.states == nil {
		c.states = make(map[Action]State)
	}
	if c.states[action] != StateIdle {
		return false
	}
	c.states[action] = StateRequestingPrimary
	c.notify(action, StateIdle, StateRequestingPrimary)
	return true
}

func (c *Client) move(action Action, to State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	from := c.states[action]
	if !canMove(from, to) {
		panic(fmt.Sprintf("adminclient: illegal transition %s -> %s", from, to))
	}
	if to == StateIdle {
		delete(c.states, action)
	} else {
		c.states[action] = to
	}
	c.notify(action, from, to)
}

func (c *Client) notify(action Action, from, to State) {
	if c.OnTransition != nil {
		c.OnTransition(action, from, to)
	}
}

// Do runs req under action with the primary/fallback token sequence.
// Non-2xx replies are returned as *APIError, transport failures as *NetworkError.
func (c *Client) Do(ctx context.Context, action Action, req Request) (*Response, error) {
	if !c.begin(action) {
		return nil, ErrBusy
	}
	ok := false
	defer func() {
		if ok {
			c.move(action, StateSuccess)
		} else {
			c.move(action, StateFailed)
		}
		c.move(action, StateIdle)
	}()
	resp, err := c.run(ctx, action, req)
	ok = err == nil
	return resp, err
}

func (c *Client) run(ctx context.Context, action Action, req Request) (*Response, error) {
	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	token, err := c.Tokens.IDToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("id token: %w", err)
	}
	resp, err := c.send(ctx, req, body, token)
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusUnauthorized && resp.Status != http.StatusForbidden {
		return finish(resp)
	}

	c.move(action, StateRetryingFallback)
	token, err = c.Tokens.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("access token: %w", err)
	}
	resp, err = c.send(ctx, req, body, token)
	if err != nil {
		return nil, err
	}
	return finish(resp)
}

func finish(resp *Response) (*Response, error) {
	if resp.Status >= 200 && resp.Status < 300 {
		return resp, nil
	}
	return nil, newAPIError(resp.Status, resp.Body)
}

func encodeBody(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return b, nil
}

func (c *Client) send(ctx context.Context, req Request, body []byte, token string) (*Response, error) {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	target := c.BaseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	httpResp, err := hc.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Op: method + " " + req.Path, Err: err}
	}
	defer httpResp.Body.Close()
	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &NetworkError{Op: method + " " + req.Path, Err: err}
	}
	return &Response{Status: httpResp.StatusCode, Body: data}, nil
}
