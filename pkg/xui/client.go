package xui

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tphan267/xui-hub/pkg/logger"
	"github.com/tphan267/xui-hub/pkg/models"
)

const (
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 16 << 20
)

// DefaultSessionCookies are the cookie name prefixes issued by x-ui and 3x-ui releases
var DefaultSessionCookies = []string{"session", "3x-ui"}

// Options configures a Client
type Options struct {
	// Timeout bounds every single HTTP call (login and downstream separately)
	Timeout time.Duration
	// VerifyTLS enables certificate validation for https panels
	VerifyTLS bool
	// SessionCookies are the accepted session cookie name prefixes
	SessionCookies []string
	Paths          Paths
	// CacheTTL > 0 reuses panel sessions per server for that long
	CacheTTL time.Duration
	Logger   *logger.Logger
}

// Session is a panel session credential in "name=value" form
type Session struct {
	Cookie string
	cached bool
}

// Client talks to remote panels on behalf of registry records.
// It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	paths      Paths
	cookies    []string
	verifyTLS  bool
	cache      *sessionCache
	logger     *logger.Logger
	tlsWarn    sync.Once
}

// NewClient creates a panel client
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if len(opts.SessionCookies) == 0 {
		opts.SessionCookies = DefaultSessionCookies
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: !opts.VerifyTLS, //nolint:gosec // panels commonly use self-signed certificates
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		paths:     opts.Paths.withDefaults(),
		cookies:   opts.SessionCookies,
		verifyTLS: opts.VerifyTLS,
		logger:    opts.Logger,
	}
	if opts.CacheTTL > 0 {
		c.cache = newSessionCache(opts.CacheTTL)
	}
	return c
}

// Paths returns the effective panel API paths
func (c *Client) Paths() Paths {
	return c.paths
}

// Login authenticates against the panel and returns the session cookie.
// Every failure, including timeouts, is an *AuthError. Nothing is retried.
func (c *Client) Login(ctx context.Context, server *models.Server) (sess *Session, err error) {
	start := time.Now()
	defer func() { observe(OpLogin, start, err) }()

	endpoint := BaseURL(server)
	c.warnInsecure(server)

	payload, err := json.Marshal(map[string]string{
		"username": server.Username,
		"password": server.Password,
	})
	if err != nil {
		return nil, &AuthError{Endpoint: endpoint, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL(server, c.paths.Login), bytes.NewReader(payload))
	if err != nil {
		return nil, &AuthError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &AuthError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &AuthError{Endpoint: endpoint, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &AuthError{Endpoint: endpoint, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	var result struct {
		Success *bool  `json:"success"`
		Msg     string `json:"msg"`
	}
	if json.Unmarshal(body, &result) == nil && result.Success != nil && !*result.Success {
		msg := result.Msg
		if msg == "" {
			msg = "credentials rejected"
		}
		return nil, &AuthError{Endpoint: endpoint, Err: errors.New(msg)}
	}

	cookie := c.sessionCookie(resp)
	if cookie == "" {
		return nil, &AuthError{Endpoint: endpoint, Err: errors.New("no session cookie in response")}
	}

	c.logger.Debug("Logged in to %s", endpoint)
	return &Session{Cookie: cookie}, nil
}

// sessionCookie returns "name=value" of the first cookie with a recognised prefix
func (c *Client) sessionCookie(resp *http.Response) string {
	for _, ck := range resp.Cookies() {
		if ck.Value == "" {
			continue
		}
		for _, prefix := range c.cookies {
			if strings.HasPrefix(ck.Name, prefix) {
				return ck.Name + "=" + ck.Value
			}
		}
	}
	return ""
}

// session returns a cached session or performs a fresh login
func (c *Client) session(ctx context.Context, server *models.Server) (*Session, error) {
	if c.cache != nil {
		if cookie, ok := c.cache.get(server); ok {
			SessionCacheHitsTotal.Inc()
			return &Session{Cookie: cookie, cached: true}, nil
		}
	}

	sess, err := c.Login(ctx, server)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.put(server, sess.Cookie)
	}
	return sess, nil
}

// Invalidate drops any cached session of the server
func (c *Client) Invalidate(serverID string) {
	if c.cache != nil {
		c.cache.remove(serverID)
	}
}

// Do logs in and performs one panel API call, returning the raw JSON body.
// Login failures are *AuthError, everything after login is *RemoteError.
func (c *Client) Do(ctx context.Context, server *models.Server, op Op, method, path string, body []byte) (raw json.RawMessage, err error) {
	start := time.Now()
	defer func() { observe(op, start, err) }()

	sess, err := c.session(ctx, server)
	if err != nil {
		return nil, err
	}

	raw, err = c.send(ctx, server, sess, op, method, path, body)

	var remoteErr *RemoteError
	if sess.cached && errors.As(err, &remoteErr) && remoteErr.StatusCode == http.StatusUnauthorized {
		c.logger.Debug("Cached session for %s rejected, logging in again", BaseURL(server))
		c.Invalidate(server.ID)

		sess, err = c.session(ctx, server)
		if err != nil {
			return nil, err
		}
		raw, err = c.send(ctx, server, sess, op, method, path, body)
	}

	return raw, err
}

func (c *Client) send(ctx context.Context, server *models.Server, sess *Session, op Op, method, path string, body []byte) (json.RawMessage, error) {
	endpoint := BaseURL(server)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpointURL(server, path), reader)
	if err != nil {
		return nil, &RemoteError{Endpoint: endpoint, Operation: op, Err: err}
	}
	req.Header.Set("Cookie", sess.Cookie)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RemoteError{Endpoint: endpoint, Operation: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &RemoteError{Endpoint: endpoint, Operation: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteError{
			Endpoint:   endpoint,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || !json.Valid(data) {
		return nil, &RemoteError{Endpoint: endpoint, Operation: op, StatusCode: resp.StatusCode, Err: errMalformed}
	}

	return json.RawMessage(data), nil
}

func (c *Client) warnInsecure(server *models.Server) {
	if c.verifyTLS || !server.UseTLS {
		return
	}
	c.tlsWarn.Do(func() {
		c.logger.Warn("TLS certificate verification is disabled for remote panels (remote.verify_tls=false)")
	})
}

// Status fetches the panel's system status
func (c *Client) Status(ctx context.Context, server *models.Server) (json.RawMessage, error) {
	return c.Do(ctx, server, OpStatus, http.MethodPost, c.paths.Status, nil)
}

// ListInbounds fetches the panel's inbound list
func (c *Client) ListInbounds(ctx context.Context, server *models.Server) (json.RawMessage, error) {
	return c.Do(ctx, server, OpListInbounds, http.MethodGet, c.paths.ListInbounds, nil)
}

// AddInbound forwards an inbound payload verbatim
func (c *Client) AddInbound(ctx context.Context, server *models.Server, payload []byte) (json.RawMessage, error) {
	return c.Do(ctx, server, OpAddInbound, http.MethodPost, c.paths.AddInbound, payload)
}

// UpdateInbound forwards an inbound payload verbatim
func (c *Client) UpdateInbound(ctx context.Context, server *models.Server, inboundID string, payload []byte) (json.RawMessage, error) {
	return c.Do(ctx, server, OpUpdateInbound, http.MethodPost, withID(c.paths.UpdateInbound, inboundID), payload)
}

// DeleteInbound removes an inbound on the panel
func (c *Client) DeleteInbound(ctx context.Context, server *models.Server, inboundID string) (json.RawMessage, error) {
	return c.Do(ctx, server, OpDeleteInbound, http.MethodPost, withID(c.paths.DeleteInbound, inboundID), nil)
}
