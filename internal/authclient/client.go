// Package authclient is the REST client of the remote authentication service.
//
// It maps HTTP outcomes onto the sentinels in package errs and raises the
// global logout broadcast whenever an authenticated call is answered with 401.
package authclient

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
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ieazie/doc-extract/internal/broadcast"
	"github.com/ieazie/doc-extract/internal/errs"
	"github.com/ieazie/doc-extract/internal/model"
)

// API paths.
const (
	PathLogin        = "/api/v1/auth/login"
	PathMe           = "/api/v1/auth/me"
	PathTenant       = "/api/v1/auth/tenant"
	PathSwitchTenant = "/api/v1/auth/switch-tenant"
)

// SwitchTenantRequest is the body of a tenant switch.
type SwitchTenantRequest struct {
	TenantID string `json:"tenant_id" validate:"required"`
}

// ErrorResponse is the JSON error body returned by the backend.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Client talks to the authentication service.
type Client struct {
	baseURL  string
	hc       *http.Client
	retry    RetryConfig
	bus      *broadcast.Bus
	log      *zap.Logger
	validate *validator.Validate
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.hc = hc } }

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option { return func(c *Client) { c.hc.Timeout = d } }

// WithRetry replaces the retry policy.
func WithRetry(cfg RetryConfig) Option { return func(c *Client) { c.retry = cfg } }

// WithBus sets the bus that receives logout events. Defaults to broadcast.Default().
func WithBus(b *broadcast.Bus) Option { return func(c *Client) { c.bus = b } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: base url %q", errs.ErrInvalidInput, baseURL)
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		hc:       &http.Client{Timeout: 15 * time.Second},
		retry:    DefaultRetryConfig(),
		bus:      broadcast.Default(),
		log:      zap.NewNop(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Login exchanges credentials for tokens and the user record.
// A 401 here is a rejected login, not an expired session, so no logout is broadcast.
func (c *Client) Login(ctx context.Context, creds model.Credentials) (model.LoginResult, error) {
	var out model.LoginResult
	if err := c.validate.Struct(creds); err != nil {
		return out, fmt.Errorf("%w: %v", errs.ErrInvalidInput, err)
	}
	resp, err := c.do(ctx, http.MethodPost, PathLogin, creds, "")
	if err != nil {
		return out, fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return out, fmt.Errorf("login: %w: %s", errs.ErrUnauthorized, errorText(resp))
	case http.StatusTooManyRequests:
		return out, fmt.Errorf("login: %w", errs.ErrRateLimited)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return out, fmt.Errorf("login: %w: %s", errs.ErrInvalidInput, errorText(resp))
	default:
		return out, unexpected("login", resp)
	}
	if err := decode(resp, &out); err != nil {
		return out, fmt.Errorf("login: %w", err)
	}
	if out.AccessToken == "" {
		return out, fmt.Errorf("login: %w: empty access token", errs.ErrTransient)
	}
	return out, nil
}

// CurrentUser returns the authenticated user.
func (c *Client) CurrentUser(ctx context.Context) (model.User, error) {
	var out model.User
	resp, err := c.authed(ctx, http.MethodGet, PathMe, nil)
	if err != nil {
		return out, fmt.Errorf("current user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return out, unexpected("current user", resp)
	}
	if err := decode(resp, &out); err != nil {
		return out, fmt.Errorf("current user: %w", err)
	}
	return out, nil
}

// CurrentTenant returns the tenant the user is currently working in.
func (c *Client) CurrentTenant(ctx context.Context) (model.Tenant, error) {
	var out model.Tenant
	resp, err := c.authed(ctx, http.MethodGet, PathTenant, nil)
	if err != nil {
		return out, fmt.Errorf("current tenant: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return out, fmt.Errorf("current tenant: %w", errs.ErrNotFound)
	default:
		return out, unexpected("current tenant", resp)
	}
	if err := decode(resp, &out); err != nil {
		return out, fmt.Errorf("current tenant: %w", err)
	}
	return out, nil
}

// SwitchTenant asks the backend to move the user into tenantID.
func (c *Client) SwitchTenant(ctx context.Context, tenantID string) error {
	body := SwitchTenantRequest{TenantID: tenantID}
	if err := c.validate.Struct(body); err != nil {
		return fmt.Errorf("switch tenant: %w: %v", errs.ErrTenantSwitch, err)
	}
	resp, err := c.authed(ctx, http.MethodPost, PathSwitchTenant, body)
	if err != nil {
		return fmt.Errorf("switch tenant: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK:
		return nil
	case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound:
		return fmt.Errorf("switch tenant: %w: %s", errs.ErrTenantSwitch, errorText(resp))
	default:
		return unexpected("switch tenant", resp)
	}
}

// authed performs a call that needs the bearer token from ctx.
// A 401 is converted to errs.ErrUnauthorized and broadcast as a logout.
func (c *Client) authed(ctx context.Context, method, path string, body any) (*http.Response, error) {
	tok, ok := AccessTokenFromCtx(ctx)
	if !ok {
		return nil, errs.ErrNotAuthenticated
	}
	resp, err := c.do(ctx, method, path, body, tok)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		c.log.Info("credentials rejected, broadcasting logout", zap.String("path", path))
		c.bus.Publish(broadcast.Event{Reason: broadcast.ReasonUnauthorized, Source: path, Token: tok})
		return nil, errs.ErrUnauthorized
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string) (*http.Response, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		payload = b
	}
	newReq := func() (*http.Request, error) {
		var r io.Reader
		if payload != nil {
			r = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return req, nil
	}

	start := time.Now()
	resp, err := doWithRetry(ctx, c.hc, newReq, c.retry)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		c.log.Warn("auth service unreachable", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", errs.ErrTransient, err)
	}
	c.log.Debug("auth service call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)
	return resp, nil
}

func decode(resp *http.Response, v any) error {
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decode response: %v", errs.ErrTransient, err)
	}
	return nil
}

func errorText(resp *http.Response) string {
	var er ErrorResponse
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if json.Unmarshal(b, &er) == nil && er.Error != "" {
		return er.Error
	}
	return strings.TrimSpace(string(b))
}

func unexpected(op string, resp *http.Response) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%s: %w", op, errs.ErrRateLimited)
	}
	return fmt.Errorf("%s: %w: unexpected status %d: %s", op, errs.ErrTransient, resp.StatusCode, errorText(resp))
}
