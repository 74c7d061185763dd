// Package credentialapi is the HTTP client for the remote credential-issuing
// API. It translates the API's success/pending/error envelopes into the
// error taxonomy defined in the domain package.
package credentialapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/taskflow/portal/internal/core/domain"
	"github.com/taskflow/portal/internal/core/ports"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20

	pathLogin        = "/auth/login"
	pathOAuth        = "/auth/oauth"
	pathInviteVerify = "/auth/invite/verify"
	pathRegister     = "/auth/register"
	pathMe           = "/auth/me"
)

// Client implements ports.CredentialService over HTTP.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	log        zerolog.Logger

	// me collapses concurrent re-fetches for the same token.
	me singleflight.Group
}

// compile-time check
var _ ports.CredentialService = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithLogger sets the logger used for transport diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(cl *Client) { cl.log = log }
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		log:        zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// sessionResponse is the success envelope of the issuing endpoints.
type sessionResponse struct {
	Success *bool        `json:"success,omitempty"`
	Token   string       `json:"token"`
	User    *domain.User `json:"user"`
}

// errorResponse is the error envelope shared by every endpoint.
type errorResponse struct {
	Error         string       `json:"error"`
	Message       string       `json:"message"`
	NeedsApproval bool         `json:"needsApproval"`
	User          *domain.User `json:"user"`
}

type inviteRequest struct {
	Code string `json:"code"`
}

type inviteResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type meResponse struct {
	User *domain.User `json:"user"`
}

// PasswordLogin implements ports.CredentialService.
func (c *Client) PasswordLogin(ctx context.Context, req ports.PasswordLoginRequest) (*domain.AuthSession, error) {
	return c.issue(ctx, pathLogin, req)
}

// OAuthExchange implements ports.CredentialService.
func (c *Client) OAuthExchange(ctx context.Context, req ports.OAuthExchangeRequest) (*domain.AuthSession, error) {
	return c.issue(ctx, pathOAuth, req)
}

// Register implements ports.CredentialService.
func (c *Client) Register(ctx context.Context, payload ports.RegistrationPayload) (*domain.AuthSession, error) {
	return c.issue(ctx, pathRegister, payload)
}

// VerifyInvite implements ports.CredentialService.
func (c *Client) VerifyInvite(ctx context.Context, code string) error {
	var out inviteResponse
	if err := c.do(ctx, http.MethodPost, pathInviteVerify, "", inviteRequest{Code: code}, &out, false); err != nil {
		return err
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "Invalid invite code"
		}
		return &domain.UpstreamError{Status: http.StatusOK, Message: msg}
	}
	return nil
}

// CurrentUser implements ports.CredentialService. 401 and 403 responses are
// reported as domain.ErrUnauthorized. Concurrent calls for one token share a
// single request, which is not tied to any one caller's context; each caller
// stops waiting when its own context ends.
func (c *Client) CurrentUser(ctx context.Context, token string) (*domain.User, error) {
	ch := c.me.DoChan(token, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		var out meResponse
		if err := c.do(callCtx, http.MethodGet, pathMe, token, nil, &out, true); err != nil {
			return nil, err
		}
		if out.User == nil {
			return nil, &domain.UpstreamError{Status: http.StatusOK, Message: "Unexpected response from server"}
		}
		return out.User, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", domain.ErrTransport, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.User).Clone(), nil
	}
}

func (c *Client) issue(ctx context.Context, path string, body any) (*domain.AuthSession, error) {
	var out sessionResponse
	if err := c.do(ctx, http.MethodPost, path, "", body, &out, false); err != nil {
		return nil, err
	}
	if out.Success != nil && !*out.Success {
		return nil, &domain.UpstreamError{Status: http.StatusOK, Message: "Sign-in was not successful"}
	}
	return &domain.AuthSession{User: out.User, Token: out.Token}, nil
}

// do sends one request and decodes a 2xx body into out. protected marks
// calls made with a session token, whose 401/403 mean the session is gone.
func (c *Client) do(ctx context.Context, method, path, token string, body, out any, protected bool) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("credentialapi: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("credentialapi: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("credential service unreachable")
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", domain.ErrTransport, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return &domain.UpstreamError{Status: resp.StatusCode, Message: "Unexpected response from server"}
		}
		return nil
	}

	return classifyStatus(resp.StatusCode, raw, protected)
}

// classifyStatus turns a non-2xx response into a domain error.
func classifyStatus(status int, raw []byte, protected bool) error {
	var env errorResponse
	_ = json.Unmarshal(raw, &env)
	msg := env.Error
	if msg == "" {
		msg = env.Message
	}

	switch {
	case env.NeedsApproval:
		return &domain.ApprovalRequiredError{Message: msg, User: env.User}
	case status == http.StatusBadGateway, status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: upstream status %d", domain.ErrTransport, status)
	case protected && (status == http.StatusUnauthorized || status == http.StatusForbidden):
		return &domain.UpstreamError{Status: status, Message: orDefault(msg, "Your session has expired"), Cause: domain.ErrUnauthorized}
	case status == http.StatusForbidden:
		return &domain.UpstreamError{Status: status, Message: orDefault(msg, "Access denied"), Cause: domain.ErrAccessDenied}
	default:
		return &domain.UpstreamError{Status: status, Message: orDefault(msg, http.StatusText(status))}
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
