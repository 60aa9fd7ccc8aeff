package aulasdk

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/aula/pkg/httpx"
	"github.com/aussiebroadwan/aula/pkg/slogx"
	"github.com/aussiebroadwan/aula/pkg/tokenstore"
)

// DefaultRefreshTimeout bounds a single refresh call.
const DefaultRefreshTimeout = 10 * time.Second

// SDKClient is a client for the classroom backend.
// It provides access to unauthenticated operations and can create authenticated Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger

	// RefreshTimeout bounds the refresh call made on behalf of a burst of
	// 401s. The refresh does not inherit the triggering request's
	// cancellation, only this deadline.
	RefreshTimeout time.Duration
}

// ClientOption configures an SDKClient.
type ClientOption func(*clientOptions)

type clientOptions struct {
	transport http.RoundTripper
	timeout   time.Duration
	rateLimit httpx.RateLimitConfig
	logger    *slog.Logger
	refresh   time.Duration
}

// WithTransport sets the innermost round tripper (defaults to http.DefaultTransport).
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(o *clientOptions) { o.transport = rt }
}

// WithTimeout sets the per-request timeout of the underlying http.Client.
func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) { o.timeout = d }
}

// WithRateLimit sets the client side request budget. A zero config disables it.
func WithRateLimit(cfg httpx.RateLimitConfig) ClientOption {
	return func(o *clientOptions) { o.rateLimit = cfg }
}

// WithLogger sets the logger used for session events and request logging.
func WithLogger(l *slog.Logger) ClientOption {
	return func(o *clientOptions) { o.logger = l }
}

// WithRefreshTimeout overrides DefaultRefreshTimeout.
func WithRefreshTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) { o.refresh = d }
}

// NewSDKClient creates a client for the backend at baseURL. Outbound
// requests go through request-id stamping, the rate limiter and request
// logging, in that order.
func NewSDKClient(baseURL string, opts ...ClientOption) *SDKClient {
	o := clientOptions{
		timeout:   10 * time.Second,
		rateLimit: httpx.DefaultRateLimit,
		refresh:   DefaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	var rt http.RoundTripper = &slogx.Transport{Base: o.transport, Logger: logger}
	rt = httpx.NewRateLimitTransport(rt, o.rateLimit)
	rt = &httpx.RequestIDTransport{Base: rt}

	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout:   o.timeout,
			Transport: rt,
		},
		Logger:         logger,
		RefreshTimeout: o.refresh,
	}
}

// Login exchanges credentials for a token pair, persists both tokens and the
// user's profile in store, and returns a Session bound to that store.
func (c *SDKClient) Login(ctx context.Context, store TokenStore, req LoginRequest) (*Session, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	body, err := jsonPayload(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/usuarios/login", body, "")
	if err != nil {
		return nil, err
	}

	var loginResp LoginResponse
	if err := decodeJSON(resp, &loginResp); err != nil {
		return nil, err
	}
	if loginResp.AccessToken == "" || loginResp.RefreshToken == "" {
		return nil, fmt.Errorf("login response is missing tokens")
	}

	profile, err := json.Marshal(loginResp.User)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile: %w", err)
	}

	creds := tokenstore.Credentials{
		AccessToken:  loginResp.AccessToken,
		RefreshToken: loginResp.RefreshToken,
	}
	if err := store.SaveSession(ctx, creds, profile); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	c.Logger.Info("login succeeded", "user_id", loginResp.User.ID, "role", loginResp.User.Role)
	return NewSession(c, store), nil
}

// RefreshAccessToken trades a refresh token for a new access token. The
// request is sent without an Authorization header.
func (c *SDKClient) RefreshAccessToken(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	body, err := jsonPayload(RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/usuarios/refresh-token", body, "")
	if err != nil {
		return nil, err
	}

	var refreshResp RefreshResponse
	if err := decodeJSON(resp, &refreshResp); err != nil {
		return nil, err
	}
	if refreshResp.AccessToken == "" {
		return nil, fmt.Errorf("refresh response is missing accessToken")
	}

	return &refreshResp, nil
}

// GetHealth checks whether the backend is up.
func (c *SDKClient) GetHealth(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/health", payload{}, "")
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health); err != nil {
		return nil, err
	}

	return &health, nil
}
