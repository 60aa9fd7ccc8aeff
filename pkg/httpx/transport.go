package httpx

import (
	"fmt"
	"net/http"
	"time"

	"github.com/aussiebroadwan/aula/pkg/idx"
	"golang.org/x/time/rate"
)

// RequestIDHeader is set on every outbound request that doesn't already carry one.
const RequestIDHeader = "X-Request-ID"

// RequestIDTransport stamps outbound requests with a ULID request id.
type RequestIDTransport struct {
	Base http.RoundTripper
}

func (t *RequestIDTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Header.Get(RequestIDHeader) == "" {
		// RoundTrippers must not mutate the caller's request.
		r = r.Clone(r.Context())
		r.Header.Set(RequestIDHeader, idx.New().String())
	}
	return base(t.Base).RoundTrip(r)
}

// RateLimitConfig defines the client side request budget.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window.
	// Zero disables limiting.
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
	// Burst allows for temporary bursts above the rate limit
	Burst int
}

// DefaultRateLimit is generous enough for a page worth of parallel calls.
var DefaultRateLimit = RateLimitConfig{
	RequestsPerWindow: 600,
	Window:            time.Minute,
	Burst:             50,
}

// RateLimitTransport blocks outbound requests until the limiter admits them or
// the request context is done.
type RateLimitTransport struct {
	Base    http.RoundTripper
	limiter *rate.Limiter
}

// NewRateLimitTransport returns base unchanged when the config disables limiting.
func NewRateLimitTransport(base http.RoundTripper, cfg RateLimitConfig) http.RoundTripper {
	if cfg.RequestsPerWindow <= 0 || cfg.Window <= 0 {
		return base
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	perSecond := float64(cfg.RequestsPerWindow) / cfg.Window.Seconds()
	return &RateLimitTransport{
		Base:    base,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (t *RateLimitTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(r.Context()); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return base(t.Base).RoundTrip(r)
}

func base(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		return http.DefaultTransport
	}
	return rt
}
