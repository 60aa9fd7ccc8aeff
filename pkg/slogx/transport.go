package slogx

import (
	"log/slog"
	"net/http"
	"time"
)

// Transport logs every outbound request at debug level, and failures at warn.
// The logger in the request context wins over base so request ids stick.
type Transport struct {
	Base   http.RoundTripper
	Logger *slog.Logger
}

func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	logger := t.Logger
	if l, ok := r.Context().Value(ctxKey{}).(*slog.Logger); ok {
		logger = l
	}
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()
	resp, err := base.RoundTrip(r)
	duration := time.Since(start).Milliseconds()

	if err != nil {
		logger.Warn("http_request_failed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", duration,
			"error", err,
		)
		return nil, err
	}

	logger.Debug("http_request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", resp.StatusCode,
		"duration_ms", duration,
	)
	return resp, nil
}
