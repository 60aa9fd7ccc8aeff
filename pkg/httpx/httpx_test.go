package httpx_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/aula/pkg/httpx"
	"github.com/aussiebroadwan/aula/pkg/idx"
	"github.com/aussiebroadwan/aula/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestRequestIDTransport(t *testing.T) {
	t.Parallel()

	var seen atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.Header.Get(httpx.RequestIDHeader))
	}))
	t.Cleanup(srv.Close)

	client := &http.Client{Transport: &httpx.RequestIDTransport{}}

	t.Run("generates one", func(t *testing.T) {
		resp, err := client.Get(srv.URL)
		require.NoError(t, err)
		resp.Body.Close()

		_, err = idx.Parse(seen.Load().(string))
		require.NoError(t, err)
	})

	t.Run("keeps caller's", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
		req.Header.Set(httpx.RequestIDHeader, "mine")

		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, "mine", seen.Load())
	})
}

func TestRateLimitTransport(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	t.Cleanup(srv.Close)

	t.Run("disabled returns base", func(t *testing.T) {
		base := &httpx.RequestIDTransport{}
		rt := httpx.NewRateLimitTransport(base, httpx.RateLimitConfig{})
		require.Same(t, base, rt)
	})

	t.Run("waits past burst and honours context", func(t *testing.T) {
		rt := httpx.NewRateLimitTransport(nil, httpx.RateLimitConfig{
			RequestsPerWindow: 1,
			Window:            time.Hour,
			Burst:             1,
		})
		client := &http.Client{Transport: rt}

		resp, err := client.Get(srv.URL)
		require.NoError(t, err)
		resp.Body.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
		require.NoError(t, err)

		_, err = client.Do(req)
		require.Error(t, err)
	})
}

func TestAuthnMiddleware(t *testing.T) {
	t.Parallel()

	h, err := jwtx.NewHS256([]byte("0123456789abcdef0123456789abcdef"), "aula")
	require.NoError(t, err)

	protected := httpx.AuthnMiddleware(h)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{
			"user": httpx.UserIDFromContext(r.Context()),
			"role": httpx.RoleFromContext(r.Context()),
		})
	}))

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "missing bearer token", body["msg"])
	})

	t.Run("expired token", func(t *testing.T) {
		tok, err := h.Sign(jwtx.NewAccessClaims("u1", "student", "", "", time.Minute, time.Now().Add(-time.Hour)))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		tok, err := h.Sign(jwtx.NewAccessClaims("u1", "student", "", "", time.Minute, time.Now()))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "u1", body["user"])
		require.Equal(t, "student", body["role"])
	})
}

func TestChainOrder(t *testing.T) {
	t.Parallel()

	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mw("a"), mw("b"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"a", "b", "handler"}, order)
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	h, err := jwtx.NewHS256([]byte("0123456789abcdef0123456789abcdef"), "aula")
	require.NoError(t, err)

	handler := httpx.Chain(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }),
		httpx.AuthnMiddleware(h),
		httpx.RequireRole("admin", "teacher"),
	)

	tests := []struct {
		role string
		want int
	}{
		{"admin", http.StatusNoContent},
		{"teacher", http.StatusNoContent},
		{"student", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			tok, err := h.Sign(jwtx.NewAccessClaims("u1", tt.role, "", "", time.Minute, time.Now()))
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/cursos", nil)
			req.Header.Set("Authorization", "Bearer "+tok)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, tt.want, rec.Code)
		})
	}
}
