package aulasdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aussiebroadwan/aula/pkg/jwtx"
	"github.com/aussiebroadwan/aula/pkg/metrics"
	"github.com/aussiebroadwan/aula/pkg/tokenstore"
)

// TokenStore is the persistence a Session needs. *tokenstore.Store
// satisfies it.
type TokenStore interface {
	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	Profile(ctx context.Context) ([]byte, error)
	SaveSession(ctx context.Context, creds tokenstore.Credentials, profile []byte) error
	SetAccessToken(ctx context.Context, token string) error
	SaveProfile(ctx context.Context, profile []byte) error
	Clear(ctx context.Context) error
}

// Session is an authenticated view of the backend. Every request reads the
// access token from the store at send time. A 401 triggers at most one
// refresh for all requests that fail concurrently; the others queue behind
// it and are replayed, in arrival order, with the new token. A failed
// refresh terminates the session.
//
// A Session is safe for concurrent use.
type Session struct {
	client *SDKClient
	store  TokenStore

	mu         sync.Mutex
	refreshing bool
	waiters    []chan refreshResult

	hooksMu  sync.Mutex
	hooks    []hook
	nextHook uint64
}

type refreshResult struct {
	token string
	err   error
}

type hook struct {
	id uint64
	fn func(cause error)
}

// NewSession binds a client to a token store. Use it to resume a session
// persisted by an earlier Login.
func NewSession(client *SDKClient, store TokenStore) *Session {
	return &Session{client: client, store: store}
}

// Client returns the client the session sends through.
func (s *Session) Client() *SDKClient { return s.client }

// AccessToken returns the token currently in the store. It never refreshes.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	return s.store.AccessToken(ctx)
}

// CurrentUser returns the cached profile, or ErrNoSession when the store
// holds none.
func (s *Session) CurrentUser(ctx context.Context) (*User, error) {
	raw, err := s.store.Profile(ctx)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrNoSession
	}

	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("failed to decode cached profile: %w", err)
	}
	return &u, nil
}

// UserID returns the signed-in user's id, from the cached profile or, when
// that is missing, from the access token's subject.
func (s *Session) UserID(ctx context.Context) (string, error) {
	if u, err := s.CurrentUser(ctx); err == nil && u.ID != "" {
		return u.ID, nil
	}

	token, err := s.store.AccessToken(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrNoSession
	}

	claims, err := jwtx.ParseUnverified(token)
	if err != nil || claims.Subject == "" {
		return "", ErrNoSession
	}
	return claims.Subject, nil
}

// OnTerminated registers fn to run once per session termination, after the
// store has been cleared and queued requests rejected. The returned func
// unregisters it.
func (s *Session) OnTerminated(fn func(cause error)) (cancel func()) {
	s.hooksMu.Lock()
	s.nextHook++
	id := s.nextHook
	s.hooks = append(s.hooks, hook{id: id, fn: fn})
	s.hooksMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.hooksMu.Lock()
			defer s.hooksMu.Unlock()
			for i, h := range s.hooks {
				if h.id == id {
					s.hooks = append(s.hooks[:i], s.hooks[i+1:]...)
					return
				}
			}
		})
	}
}

// Logout tells the backend to revoke the refresh token, then terminates the
// session locally whatever the backend said.
func (s *Session) Logout(ctx context.Context) error {
	refresh, _ := s.store.RefreshToken(ctx)
	access, _ := s.store.AccessToken(ctx)

	var remoteErr error
	if refresh != "" {
		body, err := jsonPayload(RefreshRequest{RefreshToken: refresh})
		if err == nil {
			var resp *http.Response
			resp, err = s.client.doRequest(ctx, http.MethodPost, "/usuarios/logout", body, access)
			if err == nil {
				err = decodeJSON(resp, nil)
			}
		}
		if err != nil {
			s.client.Logger.Warn("logout request failed", "error", err)
			remoteErr = err
		}
	}

	if err := s.terminate(ctx, "logout", ErrLoggedOut); err != nil {
		return err
	}
	return remoteErr
}

// doAuthRequest sends an authenticated request and handles a 401 by
// refreshing once and replaying the same body. A second 401 is returned to
// the caller as is.
func (s *Session) doAuthRequest(ctx context.Context, method, path string, body payload) (*http.Response, error) {
	token, err := s.store.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read access token: %w", err)
	}

	resp, err := s.client.doRequest(ctx, method, path, body, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	drain(resp)

	fresh, err := s.awaitRefresh(ctx, token)
	if err != nil {
		return nil, err
	}

	metrics.RequestReplaysTotal.Inc()
	s.client.Logger.Debug("replaying request", "method", method, "path", path)
	return s.client.doRequest(ctx, method, path, body, fresh)
}

// awaitRefresh returns an access token to replay with. stale is the token
// the failed request was sent with.
func (s *Session) awaitRefresh(ctx context.Context, stale string) (string, error) {
	s.mu.Lock()

	if s.refreshing {
		ch := make(chan refreshResult, 1)
		s.waiters = append(s.waiters, ch)
		queued := len(s.waiters)
		s.mu.Unlock()

		metrics.RefreshWaitersTotal.Inc()
		s.client.Logger.Debug("queued behind token refresh", "position", queued)

		select {
		case res := <-ch:
			return res.token, res.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	// A refresh finished between this request being sent and its 401
	// arriving: replay with the token it produced.
	if current, err := s.store.AccessToken(ctx); err == nil && current != "" && current != stale {
		s.mu.Unlock()
		metrics.TokenRefreshTotal.WithLabelValues("skipped").Inc()
		return current, nil
	}

	s.refreshing = true
	s.mu.Unlock()

	res := refreshResult{err: &SessionTerminatedError{Cause: errors.New("refresh aborted")}}
	defer func() {
		s.mu.Lock()
		waiters := s.waiters
		s.waiters = nil
		s.refreshing = false
		s.mu.Unlock()

		for _, ch := range waiters {
			ch <- res
		}
		if res.err != nil {
			s.fireTerminated(res.err)
		}
	}()

	res = s.refresh(ctx)
	return res.token, res.err
}

// refresh performs the refresh call. On any failure the store is cleared
// before the gate opens again, so no later 401 can start a second refresh
// with the old refresh token.
func (s *Session) refresh(ctx context.Context) refreshResult {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.client.refreshTimeout())
	defer cancel()

	refresh, err := s.store.RefreshToken(rctx)
	if err == nil && refresh == "" {
		err = ErrNoRefreshToken
	}

	var resp *RefreshResponse
	if err == nil {
		resp, err = s.client.RefreshAccessToken(rctx, refresh)
	}
	if err == nil {
		err = s.store.SetAccessToken(rctx, resp.AccessToken)
	}

	if err != nil {
		metrics.TokenRefreshTotal.WithLabelValues("failure").Inc()
		s.client.Logger.Warn("token refresh failed, ending session", "error", err)
		s.clearStore(rctx, "refresh_failed")
		return refreshResult{err: &SessionTerminatedError{Cause: err}}
	}

	metrics.TokenRefreshTotal.WithLabelValues("success").Inc()
	s.client.Logger.Info("access token refreshed")
	return refreshResult{token: resp.AccessToken}
}

// terminate clears the store and notifies the hooks. Requests queued behind
// a refresh are released by the refresh itself.
func (s *Session) terminate(ctx context.Context, reason string, cause error) error {
	if err := s.clearStore(ctx, reason); err != nil {
		return err
	}
	s.fireTerminated(&SessionTerminatedError{Cause: cause})
	return nil
}

func (s *Session) clearStore(ctx context.Context, reason string) error {
	metrics.SessionTerminationsTotal.WithLabelValues(reason).Inc()
	if err := s.store.Clear(context.WithoutCancel(ctx)); err != nil {
		s.client.Logger.Error("failed to clear token store", "error", err)
		return fmt.Errorf("failed to clear token store: %w", err)
	}
	return nil
}

func (s *Session) fireTerminated(cause error) {
	s.hooksMu.Lock()
	hooks := make([]hook, len(s.hooks))
	copy(hooks, s.hooks)
	s.hooksMu.Unlock()

	for _, h := range hooks {
		h.fn(cause)
	}
}

func (c *SDKClient) refreshTimeout() time.Duration {
	if c.RefreshTimeout <= 0 {
		return DefaultRefreshTimeout
	}
	return c.RefreshTimeout
}
