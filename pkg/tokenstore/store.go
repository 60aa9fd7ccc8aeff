// Package tokenstore persists the client's credential pair and cached user
// profile under fixed keys. All writes that touch more than one key are
// atomic at the backend level so a reader never sees a half-written session.
package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/aula/pkg/cryptox"
)

// Fixed storage keys, shared by every backend.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyProfile      = "usuario"
)

var allKeys = []string{KeyAccessToken, KeyRefreshToken, KeyProfile}

// ErrNotFound is what backends return for a missing key. Store turns it
// into an empty value.
var ErrNotFound = errors.New("tokenstore: not found")

// Credentials is the access/refresh token pair.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Backend is the raw key-value persistence behind a Store.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)

	// Put writes every entry or none of them.
	Put(ctx context.Context, entries map[string][]byte) error

	// Delete removes the keys in one operation. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	Close() error
}

// Option configures a Store.
type Option func(*Store)

// WithSealer encrypts every value before it reaches the backend.
func WithSealer(s *cryptox.Sealer) Option {
	return func(st *Store) { st.sealer = s }
}

// Store is the token store used by the client session.
type Store struct {
	backend Backend
	sealer  *cryptox.Sealer
}

// New wraps a backend.
func New(b Backend, opts ...Option) *Store {
	s := &Store{backend: b}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewMemory is a convenience for an in-memory store.
func NewMemory() *Store {
	return New(NewMemoryBackend())
}

// AccessToken returns the current access token, or "" when there is none.
func (s *Store) AccessToken(ctx context.Context) (string, error) {
	v, err := s.get(ctx, KeyAccessToken)
	return string(v), err
}

// RefreshToken returns the current refresh token, or "" when there is none.
func (s *Store) RefreshToken(ctx context.Context) (string, error) {
	v, err := s.get(ctx, KeyRefreshToken)
	return string(v), err
}

// Credentials returns both tokens.
func (s *Store) Credentials(ctx context.Context) (Credentials, error) {
	access, err := s.AccessToken(ctx)
	if err != nil {
		return Credentials{}, err
	}
	refresh, err := s.RefreshToken(ctx)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{AccessToken: access, RefreshToken: refresh}, nil
}

// Profile returns the cached profile JSON, or nil.
func (s *Store) Profile(ctx context.Context) ([]byte, error) {
	return s.get(ctx, KeyProfile)
}

// SaveSession stores a fresh login: both tokens and the profile together.
func (s *Store) SaveSession(ctx context.Context, creds Credentials, profile []byte) error {
	entries := map[string][]byte{
		KeyAccessToken:  []byte(creds.AccessToken),
		KeyRefreshToken: []byte(creds.RefreshToken),
	}
	if profile != nil {
		entries[KeyProfile] = profile
	}
	return s.put(ctx, entries)
}

// SetAccessToken replaces the access token after a successful refresh.
func (s *Store) SetAccessToken(ctx context.Context, token string) error {
	return s.put(ctx, map[string][]byte{KeyAccessToken: []byte(token)})
}

// SaveProfile replaces the cached profile.
func (s *Store) SaveProfile(ctx context.Context, profile []byte) error {
	return s.put(ctx, map[string][]byte{KeyProfile: profile})
}

// Clear removes both tokens and the profile in one operation.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.backend.Delete(ctx, allKeys...); err != nil {
		return fmt.Errorf("tokenstore: clear: %w", err)
	}
	return nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.backend.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tokenstore: get %s: %w", key, err)
	}
	if len(v) == 0 || s.sealer == nil {
		return v, nil
	}

	plain, err := s.sealer.Open(key, v)
	if err != nil {
		return nil, fmt.Errorf("tokenstore: open %s: %w", key, err)
	}
	return plain, nil
}

func (s *Store) put(ctx context.Context, entries map[string][]byte) error {
	if s.sealer != nil {
		sealed := make(map[string][]byte, len(entries))
		for k, v := range entries {
			if len(v) == 0 {
				sealed[k] = v
				continue
			}
			enc, err := s.sealer.Seal(k, v)
			if err != nil {
				return fmt.Errorf("tokenstore: seal %s: %w", k, err)
			}
			sealed[k] = enc
		}
		entries = sealed
	}

	if err := s.backend.Put(ctx, entries); err != nil {
		return fmt.Errorf("tokenstore: put: %w", err)
	}
	return nil
}
