// Package mockapi is an in-memory classroom backend. It speaks the same
// HTTP and websocket contract as the real API and exposes knobs for tests:
// refresh call counting, forced refresh failure, access token invalidation
// and holding the notification feed endpoints open.
package mockapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aussiebroadwan/aula/pkg/aulasdk"
	"github.com/aussiebroadwan/aula/pkg/cryptox"
	"github.com/aussiebroadwan/aula/pkg/jwtx"
	"github.com/aussiebroadwan/aula/pkg/slogx"
	"golang.org/x/crypto/bcrypt"
)

const defaultIssuer = "aula-mock"

// Config configures a Backend. Zero values are usable.
type Config struct {
	Issuer    string
	AccessTTL time.Duration
	Logger    *slog.Logger

	// SeedFixtures loads the demo accounts and classroom data.
	SeedFixtures bool
}

type account struct {
	user aulasdk.User
	hash []byte
}

// Backend is the fake API. It is an http.Handler.
type Backend struct {
	handler http.Handler
	logger  *slog.Logger
	issuer  string
	ttl     time.Duration

	mu            sync.Mutex
	signer        *jwtx.HS256
	accounts      map[string]*account // by user id
	byEmail       map[string]*account
	refreshTokens map[string]string // refresh token -> user id
	courses       map[string]*aulasdk.Course
	enrollments   map[string]map[string]bool // course id -> student ids
	materials     []aulasdk.Material
	classes       map[string]*aulasdk.Class
	assignments   map[string]*aulasdk.Assignment
	submissions   map[string]*aulasdk.Submission
	exams         map[string]*aulasdk.Exam
	attempts      map[string]*aulasdk.Attempt
	attemptOwner  map[string]string
	results       []aulasdk.AttemptResult
	messages      []*aulasdk.Message
	notifications map[string][]aulasdk.Notification // by user id, newest first
	announcements []*aulasdk.Announcement
	hold          chan struct{}
	seq           int

	hub *hub

	refreshCalls atomic.Int64
	logoutCalls  atomic.Int64
	failRefresh  atomic.Bool
	refreshDelay atomic.Int64
	heldFeed     atomic.Int64
}

// New builds a Backend with a random signing secret.
func New(cfg Config) (*Backend, error) {
	if cfg.Issuer == "" {
		cfg.Issuer = defaultIssuer
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = jwtx.DefaultAccessTokenTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slogx.Discard()
	}

	signer, err := newSigner(cfg.Issuer)
	if err != nil {
		return nil, err
	}

	b := &Backend{
		logger:        cfg.Logger,
		issuer:        cfg.Issuer,
		ttl:           cfg.AccessTTL,
		signer:        signer,
		accounts:      make(map[string]*account),
		byEmail:       make(map[string]*account),
		refreshTokens: make(map[string]string),
		courses:       make(map[string]*aulasdk.Course),
		enrollments:   make(map[string]map[string]bool),
		classes:       make(map[string]*aulasdk.Class),
		assignments:   make(map[string]*aulasdk.Assignment),
		submissions:   make(map[string]*aulasdk.Submission),
		exams:         make(map[string]*aulasdk.Exam),
		attempts:      make(map[string]*aulasdk.Attempt),
		attemptOwner:  make(map[string]string),
		notifications: make(map[string][]aulasdk.Notification),
		hub:           newHub(),
	}

	if cfg.SeedFixtures {
		if err := b.seedFixtures(); err != nil {
			return nil, err
		}
	}

	b.handler = b.routes()
	return b, nil
}

func newSigner(issuer string) (*jwtx.HS256, error) {
	secret, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, fmt.Errorf("generate signing secret: %w", err)
	}
	return jwtx.NewHS256([]byte(secret), issuer)
}

func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.handler.ServeHTTP(w, r)
}

// Verify implements jwtx.Verifier against the current signing secret.
func (b *Backend) Verify(token string) (jwtx.Claims, error) {
	b.mu.Lock()
	signer := b.signer
	b.mu.Unlock()
	return signer.Verify(token)
}

// AddUser registers an account and returns the stored user.
func (b *Backend) AddUser(u aulasdk.User, password string) (aulasdk.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return aulasdk.User{}, fmt.Errorf("hash password: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if u.ID == "" {
		u.ID = b.nextID("u")
	}
	acc := &account{user: u, hash: hash}
	b.accounts[u.ID] = acc
	b.byEmail[u.Email] = acc
	return u, nil
}

// ============================================================================
// Test knobs
// ============================================================================

// RefreshCalls is the number of refresh-token requests received.
func (b *Backend) RefreshCalls() int { return int(b.refreshCalls.Load()) }

// LogoutCalls is the number of logout requests received.
func (b *Backend) LogoutCalls() int { return int(b.logoutCalls.Load()) }

// FailRefresh makes every refresh request answer 401.
func (b *Backend) FailRefresh(fail bool) { b.failRefresh.Store(fail) }

// SetRefreshDelay delays refresh responses, widening the window in which
// concurrent 401s pile up.
func (b *Backend) SetRefreshDelay(d time.Duration) { b.refreshDelay.Store(int64(d)) }

// InvalidateAccessTokens rotates the signing secret so every access token
// issued so far is rejected. Refresh tokens stay valid.
func (b *Backend) InvalidateAccessTokens() error {
	signer, err := newSigner(b.issuer)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.signer = signer
	b.mu.Unlock()
	return nil
}

// IssueAccessToken signs an access token for an existing user.
func (b *Backend) IssueAccessToken(userID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	acc, ok := b.accounts[userID]
	if !ok {
		return "", fmt.Errorf("unknown user %q", userID)
	}
	return b.signAccessLocked(acc.user)
}

// HoldFeed blocks the notification list and unread count endpoints until
// the returned release func is called.
func (b *Backend) HoldFeed() (release func()) {
	ch := make(chan struct{})
	b.mu.Lock()
	b.hold = ch
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if b.hold == ch {
				b.hold = nil
			}
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Backend) waitFeed(ctx context.Context) {
	b.mu.Lock()
	ch := b.hold
	b.mu.Unlock()
	if ch == nil {
		return
	}
	b.heldFeed.Add(1)
	defer b.heldFeed.Add(-1)
	select {
	case <-ch:
	case <-ctx.Done():
	}
}

// HeldFeedRequests reports how many feed requests are blocked by HoldFeed.
func (b *Backend) HeldFeedRequests() int { return int(b.heldFeed.Load()) }

// Notify stores a notification for the user and pushes it over every open
// realtime connection the user has joined.
func (b *Backend) Notify(userID string, n aulasdk.Notification) aulasdk.Notification {
	b.mu.Lock()
	if n.ID == "" {
		n.ID = b.nextID("n")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Type == "" {
		n.Type = aulasdk.NotificationSystem
	}
	b.notifications[userID] = append([]aulasdk.Notification{n}, b.notifications[userID]...)
	b.mu.Unlock()

	b.hub.push(userID, n)
	return n
}

// Joins reports user ids as their realtime connections send "join".
func (b *Backend) Joins() <-chan string { return b.hub.joins }

func (b *Backend) signAccessLocked(u aulasdk.User) (string, error) {
	claims := jwtx.NewAccessClaims(u.ID, string(u.Role), u.Name, b.issuer, b.ttl, time.Now())
	return b.signer.Sign(claims)
}

func (b *Backend) nextID(prefix string) string {
	b.seq++
	return fmt.Sprintf("%s-%d", prefix, b.seq)
}
