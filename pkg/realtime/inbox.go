package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/aula/pkg/aulasdk"
	"github.com/aussiebroadwan/aula/pkg/metrics"
	"github.com/aussiebroadwan/aula/pkg/slogx"
	"github.com/gorilla/websocket"
)

const (
	eventJoin         = "join"
	eventNotification = "nueva-notificacion"

	writeWait = 5 * time.Second
)

var (
	// ErrClosed is returned by Start on an inbox that was already closed.
	ErrClosed = errors.New("realtime: inbox closed")
	// ErrStarted is returned by a second call to Start.
	ErrStarted = errors.New("realtime: inbox already started")
)

// Source is the slice of a session the inbox needs. *aulasdk.Session
// satisfies it.
type Source interface {
	UserID(ctx context.Context) (string, error)
	AccessToken(ctx context.Context) (string, error)
	RecentNotifications(ctx context.Context, limit int) ([]aulasdk.Notification, error)
	UnreadNotificationCount(ctx context.Context) (int, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
	OnTerminated(fn func(cause error)) (cancel func())
}

// Config controls an Inbox.
type Config struct {
	// URL of the websocket endpoint, e.g. wss://aula.example.com/ws.
	URL string
	// Limit is how many notifications the initial load asks for.
	Limit int
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
	// OnNotification runs for every pushed notification the feed accepts.
	OnNotification func(aulasdk.Notification)
	Logger         *slog.Logger
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Inbox keeps a Feed in sync with the backend for the session's user.
type Inbox struct {
	src  Source
	cfg  Config
	feed *Feed
	log  *slog.Logger

	mu          sync.Mutex
	started     bool
	closed      bool
	cancel      context.CancelFunc
	conn        *websocket.Conn
	unsubscribe func()

	loaded chan struct{}
	done   chan struct{}
}

// NewInbox returns an inbox that has not started yet.
func NewInbox(src Source, cfg Config) *Inbox {
	if cfg.Limit <= 0 {
		cfg.Limit = aulasdk.DefaultNotificationLimit
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	log := cfg.Logger
	if log == nil {
		log = slogx.FromContext(context.Background())
	}

	return &Inbox{
		src:    src,
		cfg:    cfg,
		feed:   NewFeed(),
		log:    log.With("component", "realtime"),
		loaded: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// WebsocketURL derives the realtime endpoint from an API base URL:
// http becomes ws, https becomes wss, and "/ws" is appended to the path.
func WebsocketURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	u.RawQuery, u.Fragment = "", ""
	return u.String(), nil
}

// Feed returns the live feed.
func (i *Inbox) Feed() *Feed { return i.feed }

// Loaded is closed once both initial loads have finished, successfully or not.
func (i *Inbox) Loaded() <-chan struct{} { return i.loaded }

// Done is closed when the inbox has shut down.
func (i *Inbox) Done() <-chan struct{} { return i.done }

// Start loads the recent notifications and the unread count concurrently,
// opens the websocket and joins the user's channel. It returns
// aulasdk.ErrNoSession when there is no signed-in user. A handshake
// rejected with 401 is retried once with the token the initial load
// refreshed. Any other dial failure is returned while the initial load
// carries on; the inbox then stays HTTP-only until closed.
//
// The inbox closes itself when the session terminates or ctx ends.
func (i *Inbox) Start(ctx context.Context) error {
	i.mu.Lock()
	switch {
	case i.closed:
		i.mu.Unlock()
		return ErrClosed
	case i.started:
		i.mu.Unlock()
		return ErrStarted
	}
	i.started = true
	i.mu.Unlock()

	userID, err := i.src.UserID(ctx)
	if err != nil || userID == "" {
		return aulasdk.ErrNoSession
	}
	token, err := i.src.AccessToken(ctx)
	if err != nil || token == "" {
		return aulasdk.ErrNoSession
	}

	runCtx, cancel := context.WithCancel(ctx)
	unsubscribe := i.src.OnTerminated(func(error) { i.Close() })

	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		cancel()
		unsubscribe()
		return ErrClosed
	}
	i.cancel = cancel
	i.unsubscribe = unsubscribe
	i.mu.Unlock()

	go func() {
		<-runCtx.Done()
		i.Close()
	}()

	i.load(runCtx)

	conn, status, err := i.dial(runCtx, token)
	if status == http.StatusUnauthorized {
		// The initial load refreshes an expired token through the session.
		select {
		case <-i.loaded:
		case <-runCtx.Done():
		}
		if fresh, ferr := i.src.AccessToken(runCtx); ferr == nil && fresh != "" && fresh != token {
			i.log.Debug("redialing realtime with refreshed token")
			conn, _, err = i.dial(runCtx, fresh)
		}
	}
	if err != nil {
		i.log.Warn("realtime unavailable", "error", err)
		return fmt.Errorf("dial realtime: %w", err)
	}

	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	i.conn = conn
	i.mu.Unlock()

	join, _ := json.Marshal(userID)
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(envelope{Event: eventJoin, Data: join}); err != nil {
		i.log.Warn("realtime join failed", "error", err)
		i.dropConn(conn)
		return fmt.Errorf("join realtime: %w", err)
	}

	metrics.RealtimeConnected.Set(1)
	i.log.Debug("realtime joined", "user_id", userID)
	go i.readLoop(conn)
	return nil
}

func (i *Inbox) load(ctx context.Context) {
	i.feed.BeginLoad()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		items, err := i.src.RecentNotifications(ctx, i.cfg.Limit)
		if err != nil {
			i.log.Warn("load notifications failed", "error", err)
			return
		}
		i.feed.Seed(items)
	}()
	go func() {
		defer wg.Done()
		count, err := i.src.UnreadNotificationCount(ctx)
		if err != nil {
			i.log.Warn("load unread count failed", "error", err)
			return
		}
		i.feed.SetUnread(count)
	}()

	go func() {
		wg.Wait()
		i.feed.EndLoad()
		close(i.loaded)
	}()
}

// dial opens the socket. The handshake status is returned alongside a
// failure so callers can tell a rejected token apart from a dead endpoint.
func (i *Inbox) dial(ctx context.Context, token string) (*websocket.Conn, int, error) {
	wsURL := i.cfg.URL
	if wsURL == "" {
		return nil, 0, errors.New("no websocket url configured")
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := i.cfg.Dialer.DialContext(ctx, wsURL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, resp.StatusCode, fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return nil, 0, err
	}
	return conn, 0, nil
}

// dropConn closes conn and forgets it, leaving the inbox HTTP-only.
func (i *Inbox) dropConn(conn *websocket.Conn) {
	i.mu.Lock()
	if i.conn == conn {
		i.conn = nil
	}
	i.mu.Unlock()
	_ = conn.Close()
}

// Connected reports whether the realtime socket is up.
func (i *Inbox) Connected() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.conn != nil
}

func (i *Inbox) readLoop(conn *websocket.Conn) {
	defer metrics.RealtimeConnected.Set(0)
	defer i.dropConn(conn)

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			if !i.isClosed() {
				i.log.Warn("realtime connection lost", "error", err)
			}
			return
		}
		metrics.RealtimeEventsTotal.WithLabelValues(env.Event).Inc()

		switch env.Event {
		case eventNotification:
			var n aulasdk.Notification
			if err := json.Unmarshal(env.Data, &n); err != nil {
				i.log.Warn("bad notification payload", "error", err)
				continue
			}
			if i.feed.Push(n) && i.cfg.OnNotification != nil {
				i.cfg.OnNotification(n)
			}
		default:
			i.log.Debug("ignoring realtime event", "event", env.Event)
		}
	}
}

// MarkRead marks a notification read on the backend, then in the feed.
func (i *Inbox) MarkRead(ctx context.Context, id string) error {
	if err := i.src.MarkNotificationRead(ctx, id); err != nil {
		return err
	}
	if !i.feed.MarkRead(id) {
		i.resyncUnread(ctx)
	}
	return nil
}

// MarkAllRead marks everything read on the backend, then in the feed.
func (i *Inbox) MarkAllRead(ctx context.Context) error {
	if err := i.src.MarkAllNotificationsRead(ctx); err != nil {
		return err
	}
	i.feed.MarkAllRead()
	return nil
}

// Delete removes a notification on the backend, then from the feed.
func (i *Inbox) Delete(ctx context.Context, id string) error {
	if err := i.src.DeleteNotification(ctx, id); err != nil {
		return err
	}
	if !i.feed.Remove(id) {
		i.resyncUnread(ctx)
	}
	return nil
}

// resyncUnread reloads the counter after a change to an item the feed does
// not hold, such as one older than the load limit. While the initial load
// is pending its own count request settles the counter instead.
func (i *Inbox) resyncUnread(ctx context.Context) {
	select {
	case <-i.loaded:
	default:
		return
	}
	count, err := i.src.UnreadNotificationCount(ctx)
	if err != nil {
		i.log.Warn("reload unread count failed", "error", err)
		return
	}
	i.feed.SetUnread(count)
}

// Close disconnects and stops the feed. No push changes the feed after
// Close returns. Safe to call more than once.
func (i *Inbox) Close() {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return
	}
	i.closed = true
	cancel, conn, unsubscribe := i.cancel, i.conn, i.unsubscribe
	i.mu.Unlock()

	i.feed.Close()
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if unsubscribe != nil {
		unsubscribe()
	}
	close(i.done)

	i.log.Debug("realtime inbox closed")
}

func (i *Inbox) isClosed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.closed
}
