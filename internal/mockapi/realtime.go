package mockapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/aussiebroadwan/aula/pkg/aulasdk"
	"github.com/aussiebroadwan/aula/pkg/httpx"
	"github.com/aussiebroadwan/aula/pkg/slogx"
	"github.com/gorilla/websocket"
)

const (
	eventJoin         = "join"
	eventNotification = "nueva-notificacion"

	writeWait = 5 * time.Second
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type wsConn struct {
	conn *websocket.Conn

	mu sync.Mutex // serialises writes
}

func (c *wsConn) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// hub tracks joined connections per user id.
type hub struct {
	mu    sync.Mutex
	rooms map[string]map[*wsConn]struct{}
	joins chan string
}

func newHub() *hub {
	return &hub{
		rooms: make(map[string]map[*wsConn]struct{}),
		joins: make(chan string, 64),
	}
}

func (h *hub) join(userID string, c *wsConn) {
	h.mu.Lock()
	if h.rooms[userID] == nil {
		h.rooms[userID] = make(map[*wsConn]struct{})
	}
	h.rooms[userID][c] = struct{}{}
	h.mu.Unlock()

	select {
	case h.joins <- userID:
	default:
	}
}

func (h *hub) leave(c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, room := range h.rooms {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, userID)
		}
	}
}

func (h *hub) push(userID string, n aulasdk.Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		return
	}
	msg := envelope{Event: eventNotification, Data: data}

	h.mu.Lock()
	conns := make([]*wsConn, 0, len(h.rooms[userID]))
	for c := range h.rooms[userID] {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if err := c.send(msg); err != nil {
			h.leave(c)
			_ = c.conn.Close()
		}
	}
}

// handleWebsocket upgrades an authenticated request. A connection only
// receives pushes after it joins its own user id.
func (b *Backend) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())
	subject := httpx.UserIDFromContext(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &wsConn{conn: conn}
	defer func() {
		b.hub.leave(c)
		_ = conn.Close()
	}()

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		if env.Event != eventJoin {
			continue
		}

		var userID string
		if err := json.Unmarshal(env.Data, &userID); err != nil || userID != subject {
			log.Warn("rejected realtime join", "subject", subject, "requested", userID)
			continue
		}
		b.hub.join(userID, c)
		log.Debug("realtime join", "user_id", userID)
	}
}
