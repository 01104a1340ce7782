package statefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NotrixInc/nx-driver-templates/drivers/benq-projector-go/internal/driversdk"
)

const (
	sendBuffer   = 32
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
	readLimit    = 4096
)

// Store is what the feed reads snapshots from and forwards writes to.
type Store interface {
	Namespace() string
	States() ([]string, map[string]driversdk.State)
	SetState(ctx context.Context, id string, val any, ack bool) error
}

// Event is one message sent to feed clients.
type Event struct {
	Kind   string                      `json:"kind"`
	ID     string                      `json:"id"`
	State  *driversdk.State            `json:"state,omitempty"`
	Object *driversdk.ObjectDescriptor `json:"object,omitempty"`
	Error  string                      `json:"error,omitempty"`
}

// Write is a client request to set a command slot.
type Write struct {
	ID  string `json:"id"`
	Val any    `json:"val"`
}

// Hub streams store changes to websocket clients and accepts command writes
// back. It is registered with the store as a mirror.
type Hub struct {
	store    Store
	log      driversdk.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan Event
}

func NewHub(store Store, log driversdk.Logger) *Hub {
	return &Hub{
		store: store,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: map[*client]struct{}{},
	}
}

func (h *Hub) MirrorObject(ctx context.Context, id string, obj driversdk.ObjectDescriptor) error {
	h.broadcast(Event{Kind: "object", ID: id, Object: &obj})
	return nil
}

func (h *Hub) MirrorState(ctx context.Context, id string, st driversdk.State) error {
	h.broadcast(Event{Kind: "state", ID: id, State: &st})
	return nil
}

// Clients reports the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			// slow reader
			h.log.Warn("state feed client too slow, disconnecting", "remote", c.conn.RemoteAddr().String())
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("state feed upgrade failed", "err", err.Error())
		return
	}
	c := &client{conn: conn, send: make(chan Event, sendBuffer)}

	// The snapshot is queued before the client is registered so that it
	// precedes every live event.
	keys, states := h.store.States()
	for _, id := range keys {
		st := states[id]
		select {
		case c.send <- Event{Kind: "state", ID: id, State: &st}:
		default:
		}
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(c)
	h.readLoop(r.Context(), c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) readLoop(ctx context.Context, c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(readLimit)
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var wr Write
		if err := json.Unmarshal(msg, &wr); err != nil {
			h.reply(c, Event{Kind: "error", Error: "malformed write"})
			continue
		}
		if err := h.apply(ctx, wr); err != nil {
			h.reply(c, Event{Kind: "error", ID: wr.ID, Error: err.Error()})
		}
	}
}

func (h *Hub) reply(c *client, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- ev:
	default:
	}
}

// apply accepts writes to command slots only, as unacknowledged states.
func (h *Hub) apply(ctx context.Context, wr Write) error {
	id := strings.Trim(strings.TrimSpace(wr.ID), ".")
	local := strings.TrimPrefix(id, h.store.Namespace()+".")
	if !strings.HasPrefix(local, "commands.") || local == "commands." {
		return fmt.Errorf("slot %q is not writable", wr.ID)
	}
	return h.store.SetState(ctx, local, wr.Val, false)
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				_ = c.conn.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeTimeout)); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}
