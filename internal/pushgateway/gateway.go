// Package pushgateway implements C4: long-lived per-session WebSocket
// subscriptions fed by the C1 update/push channel families.
package pushgateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/logging"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/session"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/store"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Store is the subset of C1 the gateway depends on.
type Store interface {
	Get(ctx context.Context, sessionID string) (*session.Session, error)
	SubscribeUpdates(ctx context.Context, callback func(store.UpdateNotice)) error
	SubscribePush(ctx context.Context, callback func(sessionID string, payload []byte)) error
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Gateway is C4.
type Gateway struct {
	store             Store
	logger            *logging.Logger
	heartbeatInterval time.Duration

	mu        sync.RWMutex
	observers map[string]map[*connection]struct{}
}

// New builds a Gateway. heartbeatInterval is spec.md §9's
// heartbeat_interval_ms (default 5000ms).
func New(st Store, logger *logging.Logger, heartbeatInterval time.Duration) *Gateway {
	return &Gateway{
		store:             st,
		logger:            logger,
		heartbeatInterval: heartbeatInterval,
		observers:         make(map[string]map[*connection]struct{}),
	}
}

// Run subscribes to the update and push channel families in background
// goroutines and returns immediately; those goroutines dispatch to
// locally-registered observers until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) {
	go func() {
		if err := g.store.SubscribeUpdates(ctx, g.onUpdateNotice); err != nil {
			g.logger.WithError(err).Error("pushgateway: update subscription ended")
		}
	}()
	go func() {
		if err := g.store.SubscribePush(ctx, g.onPushPayload); err != nil {
			g.logger.WithError(err).Error("pushgateway: push subscription ended")
		}
	}()
}

func (g *Gateway) onUpdateNotice(notice store.UpdateNotice) {
	var msg Message
	switch notice.Kind {
	case store.NoticeUpdated:
		msg = Message{Type: TypeStateUpdate, SessionID: notice.SessionID, Timestamp: nowMs(), State: notice.State}
	case store.NoticeDeleted:
		msg = Message{Type: TypeSessionDeleted, SessionID: notice.SessionID, Timestamp: nowMs()}
	default:
		return
	}
	g.broadcast(notice.SessionID, msg)
}

func (g *Gateway) onPushPayload(sessionID string, payload []byte) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return
	}
	g.broadcast(sessionID, msg)
}

func (g *Gateway) broadcast(sessionID string, msg Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}

	g.mu.RLock()
	conns := g.observers[sessionID]
	targets := make([]*connection, 0, len(conns))
	for c := range conns {
		targets = append(targets, c)
	}
	g.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(raw)
	}
}

func (g *Gateway) register(sessionID string, c *connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.observers[sessionID] == nil {
		g.observers[sessionID] = make(map[*connection]struct{})
	}
	g.observers[sessionID][c] = struct{}{}
}

func (g *Gateway) unregister(sessionID string, c *connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if set, ok := g.observers[sessionID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(g.observers, sessionID)
		}
	}
}

// ObserverCount reports the number of locally-connected observers, for
// the metrics surface.
func (g *Gateway) ObserverCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	total := 0
	for _, set := range g.observers {
		total += len(set)
	}
	return total
}

// HandleWS upgrades the connection, validates the sessionId query
// parameter, and begins the read/write pumps.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if _, err := uuid.Parse(sessionID); err != nil {
		http.Error(w, "sessionId must be a UUID", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.WithError(err).Warn("pushgateway: upgrade failed")
		return
	}

	c := newConnection(conn, sessionID, g.heartbeatInterval)
	g.register(sessionID, c)

	c.enqueue(mustMarshal(Message{Type: TypeConnected, SessionID: sessionID, Timestamp: nowMs()}))

	go c.writePump()
	g.readPump(c)
}

func (g *Gateway) readPump(c *connection) {
	defer func() {
		g.unregister(c.sessionID, c)
		c.close()
	}()

	c.conn.SetReadLimit(4096)
	c.resetReadDeadline()
	c.conn.SetPongHandler(func(string) error {
		c.resetReadDeadline()
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var in Message
		if err := json.Unmarshal(raw, &in); err != nil {
			c.enqueue(mustMarshal(Message{Type: TypeError, SessionID: c.sessionID, Timestamp: nowMs(), Code: "BAD_MESSAGE", Message: "could not parse message"}))
			continue
		}

		switch in.Type {
		case TypePing:
			c.enqueue(mustMarshal(Message{Type: TypePong, SessionID: c.sessionID, Timestamp: nowMs()}))
		case TypeReconnect:
			g.resync(c)
		}
	}
}

// resync fetches current state via C1 and pushes a STATE_SYNC, per
// spec.md §4.4's reconnection contract.
func (g *Gateway) resync(c *connection) {
	st, err := g.store.Get(context.Background(), c.sessionID)
	if err != nil {
		c.enqueue(mustMarshal(Message{Type: TypeError, SessionID: c.sessionID, Timestamp: nowMs(), Code: "RESYNC_FAILED", Message: err.Error()}))
		return
	}
	if st == nil {
		c.enqueue(mustMarshal(Message{Type: TypeSessionDeleted, SessionID: c.sessionID, Timestamp: nowMs()}))
		return
	}
	c.enqueue(mustMarshal(Message{Type: TypeStateSync, SessionID: c.sessionID, Timestamp: nowMs(), State: st}))
}

func nowMs() int64 { return time.Now().UTC().UnixMilli() }

func mustMarshal(m Message) []byte {
	raw, _ := json.Marshal(m)
	return raw
}
