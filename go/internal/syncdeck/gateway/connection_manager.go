package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/activebits/go/internal/syncdeck/protocol"
	"github.com/mcdev12/activebits/go/internal/syncdeck/store"
	"github.com/rs/zerolog/log"
)

// ConnRole is the role a WebSocket client joins a session with.
type ConnRole string

const (
	RoleManager ConnRole = "manager"
	RoleStudent ConnRole = "student"
)

var (
	// ErrNoManager is returned when a control request targets a session
	// without a connected manager.
	ErrNoManager = errors.New("no manager connected")
	// ErrManagerConnected rejects a second manager for the same session.
	ErrManagerConnected = errors.New("session already has a manager")

	errConnectionClosed = errors.New("connection closed")
)

// ConnectionManager manages WebSocket connections for syncdeck sessions
type ConnectionManager struct {
	sessions map[string]*sessionPool
	mu       sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	clock    clockwork.Clock
	builder  *protocol.CommandBuilder
	store    store.SessionStore
	relay    Relay

	broadcastCh chan RelayMessage
}

type sessionPool struct {
	manager  *Connection
	students map[*Connection]bool
}

func (p *sessionPool) empty() bool {
	return p.manager == nil && len(p.students) == 0
}

// Connection is one WebSocket client. Everything touching its session state
// runs on its dispatch goroutine, fed through inbox.
type Connection struct {
	ID          string
	SessionID   string
	Role        ConnRole
	Conn        *websocket.Conn
	Send        chan []byte
	Manager     *ConnectionManager
	ConnectedAt time.Time

	handler   connectionHandler
	inbox     chan func()
	closed    chan struct{}
	closeOnce sync.Once
}

// connectionHandler is the per-role behaviour of a connection. All methods
// run on the connection's dispatch goroutine.
type connectionHandler interface {
	onOpen()
	onFrame(raw []byte)
	onRelay(msg RelayMessage)
	onClose()
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, clock clockwork.Clock, builder *protocol.CommandBuilder, sessionStore store.SessionStore) *ConnectionManager {
	return &ConnectionManager{
		sessions: make(map[string]*sessionPool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		clock:       clock,
		builder:     builder,
		store:       sessionStore,
		broadcastCh: make(chan RelayMessage, 1000),
	}
}

// Start begins processing broadcast messages
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case msg := <-cm.broadcastCh:
			cm.handleBroadcast(msg)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and starts its
// pumps. On upgrade failure the upgrader has already replied to the client.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, sessionID string, role ConnRole) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		Role:        role,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: cm.clock.Now(),
		inbox:       make(chan func(), cm.config.InboxSize),
		closed:      make(chan struct{}),
	}
	if role == RoleManager {
		connection.handler = newHostHandler(connection)
	} else {
		connection.handler = newStudentHandler(connection)
	}

	if err := cm.registerConnection(connection); err != nil {
		log.Warn().
			Err(err).
			Str("session_id", sessionID).
			Msg("rejecting WebSocket connection")
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(cm.config.WriteTimeout))
		conn.Close()
		return nil
	}

	go connection.writePump()
	go connection.dispatchPump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("session_id", sessionID).
		Str("role", string(role)).
		Msg("WebSocket connection established")

	return nil
}

// registerConnection adds a connection to the manager
func (cm *ConnectionManager) registerConnection(conn *Connection) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	pool := cm.sessions[conn.SessionID]
	if pool == nil {
		pool = &sessionPool{students: make(map[*Connection]bool)}
		cm.sessions[conn.SessionID] = pool
	}

	switch conn.Role {
	case RoleManager:
		if pool.manager != nil {
			return ErrManagerConnected
		}
		pool.manager = conn
	default:
		pool.students[conn] = true
	}

	log.Debug().
		Str("connection_id", conn.ID).
		Str("session_id", conn.SessionID).
		Int("students", len(pool.students)).
		Msg("connection registered")
	return nil
}

// unregisterConnection removes a connection from the manager and stops its
// pumps. It is safe to call more than once.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	conn.closeOnce.Do(func() { close(conn.closed) })

	cm.mu.Lock()
	defer cm.mu.Unlock()

	pool, exists := cm.sessions[conn.SessionID]
	if !exists {
		return
	}

	removed := false
	if pool.manager == conn {
		pool.manager = nil
		removed = true
	}
	if pool.students[conn] {
		delete(pool.students, conn)
		removed = true
	}
	if pool.empty() {
		delete(cm.sessions, conn.SessionID)
	}

	if removed {
		log.Info().
			Str("connection_id", conn.ID).
			Str("session_id", conn.SessionID).
			Str("role", string(conn.Role)).
			Msg("connection unregistered")
	}
}

// BroadcastToSession queues msg for every student of its session
func (cm *ConnectionManager) BroadcastToSession(msg RelayMessage) {
	select {
	case cm.broadcastCh <- msg:
	default:
		log.Warn().Str("session_id", msg.SessionID).Uint64("seq", msg.Seq).Msg("broadcast channel full, dropping message")
	}
}

// handleBroadcast processes a broadcast message
func (cm *ConnectionManager) handleBroadcast(msg RelayMessage) {
	cm.mu.RLock()
	pool, exists := cm.sessions[msg.SessionID]
	if !exists {
		cm.mu.RUnlock()
		return
	}
	targets := make([]*Connection, 0, len(pool.students))
	for conn := range pool.students {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		c := conn
		c.enqueue(func() { c.handler.onRelay(msg) })
	}

	log.Debug().
		Str("session_id", msg.SessionID).
		Str("action", string(msg.Envelope.Action)).
		Uint64("seq", msg.Seq).
		Int("connections", len(targets)).
		Msg("envelope broadcasted")
}

func (cm *ConnectionManager) managerFor(sessionID string) *Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if pool, ok := cm.sessions[sessionID]; ok {
		return pool.manager
	}
	return nil
}

// HasManager reports whether a manager is connected for sessionID.
func (cm *ConnectionManager) HasManager(sessionID string) bool {
	return cm.managerFor(sessionID) != nil
}

// StudentCount returns the number of students connected to sessionID.
func (cm *ConnectionManager) StudentCount(sessionID string) int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if pool, ok := cm.sessions[sessionID]; ok {
		return len(pool.students)
	}
	return 0
}

// WithManager runs fn on the dispatch goroutine of the session's manager
// connection and waits for it to finish.
func (cm *ConnectionManager) WithManager(ctx context.Context, sessionID string, fn func(h *hostHandler)) error {
	conn := cm.managerFor(sessionID)
	if conn == nil {
		return ErrNoManager
	}
	h := conn.handler.(*hostHandler)

	err := conn.do(ctx, func() { fn(h) })
	if errors.Is(err, errConnectionClosed) {
		return ErrNoManager
	}
	return err
}

// ConnectionStats summarizes active connections
type ConnectionStats struct {
	TotalConnections   int            `json:"total_connections"`
	ActiveSessions     int            `json:"active_sessions"`
	Managers           int            `json:"managers"`
	Students           int            `json:"students"`
	SessionConnections map[string]int `json:"session_connections"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		ActiveSessions:     len(cm.sessions),
		SessionConnections: make(map[string]int, len(cm.sessions)),
	}
	for sessionID, pool := range cm.sessions {
		count := len(pool.students)
		stats.Students += count
		if pool.manager != nil {
			stats.Managers++
			count++
		}
		stats.TotalConnections += count
		stats.SessionConnections[sessionID] = count
	}
	return stats
}

// close drops the connection. Its pumps exit on their own.
func (c *Connection) close() {
	c.Manager.unregisterConnection(c)
	c.Conn.Close()
}

// enqueue hands fn to the dispatch goroutine without blocking. A connection
// that cannot keep up is closed.
func (c *Connection) enqueue(fn func()) {
	select {
	case <-c.closed:
		return
	default:
	}

	select {
	case c.inbox <- fn:
	default:
		log.Warn().
			Str("connection_id", c.ID).
			Str("session_id", c.SessionID).
			Msg("connection inbox full, closing connection")
		c.close()
	}
}

// do runs fn on the dispatch goroutine and waits for it.
func (c *Connection) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case c.inbox <- func() { fn(); close(done) }:
	case <-c.closed:
		return errConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-c.closed:
		return errConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sendEnvelope queues env for the client. Only the dispatch goroutine calls it.
func (c *Connection) sendEnvelope(env protocol.Envelope) {
	data, err := protocol.Encode(env)
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to encode envelope")
		return
	}

	select {
	case c.Send <- data:
	case <-c.closed:
	default:
		log.Warn().
			Str("connection_id", c.ID).
			Str("session_id", c.SessionID).
			Msg("connection send buffer full, closing connection")
		c.close()
	}
}

func (c *Connection) dispatchPump() {
	c.handler.onOpen()
	for {
		select {
		case fn := <-c.inbox:
			fn()
		case <-c.closed:
			c.handler.onClose()
			return
		}
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := c.Manager.clock.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.Chan():
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}

		case <-c.closed:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			return
		}

		select {
		case c.inbox <- func() { c.handler.onFrame(message) }:
		case <-c.closed:
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
