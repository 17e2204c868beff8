// Package ws implements the duplex ConnectionManager (§4.C): per-topic
// session registry, heartbeat liveness, and ordered per-socket writes.
// Grounded on the teacher's internal/graph/websocket.go (upgrader/CheckOrigin
// shape) and original_source/app/enhanced_websocket_manager.py (the
// three-index registry and send/disconnect semantics).
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"forexcopilot/internal/events"
	"forexcopilot/internal/kvstore"
)

const registryKey = "forex:ws:registry"

// GlobalTopic is the reserved topic for broadcasts.
const GlobalTopic = "global"

// Session is one accepted duplex connection plus its metadata (§3).
type Session struct {
	ConnectionID string
	Topic        string
	UserID       string
	ConnectedAt  time.Time

	conn *websocket.Conn

	mu       sync.Mutex // serializes writes to this socket (§5 ordering)
	lastSeen time.Time
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now().UTC()
	s.mu.Unlock()
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) writeJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// RegistryEntry is the diagnostics-facing metadata for one connection.
type RegistryEntry struct {
	ConnectionID string `json:"connection_id"`
	Topic        string `json:"task_id"`
	UserID       string `json:"user_id,omitempty"`
	ConnectedAt  string `json:"connected_at"`
	LastSeen     string `json:"last_seen"`
}

// Config configures heartbeat cadence.
type Config struct {
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
}

// Manager is the ConnectionManager (§4.C). Implements events.Emitter.
type Manager struct {
	cfg    Config
	kv     kvstore.Store
	logger *zap.Logger

	mu        sync.RWMutex
	byTopic   map[string]map[string]*Session // topic -> connectionID -> session
	allByID   map[string]*Session
	registry  map[string]*RegistryEntry
}

// New constructs a Manager.
func New(cfg Config, kv kvstore.Store, logger *zap.Logger) *Manager {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 10 * time.Second
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = 4 * cfg.HeartbeatInterval
	}
	return &Manager{
		cfg:      cfg,
		kv:       kv,
		logger:   logger,
		byTopic:  make(map[string]map[string]*Session),
		allByID:  make(map[string]*Session),
		registry: make(map[string]*RegistryEntry),
	}
}

// Accept completes the handshake bookkeeping for an already-upgraded socket,
// registers it, mirrors to KVStore, sends the welcome frame, and starts the
// per-connection heartbeat loop. Returns the new connection id.
func (m *Manager) Accept(ctx context.Context, conn *websocket.Conn, topic, userID string) string {
	if topic == "" {
		topic = GlobalTopic
	}
	now := time.Now().UTC()
	session := &Session{
		ConnectionID: uuid.NewString(),
		Topic:        topic,
		UserID:       userID,
		ConnectedAt:  now,
		conn:         conn,
		lastSeen:     now,
	}

	m.mu.Lock()
	if m.byTopic[topic] == nil {
		m.byTopic[topic] = make(map[string]*Session)
	}
	m.byTopic[topic][session.ConnectionID] = session
	m.allByID[session.ConnectionID] = session
	entry := &RegistryEntry{
		ConnectionID: session.ConnectionID,
		Topic:        topic,
		UserID:       userID,
		ConnectedAt:  now.Format(time.RFC3339Nano),
		LastSeen:     now.Format(time.RFC3339Nano),
	}
	m.registry[session.ConnectionID] = entry
	m.mu.Unlock()

	if m.kv != nil && m.kv.EnsureConnected(ctx) {
		m.kv.HSet(ctx, registryKey, session.ConnectionID, entry)
	}

	welcome := events.NewFrame(topic, "Connected to live forex updates for task: "+topic, events.TypeSuccess, nil, nil)
	if err := session.writeJSON(welcome); err != nil {
		m.Disconnect(ctx, session, topic, "send_failure")
	} else {
		session.touch()
	}

	go m.heartbeatLoop(ctx, session)

	m.logger.Info("ws: connected", zap.String("topic", topic), zap.String("connection_id", session.ConnectionID))
	return session.ConnectionID
}

// Disconnect removes a session from all indexes. Idempotent.
func (m *Manager) Disconnect(ctx context.Context, session *Session, topic, reason string) {
	if session == nil {
		return
	}
	if topic == "" {
		topic = session.Topic
	}

	m.mu.Lock()
	_, existed := m.allByID[session.ConnectionID]
	if existed {
		delete(m.allByID, session.ConnectionID)
		if set := m.byTopic[topic]; set != nil {
			delete(set, session.ConnectionID)
			if len(set) == 0 {
				delete(m.byTopic, topic)
			}
		}
		delete(m.registry, session.ConnectionID)
	}
	m.mu.Unlock()

	if !existed {
		return
	}

	_ = session.conn.Close()

	if m.kv != nil {
		go func() {
			bgCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if m.kv.EnsureConnected(bgCtx) {
				m.kv.HDel(bgCtx, registryKey, session.ConnectionID)
			}
		}()
	}

	m.logger.Info("ws: disconnected", zap.String("topic", topic), zap.String("connection_id", session.ConnectionID), zap.String("reason", reason))
}

// Touch updates last_seen for a session, mirroring best-effort to KVStore.
func (m *Manager) Touch(ctx context.Context, session *Session) {
	session.touch()
	if m.kv == nil {
		return
	}
	m.mu.RLock()
	entry, ok := m.registry[session.ConnectionID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	entry.LastSeen = session.LastSeen().Format(time.RFC3339Nano)
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if m.kv.EnsureConnected(bgCtx) {
			m.kv.HSet(bgCtx, registryKey, session.ConnectionID, entry)
		}
	}()
}

// Emit implements events.Emitter by sending to a topic (satisfies handlers'
// EventEmitter capability without importing the manager concretely).
func (m *Manager) Emit(topic string, frame events.Frame) {
	m.Send(context.Background(), topic, frame, nil)
}

// Send writes frame to onlySession if given, else to every live session on
// topic (iterating a snapshot copy so concurrent disconnects are tolerated).
func (m *Manager) Send(ctx context.Context, topic string, frame events.Frame, onlySession *Session) {
	if onlySession != nil {
		if err := onlySession.writeJSON(frame); err != nil {
			m.Disconnect(ctx, onlySession, topic, "send_failure")
			return
		}
		m.Touch(ctx, onlySession)
		return
	}

	m.mu.RLock()
	set := m.byTopic[topic]
	sessions := make([]*Session, 0, len(set))
	for _, s := range set {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		if err := s.writeJSON(frame); err != nil {
			m.Disconnect(ctx, s, topic, "send_failure")
			continue
		}
		m.Touch(ctx, s)
	}
}

// Broadcast sends frame to every connected session regardless of topic.
func (m *Manager) Broadcast(ctx context.Context, frame events.Frame) {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.allByID))
	for _, s := range m.allByID {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		if err := s.writeJSON(frame); err != nil {
			m.Disconnect(ctx, s, s.Topic, "broadcast_send_failure")
			continue
		}
		m.Touch(ctx, s)
	}
}

// SessionByID looks up a live session by connection id, used by the HTTP
// layer to route inbound text frames after Accept hands back only the id.
func (m *Manager) SessionByID(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.allByID[id]
	return s, ok
}

// ConnectionCount returns the number of sessions, optionally scoped to topic.
func (m *Manager) ConnectionCount(topic string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if topic == "" {
		return len(m.allByID)
	}
	return len(m.byTopic[topic])
}

// HasAnySessions reports whether any session exists, used by the forex
// streamer to decide whether to poll (§4.F streamer pause policy).
func (m *Manager) HasAnySessions() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.allByID) > 0
}

// RegistrySnapshot returns a deep copy filtered by topic (empty = all),
// preferring the shared KVStore hash when connected so diagnostics are
// coherent cross-instance.
func (m *Manager) RegistrySnapshot(ctx context.Context, topic string) []RegistryEntry {
	if m.kv != nil && m.kv.EnsureConnected(ctx) {
		if raw, ok := m.kv.HGetAll(ctx, registryKey); ok {
			out := make([]RegistryEntry, 0, len(raw))
			for _, v := range raw {
				var entry RegistryEntry
				if err := json.Unmarshal(v, &entry); err != nil {
					continue
				}
				if topic == "" || entry.Topic == topic {
					out = append(out, entry)
				}
			}
			return out
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RegistryEntry, 0, len(m.registry))
	for _, entry := range m.registry {
		if topic == "" || entry.Topic == topic {
			out = append(out, *entry)
		}
	}
	return out
}

// StaleCount returns the number of sessions whose last_seen predates
// staleAfter, used by ops snapshotting (§4.G).
func (m *Manager) StaleCount(staleAfter time.Duration) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now().UTC()
	count := 0
	for _, s := range m.allByID {
		if now.Sub(s.LastSeen()) >= staleAfter {
			count++
		}
	}
	return count
}

func (m *Manager) heartbeatLoop(ctx context.Context, session *Session) {
	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Disconnect(context.Background(), session, session.Topic, "shutdown")
			return
		case <-ticker.C:
			m.mu.RLock()
			_, alive := m.allByID[session.ConnectionID]
			m.mu.RUnlock()
			if !alive {
				return
			}
			if time.Since(session.LastSeen()) > m.cfg.HeartbeatTimeout {
				m.Disconnect(ctx, session, session.Topic, "heartbeat_timeout")
				return
			}
			ping := events.NewFrame(session.Topic, "", events.TypePing, nil, nil)
			if err := session.writeJSON(ping); err != nil {
				m.Disconnect(ctx, session, session.Topic, "send_failure")
				return
			}
		}
	}
}

// HandleTextMessage implements the client "ping"/"pong" heartbeat: the
// server replies "pong" and touches last_seen.
func (m *Manager) HandleTextMessage(ctx context.Context, session *Session, text string) {
	if text == "ping" {
		session.mu.Lock()
		_ = session.conn.WriteMessage(websocket.TextMessage, []byte("pong"))
		session.mu.Unlock()
	}
	m.Touch(ctx, session)
}
