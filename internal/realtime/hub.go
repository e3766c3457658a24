package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/askwave/liveqa/internal/models"
)

// AudienceChangeHandler is called when the audience count changes for an
// event (e.g. for peak tracking).
type AudienceChangeHandler func(eventID uuid.UUID, count int)

// Hub maintains event_id -> set of connections and broadcasts live events.
// Uses Redis pub/sub for horizontal scaling: local broadcast + publish to
// Redis so other instances deliver to their own clients.
type Hub struct {
	// eventID -> map[connID]*Conn
	events     map[uuid.UUID]map[string]*Conn
	subs       map[uuid.UUID]func() // cancel Redis subscription per event
	mu         sync.RWMutex
	logger     *zap.Logger
	redisPub   Publisher
	redisSub   Subscriber
	onAudience AudienceChangeHandler
}

// Publisher publishes a live event to other instances.
type Publisher interface {
	PublishEvent(eventID uuid.UUID, payload []byte) error
}

// Subscriber subscribes to an event's channel and invokes handler for
// incoming payloads from other instances.
type Subscriber interface {
	SubscribeEvent(eventID uuid.UUID, handler func(payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	return &Hub{
		events:   make(map[uuid.UUID]map[string]*Conn),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redisPub: pub,
		redisSub: sub,
	}
}

// SetAudienceChangeHandler sets the callback for audience count changes.
func (h *Hub) SetAudienceChangeHandler(fn AudienceChangeHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onAudience = fn
}

// Register adds a connection to an event room. Starts the Redis subscription
// for the event when the first client joins.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	if h.events[c.EventID] == nil {
		h.events[c.EventID] = make(map[string]*Conn)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeEvent(c.EventID, func(payload []byte) {
				h.broadcastLocal(c.EventID, payload)
			})
			if err == nil {
				h.subs[c.EventID] = cancel
			}
		}
	}
	h.events[c.EventID][c.ID] = c
	count := len(h.events[c.EventID])
	onAudience := h.onAudience
	h.mu.Unlock()
	if onAudience != nil {
		onAudience(c.EventID, count)
	}
	h.logger.Debug("client joined event", zap.String("conn_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// Unregister removes a connection from an event room. Cancels the Redis
// subscription when the last client leaves.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	if m, ok := h.events[c.EventID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.events, c.EventID)
			if cancel, ok := h.subs[c.EventID]; ok {
				cancel()
				delete(h.subs, c.EventID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left event", zap.String("conn_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// Broadcast delivers a live event to every client watching the event. With
// Redis configured it publishes only; the subscription callback performs the
// local fan-out once per instance, including this one, so clients never see
// the same event twice from a single broadcast.
func (h *Hub) Broadcast(eventID uuid.UUID, ev models.LiveEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal live event", zap.Error(err))
		return
	}
	if h.redisPub != nil {
		err := h.redisPub.PublishEvent(eventID, payload)
		if err == nil {
			return
		}
		h.logger.Warn("publish live event", zap.Error(err))
	}
	h.broadcastLocal(eventID, payload)
}

func (h *Hub) broadcastLocal(eventID uuid.UUID, payload []byte) {
	h.mu.RLock()
	conns := h.events[eventID]
	ordered := make([]*Conn, 0, len(conns))
	for _, c := range conns {
		ordered = append(ordered, c)
	}
	h.mu.RUnlock()

	for _, c := range ordered {
		select {
		case c.send <- payload:
		default:
			// buffer full, skip
		}
	}
}

// AudienceCount returns the number of connected clients watching an event.
func (h *Hub) AudienceCount(eventID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.events[eventID])
}
