// -----------------------------------------------------------------------
// Last Modified: Thursday, 15th October 2026 8:12:40 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/benchdash/internal/common"
	"github.com/ternarybob/benchdash/internal/interfaces"
	"golang.org/x/time/rate"
)

// WSMessage is the envelope of every message pushed to clients
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// StatusUpdate is sent to each client when it connects
type StatusUpdate struct {
	Service          string `json:"service"`
	Version          string `json:"version"`
	ServerInstanceID string `json:"server_instance_id"`
}

// WebSocketHandler pushes service events to connected dashboards
type WebSocketHandler struct {
	logger           arbor.ILogger
	upgrader         websocket.Upgrader
	subscribeOnce    sync.Once
	clients          map[*websocket.Conn]bool
	clientMutex      map[*websocket.Conn]*sync.Mutex
	mu               sync.RWMutex
	eventService     interfaces.EventService
	allowedEvents    map[string]bool // Whitelist of events to broadcast (empty = allow all)
	throttleInterval time.Duration
	throttleMu       sync.Mutex
	throttlers       map[interfaces.EventType]*rate.Limiter // Per event type; nil map = no throttling
	serverInstanceID string                                 // Unique ID generated on startup - clients use to detect server restart
}

// NewWebSocketHandler creates the handler and, when an event service is given, subscribes it.
// In production only same-origin upgrades are accepted.
func NewWebSocketHandler(eventService interfaces.EventService, logger arbor.ILogger, config *common.Config) *WebSocketHandler {
	h := &WebSocketHandler{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for local development
			},
		},
		clients:          make(map[*websocket.Conn]bool),
		clientMutex:      make(map[*websocket.Conn]*sync.Mutex),
		eventService:     eventService,
		allowedEvents:    make(map[string]bool),
		serverInstanceID: common.NewInstanceID(),
	}

	logger.Info().Str("server_instance_id", h.serverInstanceID).Msg("WebSocket handler initialized with server instance ID")

	if config != nil {
		for _, eventType := range config.WebSocket.AllowedEvents {
			h.allowedEvents[eventType] = true
		}

		if interval := config.ThrottleInterval(); interval > 0 {
			h.throttleInterval = interval
			h.throttlers = make(map[interfaces.EventType]*rate.Limiter)
		} else if config.WebSocket.ThrottleInterval != "" {
			logger.Warn().
				Str("interval", config.WebSocket.ThrottleInterval).
				Msg("Invalid websocket throttle interval - throttling disabled")
		}

		if config.IsProduction() {
			h.upgrader.CheckOrigin = SameOrigin
		}
	}

	if eventService != nil {
		h.SubscribeToEvents()
	}

	return h
}

// HandleWebSocket upgrades the connection and keeps it registered until the client leaves
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Int("clients", clientCount).Msg("WebSocket client connected")

	h.sendStatus(conn)

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		clientCount := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Int("clients", clientCount).Msg("WebSocket client disconnected")
	}()

	// Read until the client goes away; incoming messages are ignored
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			break
		}
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscribeToEvents forwards every service event to connected clients. Repeat calls are no-ops.
func (h *WebSocketHandler) SubscribeToEvents() {
	if h.eventService == nil {
		return
	}
	h.subscribeOnce.Do(func() {
		for _, eventType := range interfaces.AllEventTypes {
			if err := h.eventService.Subscribe(eventType, h.handleEvent); err != nil {
				h.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to subscribe websocket to event")
			}
		}
	})
}

func (h *WebSocketHandler) handleEvent(ctx context.Context, event interfaces.Event) error {
	if len(h.allowedEvents) > 0 && !h.allowedEvents[string(event.Type)] {
		return nil
	}
	if !h.allow(event.Type) {
		return nil
	}

	h.Broadcast(WSMessage{
		Type:    string(event.Type),
		Payload: event.Payload,
	})
	return nil
}

// allow applies the per-event-type throttle
func (h *WebSocketHandler) allow(eventType interfaces.EventType) bool {
	if h.throttlers == nil {
		return true
	}

	h.throttleMu.Lock()
	limiter, ok := h.throttlers[eventType]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(h.throttleInterval), 1)
		h.throttlers[eventType] = limiter
	}
	h.throttleMu.Unlock()

	return limiter.Allow()
}

// Broadcast sends a message to all connected clients
func (h *WebSocketHandler) Broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal websocket message")
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
		mutexes = append(mutexes, h.clientMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range clients {
		mutex := mutexes[i]
		mutex.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Str("type", msg.Type).Msg("Failed to send websocket message to client")
		}
	}
}

// sendStatus sends the current status to a specific client
func (h *WebSocketHandler) sendStatus(conn *websocket.Conn) {
	data, err := json.Marshal(WSMessage{
		Type: "status",
		Payload: StatusUpdate{
			Service:          "ONLINE",
			Version:          common.GetVersion(),
			ServerInstanceID: h.serverInstanceID,
		},
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal initial status")
		return
	}

	h.mu.RLock()
	mutex := h.clientMutex[conn]
	h.mu.RUnlock()

	if mutex != nil {
		mutex.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Msg("Failed to send initial status")
		}
	}
}
