package events

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is the envelope for all outbound websocket frames.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WebSocketHandler streams page lifecycle events to connected clients.
// Status-change events can be throttled so a burst of scrapes does not
// flood slow clients.
type WebSocketHandler struct {
	logger           arbor.ILogger
	clients          map[*websocket.Conn]bool
	clientMutex      map[*websocket.Conn]*sync.Mutex
	mu               sync.RWMutex
	eventService     interfaces.EventService
	statusThrottler  *rate.Limiter
	serverInstanceID string // Unique ID generated on startup - clients use to detect server restart
}

func NewWebSocketHandler(eventService interfaces.EventService, logger arbor.ILogger, config *common.EventsConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		clients:          make(map[*websocket.Conn]bool),
		clientMutex:      make(map[*websocket.Conn]*sync.Mutex),
		eventService:     eventService,
		serverInstanceID: uuid.New().String(),
	}

	logger.Info().Str("server_instance_id", h.serverInstanceID).Msg("WebSocket handler initialized with server instance ID")

	// Nil throttler = no throttling (disabled)
	if config != nil && config.ThrottleInterval > 0 {
		h.statusThrottler = rate.NewLimiter(rate.Every(config.ThrottleInterval), 1)
		logger.Debug().
			Str("interval", config.ThrottleInterval.String()).
			Msg("Throttler initialized for page status events")
	}

	if eventService != nil {
		h.subscribeToPageEvents()
	}

	return h
}

// subscribeToPageEvents wires the handler into the event bus.
func (h *WebSocketHandler) subscribeToPageEvents() {
	subscribe := func(eventType interfaces.EventType, messageType string, throttled bool) {
		err := h.eventService.Subscribe(eventType, func(ctx context.Context, event interfaces.Event) error {
			if throttled && h.statusThrottler != nil && !h.statusThrottler.Allow() {
				return nil
			}
			h.broadcast(messageType, event.Payload)
			return nil
		})
		if err != nil {
			h.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("Failed to subscribe websocket handler")
		}
	}

	subscribe(interfaces.EventPageCreated, "page_created", false)
	subscribe(interfaces.EventPageStatusChanged, "page_status", true)
	subscribe(interfaces.EventPageDeleted, "page_deleted", false)
}

// HandleWebSocket handles WebSocket connections
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Msgf("WebSocket client connected (total: %d)", clientCount)

	h.sendHello(conn)

	// Handle client disconnection
	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		remaining := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Msgf("WebSocket client disconnected (remaining: %d)", remaining)
	}()

	// Read messages from client (keep connection alive)
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			break
		}
	}
}

// sendHello sends the server instance ID so reconnecting clients can
// detect a restart and reset their local state.
func (h *WebSocketHandler) sendHello(conn *websocket.Conn) {
	msg := WSMessage{
		Type: "hello",
		Payload: map[string]string{
			"server_instance_id": h.serverInstanceID,
		},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal hello message")
		return
	}

	h.mu.RLock()
	mutex := h.clientMutex[conn]
	h.mu.RUnlock()

	if mutex != nil {
		mutex.Lock()
		conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()
	}
}

// BroadcastPageEvent sends a page event to all connected clients.
func (h *WebSocketHandler) BroadcastPageEvent(messageType string, event models.PageEvent) {
	h.broadcast(messageType, event)
}

func (h *WebSocketHandler) broadcast(messageType string, payload interface{}) {
	msg := WSMessage{
		Type:    messageType,
		Payload: payload,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("message_type", messageType).Msg("Failed to marshal websocket message")
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
			h.logger.Warn().Err(err).Msg("Failed to send message to client")
		}
	}
}

// ClientCount returns the number of connected websocket clients.
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects all clients.
func (h *WebSocketHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]bool)
	h.clientMutex = make(map[*websocket.Conn]*sync.Mutex)
}
