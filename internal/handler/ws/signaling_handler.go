package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"telecare-backend/internal/database"
	"telecare-backend/internal/domain"
	"telecare-backend/pkg/constants"
	"telecare-backend/pkg/logger"
	"telecare-backend/pkg/metrics"
)

// SignalingHub is the push transport: clients hold a websocket open, join a
// room, and every signal they send is forwarded to the other occupants
// immediately. The sender never receives its own signal back.
type SignalingHub struct {
	// Room occupants, keyed by room id
	rooms map[string]map[*SignalingClient]bool

	// Cancel functions for per-room Redis subscriptions
	subscriptionCancels map[string]context.CancelFunc

	// Optional cross-instance fanout; nil keeps the hub single-instance
	redisClient *database.RedisClient

	// instanceID guards against re-delivering our own fanout messages
	instanceID string

	metrics *metrics.Metrics

	mu sync.RWMutex

	register   chan *SignalingClient
	unregister chan *SignalingClient
	joins      chan joinRequest
	broadcast  chan *hubMessage

	// Concurrency limit on simultaneous websocket connections
	maxConnections int
	semaphore      chan struct{}
}

// SignalingClient represents one websocket signaling connection. roomID is
// empty until the client sends a join-room message.
type SignalingClient struct {
	hub    *SignalingHub
	conn   *websocket.Conn
	send   chan []byte
	userID string
	role   string

	mu     sync.Mutex
	roomID string

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// closeSend tears down the client's outbound channel exactly once; the
// unregister path and the slow-peer drop path can both race here
func (c *SignalingClient) closeSend() {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
	})
}

type joinRequest struct {
	client *SignalingClient
	roomID string
	role   string
}

// hubMessage carries a signal through the hub; remote marks messages that
// arrived over Redis fanout and must not be re-published
type hubMessage struct {
	signal *domain.Signal
	sender *SignalingClient
	remote bool
}

// fanoutEnvelope wraps a signal for Redis pub/sub with its origin instance
type fanoutEnvelope struct {
	Origin string         `json:"origin"`
	Signal *domain.Signal `json:"signal"`
}

// GetAllowedOrigins returns allowed WebSocket origins from environment or defaults
func GetAllowedOrigins() map[string]bool {
	allowedOrigins := map[string]bool{
		"http://localhost:3000": true,
		"http://localhost:8080": true,
		"http://127.0.0.1:3000": true,
		"http://127.0.0.1:8080": true,
	}

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			allowedOrigins[strings.TrimSpace(origin)] = true
		}
	}

	return allowedOrigins
}

var signalingUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// non-browser clients (test harnesses, native apps) send no Origin
			return true
		}

		allowedOrigins := GetAllowedOrigins()
		for allowed := range allowedOrigins {
			if origin == allowed {
				return true
			}
		}
		return false
	},
}

// NewSignalingHub creates a signaling hub. redisClient may be nil to disable
// cross-instance fanout; m may be nil.
func NewSignalingHub(redisClient *database.RedisClient, instanceID string, m *metrics.Metrics) *SignalingHub {
	maxConns := 1000
	if val := os.Getenv("WS_MAX_SIGNALING_CONNECTIONS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			maxConns = n
		}
	}

	hub := &SignalingHub{
		rooms:               make(map[string]map[*SignalingClient]bool),
		subscriptionCancels: make(map[string]context.CancelFunc),
		redisClient:         redisClient,
		instanceID:          instanceID,
		metrics:             m,
		register:            make(chan *SignalingClient),
		unregister:          make(chan *SignalingClient),
		joins:               make(chan joinRequest),
		broadcast:           make(chan *hubMessage, 256),
		maxConnections:      maxConns,
		semaphore:           make(chan struct{}, maxConns),
	}

	go hub.run()

	return hub
}

// run handles hub operations
func (h *SignalingHub) run() {
	for {
		select {
		case <-h.register:
			if h.metrics != nil {
				h.metrics.IncrementWebsocketConnections()
			}

		case client := <-h.unregister:
			h.removeFromRoom(client, true)
			if h.metrics != nil {
				h.metrics.DecrementWebsocketConnections()
			}

		case req := <-h.joins:
			h.joinRoom(req)

		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

// joinRoom places the client in a room. A second join from the same client
// moves it: the previous membership is dropped first, so a client occupies
// at most one room.
func (h *SignalingHub) joinRoom(req joinRequest) {
	h.removeFromRoom(req.client, false)

	h.mu.Lock()
	if h.rooms[req.roomID] == nil {
		h.rooms[req.roomID] = make(map[*SignalingClient]bool)

		if h.redisClient != nil {
			ctx, cancel := context.WithCancel(context.Background())
			h.subscriptionCancels[req.roomID] = cancel
			go h.subscribeToRoom(ctx, req.roomID)
		}
	}
	h.rooms[req.roomID][req.client] = true
	h.mu.Unlock()

	req.client.mu.Lock()
	req.client.roomID = req.roomID
	req.client.role = req.role
	req.client.mu.Unlock()

	logger.Info("Client joined signaling room",
		zap.String("room_id", req.roomID),
		zap.String("user_id", req.client.userID),
		zap.String("role", req.role))

	// Tell the other occupants someone arrived
	h.deliver(&hubMessage{
		signal: &domain.Signal{
			Kind:      domain.SignalJoinRoom,
			RoomID:    req.roomID,
			SenderID:  req.client.userID,
			Role:      req.role,
			Timestamp: time.Now(),
		},
		sender: req.client,
	})
}

// removeFromRoom drops the client's room membership; closeSend also tears
// down its send channel (connection is going away)
func (h *SignalingHub) removeFromRoom(client *SignalingClient, closeSend bool) {
	client.mu.Lock()
	roomID := client.roomID
	client.roomID = ""
	client.mu.Unlock()

	h.mu.Lock()
	if clients, ok := h.rooms[roomID]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)

			if len(clients) == 0 {
				if cancel, ok := h.subscriptionCancels[roomID]; ok {
					cancel()
					delete(h.subscriptionCancels, roomID)
				}
				delete(h.rooms, roomID)
			}
		}
	}
	h.mu.Unlock()

	if closeSend {
		client.closeSend()
	}

	if roomID != "" {
		h.deliver(&hubMessage{
			signal: &domain.Signal{
				Kind:      domain.SignalLeave,
				RoomID:    roomID,
				SenderID:  client.userID,
				Timestamp: time.Now(),
			},
			sender: client,
		})
	}
}

// deliver forwards a signal to every room occupant except the sender. A
// slow or dead peer is disconnected rather than allowed to stall the room.
func (h *SignalingHub) deliver(message *hubMessage) {
	signal := message.signal

	h.mu.RLock()
	clients, ok := h.rooms[signal.RoomID]
	if !ok {
		h.mu.RUnlock()
		return
	}

	payload, err := json.Marshal(signal)
	if err != nil {
		h.mu.RUnlock()
		logger.Error("Failed to marshal signal", zap.Error(err))
		return
	}

	var dropped []*SignalingClient
	for client := range clients {
		if client == message.sender || client.userID == signal.SenderID {
			continue
		}
		if signal.TargetID != "" && client.userID != signal.TargetID {
			continue
		}
		select {
		case client.send <- payload:
		default:
			dropped = append(dropped, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range dropped {
		if h.metrics != nil {
			h.metrics.RecordWebsocketError("send_buffer_full")
		}
		h.removeFromRoom(client, true)
	}

	if h.metrics != nil {
		h.metrics.RecordSignal(string(signal.Kind), "websocket")
	}

	// Replicate locally-originated signals to the other instances
	if !message.remote && h.redisClient != nil {
		h.publishToRoom(signal)
	}
}

// publishToRoom pushes a signal onto the room's fanout channel
func (h *SignalingHub) publishToRoom(signal *domain.Signal) {
	envelope := fanoutEnvelope{Origin: h.instanceID, Signal: signal}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := h.redisClient.SafePublish(ctx, "signaling:"+signal.RoomID, payload).Err(); err != nil {
		logger.Warn("Signal fanout publish failed",
			zap.String("room_id", signal.RoomID),
			zap.Error(err))
	}
}

// subscribeToRoom receives fanout signals for a room while it is occupied
// on this instance
func (h *SignalingHub) subscribeToRoom(ctx context.Context, roomID string) {
	pubsub := h.redisClient.SafeSubscribe(ctx, "signaling:"+roomID)
	if pubsub == nil {
		// degraded Redis: hub keeps working single-instance
		return
	}
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			if msg == nil {
				continue
			}
			var envelope fanoutEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				logger.Warn("Malformed fanout message",
					zap.String("room_id", roomID),
					zap.Error(err))
				continue
			}
			if envelope.Origin == h.instanceID || envelope.Signal == nil {
				continue
			}
			h.broadcast <- &hubMessage{signal: envelope.Signal, remote: true}
		}
	}
}

// ServeWS upgrades the request and runs the client's pumps. The caller joins
// a room by sending a join-room message once connected.
func (h *SignalingHub) ServeWS(c *gin.Context) {
	select {
	case h.semaphore <- struct{}{}:
	default:
		logger.Warn("WebSocket connection rejected: max connections reached",
			zap.Int("max_connections", h.maxConnections))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Server at capacity, please try again later"})
		return
	}

	userIDVal, exists := c.Get("user_id")
	if !exists {
		<-h.semaphore
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	userID, ok := userIDVal.(string)
	if !ok || userID == "" {
		<-h.semaphore
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid user_id"})
		return
	}

	conn, err := signalingUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		<-h.semaphore
		logger.Warn("WebSocket upgrade failed",
			zap.String("user_id", userID),
			zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &SignalingClient{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 256),
		userID: userID,
		ctx:    ctx,
		cancel: cancel,
	}

	h.register <- client

	go client.writePump()
	go func() {
		client.readPump()
		<-h.semaphore
	}()
}

// readPump reads signals from the websocket and routes them through the hub
func (c *SignalingClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPingInterval))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPingInterval))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debug("WebSocket connection closed",
					zap.String("user_id", c.userID),
					zap.Error(err))
			}
			break
		}

		var signal domain.Signal
		if err := json.Unmarshal(message, &signal); err != nil {
			logger.Warn("Invalid signaling message",
				zap.String("user_id", c.userID),
				zap.Error(err))
			if c.hub.metrics != nil {
				c.hub.metrics.RecordWebsocketError("malformed_message")
			}
			continue
		}
		if !signal.Kind.Valid() {
			logger.Warn("Unknown signal kind",
				zap.String("user_id", c.userID),
				zap.String("kind", string(signal.Kind)))
			if c.hub.metrics != nil {
				c.hub.metrics.RecordWebsocketError("unknown_kind")
			}
			continue
		}

		// sender identity comes from auth, never from the payload
		signal.SenderID = c.userID
		signal.Timestamp = time.Now()

		if c.hub.metrics != nil {
			c.hub.metrics.RecordWebsocketMessage(string(signal.Kind))
		}

		switch signal.Kind {
		case domain.SignalJoinRoom:
			if signal.RoomID == "" {
				continue
			}
			c.hub.joins <- joinRequest{client: c, roomID: signal.RoomID, role: signal.Role}

		case domain.SignalLeave:
			c.hub.removeFromRoom(c, false)

		default:
			c.mu.Lock()
			signal.RoomID = c.roomID
			c.mu.Unlock()
			if signal.RoomID == "" {
				// signals before join-room have nowhere to go
				continue
			}
			c.hub.broadcast <- &hubMessage{signal: &signal, sender: c}
		}
	}
}

// writePump writes messages to the websocket and keeps the connection alive.
// Pings go out before the read deadline on the other side can expire.
func (c *SignalingClient) writePump() {
	ticker := time.NewTicker(constants.WebSocketPingInterval * 9 / 10)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
