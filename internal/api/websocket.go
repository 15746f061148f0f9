package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/envmonitor/internal/broadcast"
	"github.com/nerrad567/envmonitor/internal/reading"
)

// WebSocket constants.
const (
	WSTypePing  = "ping"
	WSTypePong  = "pong"
	WSTypeEvent = "event"
	WSTypeError = "error"

	// EventReadingCreated is sent for every reading persisted after the client connected.
	EventReadingCreated = "reading.created"

	defaultWSPath           = "/ws"
	defaultWSMaxMessageSize = 4096
	defaultWSPingInterval   = 30 // seconds
	defaultWSPongTimeout    = 10 // seconds

	// wsControlBufferSize bounds replies queued by the read side.
	wsControlBufferSize = 16
)

// WSMessage represents a message sent to/from a WebSocket client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// wsClient is one upgraded connection bound to a hub subscription.
type wsClient struct {
	server  *Server
	conn    *websocket.Conn
	sub     *broadcast.Subscription
	control chan []byte

	maxMessageSize int64
	pingInterval   time.Duration
	pongWait       time.Duration
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// Non-browser clients (base stations, CLI tools) send no Origin.
			return origin == "" || s.isAllowedOrigin(origin)
		},
	}
}

// handleWebSocket subscribes to the hub and upgrades the connection.
// The subscription is taken before the handshake completes, so every reading
// created after the client sees the upgrade response is delivered.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sub := s.hub.Subscribe()

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		s.hub.Unsubscribe(sub)
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{
		server:         s,
		conn:           conn,
		sub:            sub,
		control:        make(chan []byte, wsControlBufferSize),
		maxMessageSize: int64(orDefault(s.wsCfg.MaxMessageSize, defaultWSMaxMessageSize)),
		pingInterval:   time.Duration(orDefault(s.wsCfg.PingInterval, defaultWSPingInterval)) * time.Second,
		pongWait:       time.Duration(orDefault(s.wsCfg.PongTimeout, defaultWSPongTimeout)) * time.Second,
	}

	s.logger.Debug("websocket client connected", "subscription", c.sub.ID, "clients", s.hub.Count())

	go c.writePump()
	go c.readPump()
}

// readPump reads messages from the WebSocket connection.
// It owns the subscription: on exit the client is unsubscribed, which in
// turn stops writePump.
func (c *wsClient) readPump() {
	logger := c.server.logger
	defer func() {
		c.server.hub.Unsubscribe(c.sub)
		c.conn.Close()
		logger.Debug("websocket client disconnected", "subscription", c.sub.ID, "dropped", c.sub.Dropped())
	}()

	c.conn.SetReadLimit(c.maxMessageSize)
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(c.pingInterval + c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pingInterval + c.pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read error", "error", err)
			} else {
				logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Any client message resets the read deadline.
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(c.pingInterval + c.pongWait))
		c.handleMessage(message)
	}
}

// writePump is the only goroutine that writes to the connection.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case rd, ok := <-c.sub.C:
			if !ok {
				// Unsubscribed or hub closed.
				//nolint:errcheck // Best-effort deadline; close errors are irrelevant
				c.conn.SetWriteDeadline(time.Now().Add(c.pongWait))
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			data, err := encodeEvent(rd)
			if err != nil {
				c.server.logger.Error("failed to marshal websocket event", "error", err)
				continue
			}
			if !c.write(websocket.TextMessage, data) {
				return
			}
		case data := <-c.control:
			if !c.write(websocket.TextMessage, data) {
				return
			}
		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *wsClient) write(messageType int, data []byte) bool {
	//nolint:errcheck // Best-effort deadline; write error caught below
	c.conn.SetWriteDeadline(time.Now().Add(c.pongWait))
	return c.conn.WriteMessage(messageType, data) == nil
}

// handleMessage processes an incoming WebSocket message.
func (c *wsClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypePing:
		c.send(WSMessage{Type: WSTypePong, ID: msg.ID, Timestamp: timestamp(time.Now())})
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// send queues a reply for writePump. A client that floods requests faster
// than it reads replies loses replies rather than stalling the read side.
func (c *wsClient) send(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.control <- data:
	default:
	}
}

// sendError sends an error message to the client.
func (c *wsClient) sendError(id, message string) {
	c.send(WSMessage{
		Type:      WSTypeError,
		ID:        id,
		Timestamp: timestamp(time.Now()),
		Payload:   map[string]string{"message": message},
	})
}

func encodeEvent(rd reading.Reading) ([]byte, error) {
	return json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: EventReadingCreated,
		Timestamp: timestamp(time.Now()),
		Payload:   rd,
	})
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
