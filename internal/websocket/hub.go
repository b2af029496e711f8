package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/irthomasthomas/Observer-sub001/internal/recorder"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio frames
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Deployments front this with their own origin policy.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ServiceFactory builds one recorder service per connected client.
type ServiceFactory func() *recorder.Service

// Hub maintains the set of connected streaming clients.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	newService ServiceFactory
	logger     *zap.Logger
}

// NewHub creates a websocket hub.
func NewHub(newService ServiceFactory, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		newService: newService,
		logger:     logger,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.clientID] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("clientID", client.clientID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.clientID]; ok {
				delete(h.clients, client.clientID)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("clientID", client.clientID))
		}
	}
}

// ActiveClients returns the IDs of currently connected clients.
func (h *Hub) ActiveClients() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

// WriteData is one outbound websocket message.
type WriteData struct {
	// Type is websocket.TextMessage or websocket.BinaryMessage.
	Type    int
	Payload []byte
}

// Client is a middleman between one websocket connection and its recording
// session.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan WriteData
	clientID string
	logger   *zap.Logger

	mutex   sync.Mutex
	service *recorder.Service
	source  *StreamSource
}

// HandleWebSocket upgrades an authenticated request and starts the client
// pumps.
func HandleWebSocket(hub *Hub, c echo.Context, clientID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan WriteData, 256),
		clientID: clientID,
		logger:   logger,
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection into the session.
func (c *Client) readPump() {
	defer func() {
		c.teardownSession()
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processAudioFrame(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the session to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage dispatches a JSON control message.
func (c *Client) processMessage(message []byte) {
	var msg InboundMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Error("Failed to parse message", zap.Error(err))
		return
	}

	switch msg.Type {
	case MessageListeningStart:
		c.handleListeningStart(msg)
	case MessageListeningEnd:
		c.handleListeningEnd()
	default:
		c.logger.Warn("Unknown message type", zap.String("type", msg.Type))
	}
}

// processAudioFrame feeds binary PCM into the active stream source.
func (c *Client) processAudioFrame(data []byte) {
	c.mutex.Lock()
	source := c.source
	c.mutex.Unlock()

	if source == nil {
		c.logger.Warn("Audio frame received without an active session",
			zap.String("clientID", c.clientID))
		return
	}
	source.Push(data)
}

// handleListeningStart builds a stream source and starts the recording
// session against it.
func (c *Client) handleListeningStart(msg InboundMessage) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.service != nil {
		c.reply(SessionMessage{Type: MessageListeningStart, Error: "session already running"})
		return
	}

	sampleRate := msg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 48000
	}

	source := NewStreamSource(sampleRate, c.logger)
	service := c.hub.newService()

	err := service.Start(context.Background(), source, func(res recorder.Result) {
		c.pushResult(service, res)
	})
	if err != nil {
		source.Close()
		c.logger.Error("Failed to start recording session",
			zap.String("clientID", c.clientID),
			zap.Error(err))
		c.reply(SessionMessage{Type: MessageListeningStart, Error: "failed to start session"})
		return
	}

	c.service = service
	c.source = source

	c.logger.Info("Recording session attached",
		zap.String("clientID", c.clientID),
		zap.String("sessionID", service.SessionID()),
		zap.Int("sampleRate", sampleRate))

	c.reply(SessionMessage{Type: MessageListeningStart, SessionID: service.SessionID()})
}

// handleListeningEnd stops the session and sends the rolling transcript.
func (c *Client) handleListeningEnd() {
	c.mutex.Lock()
	service := c.service
	source := c.source
	c.service = nil
	c.source = nil
	c.mutex.Unlock()

	if service == nil {
		c.reply(SessionMessage{Type: MessageListeningEnd, Error: "no active session"})
		return
	}

	service.Stop()
	if source != nil {
		source.Close()
	}

	c.logger.Info("Recording session detached",
		zap.String("clientID", c.clientID),
		zap.String("sessionID", service.SessionID()))

	c.reply(SessionMessage{Type: MessageListeningEnd, SessionID: service.SessionID()})
	c.reply(TranscriptMessage{Type: MessageTranscript, Text: service.Transcript()})
}

// pushResult forwards one segment result and the updated transcript.
func (c *Client) pushResult(service *recorder.Service, res recorder.Result) {
	out := TranscriptionMessage{Type: MessageTranscription, ID: res.ID, Text: res.Text}
	if res.Err != nil {
		out.Text = ""
		out.Error = res.Err.Error()
	}
	c.reply(out)
	if res.Err == nil {
		c.reply(TranscriptMessage{Type: MessageTranscript, Text: service.Transcript()})
	}
}

// reply queues a JSON message, dropping it if the client is backed up.
func (c *Client) reply(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}

	defer func() {
		if recover() != nil {
			c.logger.Debug("Message dropped: client disconnected")
		}
	}()

	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("Message dropped: send buffer full", zap.String("clientID", c.clientID))
	}
}

// teardownSession releases session resources on disconnect.
func (c *Client) teardownSession() {
	c.mutex.Lock()
	service := c.service
	source := c.source
	c.service = nil
	c.source = nil
	c.mutex.Unlock()

	if service != nil {
		service.Stop()
	}
	if source != nil {
		source.Close()
	}
}
