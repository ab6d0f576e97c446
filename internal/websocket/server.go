package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yegors/co-track/internal/aircraft"
	"github.com/yegors/co-track/pkg/logger"
)

// Message types on the change stream
const (
	MessageTypeAircraftAdded   = "aircraft_added"
	MessageTypeAircraftChanged = "aircraft_changed"
	MessageTypeSnapshotRequest = "snapshot_request" // Client asks for the full list
	MessageTypeSnapshot        = "snapshot"         // Server answers a snapshot request
	MessageTypeFilterUpdate    = "filter_update"    // Client narrows what it receives
	MessageTypeError           = "error"
)

// Message is one frame on the stream
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// incoming is a frame sent by a client
type incoming struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MessageHandler handles client frames the server does not handle itself
type MessageHandler interface {
	HandleMessage(client *Client, messageType string, data json.RawMessage) error
}

// Options tune the server
type Options struct {
	SendBufferSize int           // Messages queued per client before it is dropped
	WriteTimeout   time.Duration // Deadline for one write
	PingInterval   time.Duration // Keep-alive ping period
	MaxMessageSize int64         // Largest frame accepted from a client
}

func (o *Options) setDefaults() {
	if o.SendBufferSize <= 0 {
		o.SendBufferSize = 256
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 64 * 1024
	}
}

// Client is one connected stream consumer
type Client struct {
	conn    *websocket.Conn
	send    chan *Message
	server  *Server
	mu      sync.Mutex
	closed  bool
	filters *ClientFilters
}

// Server fans aircraft changes out to websocket clients
type Server struct {
	clients        map[*Client]bool
	register       chan *Client
	unregister     chan *Client
	broadcast      chan *Message
	done           chan struct{}
	upgrader       websocket.Upgrader
	options        Options
	logger         *logger.Logger
	mu             sync.RWMutex
	messageHandler MessageHandler
}

// NewServer creates a new WebSocket server
func NewServer(opts Options, log *logger.Logger) *Server {
	opts.setDefaults()
	return &Server{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, opts.SendBufferSize),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
		options: opts,
		logger:  log.Named("web-socket"),
	}
}

// SetMessageHandler sets the handler for client frames other than filter updates
func (s *Server) SetMessageHandler(handler MessageHandler) {
	s.messageHandler = handler
}

// ClientCount returns the number of registered clients
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Run dispatches registrations and broadcasts until ctx is done, then
// disconnects every client
func (s *Server) Run(ctx context.Context) {
	s.logger.Info("Starting WebSocket server")
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			for client := range s.clients {
				delete(s.clients, client)
				client.markClosed()
			}
			s.mu.Unlock()
			s.logger.Info("WebSocket server stopped")
			return

		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = true
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client registered", logger.Int("client_count", clientCount))

		case client := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				client.markClosed()
			}
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client unregistered", logger.Int("client_count", clientCount))

		case message := <-s.broadcast:
			s.dispatch(message)
		}
	}
}

func (s *Server) dispatch(message *Message) {
	s.mu.RLock()
	clientsToRemove := make([]*Client, 0)
	for client := range s.clients {
		out := client.filter(message)
		if out == nil {
			continue
		}
		if !client.SendMessage(out) {
			// Closed or too slow to keep up
			clientsToRemove = append(clientsToRemove, client)
		}
	}
	s.mu.RUnlock()

	if len(clientsToRemove) == 0 {
		return
	}
	s.mu.Lock()
	for _, client := range clientsToRemove {
		if _, ok := s.clients[client]; ok {
			delete(s.clients, client)
			client.markClosed()
			s.logger.Warn("Dropped slow WebSocket client",
				logger.String("remote_addr", client.conn.RemoteAddr().String()))
		}
	}
	s.mu.Unlock()
}

// HandleConnection upgrades the request and serves the stream
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			logger.Error(err),
			logger.String("remote_addr", r.RemoteAddr))
		return
	}

	s.logger.Debug("Successfully upgraded connection to WebSocket",
		logger.String("remote_addr", r.RemoteAddr))

	client := &Client{
		conn:   conn,
		send:   make(chan *Message, s.options.SendBufferSize),
		server: s,
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	go client.readPump()
	go client.writePump()
}

// ServeHTTP makes the server mountable as a handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.HandleConnection(w, r)
}

// Broadcast queues message for every client. It returns false once the
// server has stopped.
func (s *Server) Broadcast(message *Message) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.broadcast <- message:
		return true
	case <-s.done:
		return false
	}
}

// BroadcastUpdate publishes one aircraft change set
func (s *Server) BroadcastUpdate(update aircraft.Update) bool {
	return s.Broadcast(NewChangeMessage(update))
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.server.unregister <- c:
		case <-c.server.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.server.options.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(2 * c.server.options.PingInterval))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * c.server.options.PingInterval))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.server.logger.Error("WebSocket read error", logger.Error(err))
			}
			return
		}

		var message incoming
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			c.server.logger.Debug("Failed to parse WebSocket message", logger.Error(err))
			c.SendMessage(&Message{Type: MessageTypeError, Data: "malformed message"})
			continue
		}

		if err := c.handle(message); err != nil {
			c.server.logger.Debug("Failed to handle WebSocket message",
				logger.Error(err),
				logger.String("type", message.Type))
			c.SendMessage(&Message{Type: MessageTypeError, Data: err.Error()})
		}
	}
}

func (c *Client) handle(message incoming) error {
	if message.Type == MessageTypeFilterUpdate {
		filters, err := ParseFilters(message.Data)
		if err != nil {
			return err
		}
		c.UpdateFilters(filters)
		return nil
	}
	if c.server.messageHandler == nil {
		return nil
	}
	return c.server.messageHandler.HandleMessage(c, message.Type, message.Data)
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(c.server.options.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.server.options.WriteTimeout))
			if !ok {
				// Channel closed
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.server.options.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// markClosed stops further sends and lets the write pump drain and exit.
// Callers hold the server lock.
func (c *Client) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// SendMessage sends a message to this specific client. It returns false when
// the client is closed or its queue is full.
func (c *Client) SendMessage(message *Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// UpdateFilters replaces the client's active filters
func (c *Client) UpdateFilters(filters *ClientFilters) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = filters
}

// GetFilters returns the client's current filters
func (c *Client) GetFilters() *ClientFilters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters
}

// filter returns what this client should receive for message, or nil
func (c *Client) filter(message *Message) *Message {
	change, ok := message.Data.(*Change)
	if !ok {
		return message
	}
	trimmed := c.GetFilters().Apply(change)
	if trimmed == nil {
		return nil
	}
	if trimmed == change {
		return message
	}
	return &Message{Type: message.Type, Data: trimmed}
}
