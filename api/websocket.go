package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/seenimoa/secpack/internal/pack"
	"github.com/seenimoa/secpack/pkg/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the progress feed carries no private data
	},
}

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	clientBuffer = 256
)

// WSMessage is a message sent over WebSocket connections.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// WSHub fans pack progress events out to WebSocket clients. It implements
// pack.Notifier; Publish never blocks the build.
type WSHub struct {
	mu        sync.RWMutex
	clients   map[*WSClient]bool
	broadcast chan WSMessage
	done      chan struct{}
	stopOnce  sync.Once
	log       *zap.Logger
}

// WSClient represents a single WebSocket connection. A client with a ticker
// filter only receives events for that ticker.
type WSClient struct {
	hub    *WSHub
	send   chan WSMessage
	ticker string // guarded by hub.mu
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub(log *zap.Logger) *WSHub {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHub{
		clients:   make(map[*WSClient]bool),
		broadcast: make(chan WSMessage, clientBuffer),
		done:      make(chan struct{}),
		log:       log.Named("ws"),
	}
}

// NewClient creates a client bound to the hub. It receives nothing until
// registered.
func (h *WSHub) NewClient() *WSClient {
	return &WSClient{hub: h, send: make(chan WSMessage, clientBuffer)}
}

// Run starts the hub event loop. It returns after Stop, closing every
// client's send channel.
func (h *WSHub) Run() {
	for {
		select {
		case msg := <-h.broadcast:
			h.fanOut(msg)
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				h.drop(client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop ends the event loop. Safe to call more than once.
func (h *WSHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *WSHub) fanOut(msg WSMessage) {
	ticker := ""
	if e, ok := msg.Data.(pack.Event); ok {
		ticker = e.Ticker
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if client.ticker != "" && ticker != "" && client.ticker != ticker {
			continue
		}
		select {
		case client.send <- msg:
		default:
			h.log.Debug("slow client dropped")
			h.drop(client)
		}
	}
}

// drop removes client; h.mu must be held.
func (h *WSHub) drop(client *WSClient) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// Broadcast sends a message to all connected WebSocket clients.
func (h *WSHub) Broadcast(msg WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
		// Drop message if broadcast channel is full
	}
}

// Publish forwards a pack progress event to subscribed clients.
func (h *WSHub) Publish(e pack.Event) {
	h.Broadcast(WSMessage{Type: e.Type, Data: e})
}

// ClientCount returns the number of connected WebSocket clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client to the hub. After Stop the client is closed
// immediately.
func (h *WSHub) Register(client *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.done:
		close(client.send)
	default:
		h.clients[client] = true
	}
}

// Unregister removes a client from the hub.
func (h *WSHub) Unregister(client *WSClient) {
	h.mu.Lock()
	h.drop(client)
	h.mu.Unlock()
}

// Subscribe restricts client to events for ticker; empty clears the filter.
func (h *WSHub) Subscribe(client *WSClient, ticker string) {
	h.mu.Lock()
	client.ticker = utils.NormalizeTicker(ticker)
	h.mu.Unlock()
}

// reply queues msg for one client unless the hub has already dropped it.
func (h *WSHub) reply(client *WSClient, msg WSMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[client] {
		return
	}
	select {
	case client.send <- msg:
	default:
	}
}

// handleWebSocket upgrades the connection and streams pack progress events.
// Clients may send {"type":"subscribe","data":"AAPL"} to filter by ticker.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := s.hub.NewClient()
	s.hub.Register(client)

	go wsWritePump(conn, client, s.hub.log)
	go wsReadPump(conn, client)
}

// wsReadPump handles control messages from the client.
func wsReadPump(conn *websocket.Conn, client *WSClient) {
	hub := client.hub
	defer func() {
		hub.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				hub.log.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "subscribe":
			ticker, _ := msg.Data.(string)
			hub.Subscribe(client, ticker)
			hub.reply(client, WSMessage{Type: "subscribed", Data: utils.NormalizeTicker(ticker)})
		case "ping":
			hub.reply(client, WSMessage{Type: "pong"})
		}
	}
}

// wsWritePump pumps messages from the hub to the WebSocket connection.
func wsWritePump(conn *websocket.Conn, client *WSClient, log *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(msg)
			if err != nil {
				log.Warn("websocket marshal failed", zap.Error(err))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
