package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/FocuswithJustin/CedarPress/internal/logging"
	"github.com/gorilla/websocket"
)

// ProgressMessage is a progress update for one document job, pushed to
// the WebSocket subscribers of that job.
type ProgressMessage struct {
	Type      string `json:"type"` // "progress", "complete", "error"
	JobID     string `json:"job_id"`
	Stage     string `json:"stage,omitempty"`    // pipeline stage currently running
	Resource  string `json:"resource,omitempty"` // resource spec the stage is working on
	Percent   int    `json:"percent"`            // 0-100
	Message   string `json:"message,omitempty"`  // human-readable status
	Timestamp string `json:"timestamp"`          // ISO 8601 timestamp
}

// Client represents a WebSocket client subscribed to one job.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	jobID   string
	limiter *tokenBucket // caps inbound client messages
}

// Hub maintains active WebSocket connections and routes each progress
// message to the clients subscribed to its job.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan ProgressMessage
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan ProgressMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's main loop to handle client registration and
// message routing. It runs until the process exits.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			logging.WebSocketEvent("client_connected", count, "job_id", client.jobID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			logging.WebSocketEvent("client_disconnected", count)

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				logging.Error("failed to marshal progress message", "error", err)
				continue
			}

			h.mu.Lock()
			for client := range h.clients {
				if client.jobID != msg.JobID {
					continue
				}
				select {
				case client.send <- data:
				default:
					// Client channel full, disconnect
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount reports how many clients are currently connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast routes a progress message to the job's subscribers.
func (h *Hub) Broadcast(msg ProgressMessage) {
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	select {
	case h.broadcast <- msg:
	default:
		logging.Warn("broadcast channel full, dropping message", "job_id", msg.JobID)
	}
}

// Progress reports a pipeline stage update for a job.
func (h *Hub) Progress(jobID, stage, resource string, percent int) {
	h.Broadcast(ProgressMessage{
		Type:     "progress",
		JobID:    jobID,
		Stage:    stage,
		Resource: resource,
		Percent:  percent,
	})
}

// Complete reports that a job finished successfully.
func (h *Hub) Complete(jobID, message string) {
	h.Broadcast(ProgressMessage{
		Type:    "complete",
		JobID:   jobID,
		Percent: 100,
		Message: message,
	})
}

// Error reports that a job failed.
func (h *Hub) Error(jobID, message string) {
	h.Broadcast(ProgressMessage{
		Type:    "error",
		JobID:   jobID,
		Message: message,
	})
}

// isOriginAllowed checks if the origin is in the allowed list.
// Supports exact matches, the "*" wildcard, and "*.example.com"
// subdomain patterns.
func isOriginAllowed(origin string, allowedOrigins []string) bool {
	if origin == "" {
		return false
	}

	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			return true
		}

		if origin == allowed {
			return true
		}

		if strings.HasPrefix(allowed, "*.") {
			domain := allowed[2:]
			if strings.HasSuffix(origin, domain) {
				return true
			}
		}
	}

	return false
}

// newUpgrader builds the WebSocket upgrader for the server. Browser
// connections are checked against the allowed origin list; requests
// without an Origin header (CLI clients, curl) are accepted.
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if len(allowedOrigins) == 0 {
				return true
			}
			if isOriginAllowed(origin, allowedOrigins) {
				return true
			}
			logging.Warn("websocket origin rejected", "origin", origin, "remote", getClientIP(r))
			return false
		},
	}
}

// serveJobSocket upgrades the connection and subscribes it to one job's
// progress stream. The snapshot is queued first so late subscribers see
// where the run stands before the next live update arrives.
func serveJobSocket(hub *Hub, upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request, jobID string, snapshot ProgressMessage) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("websocket upgrade failed", "error", err)
		return
	}

	conn.SetReadLimit(512)

	client := &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, 256),
		jobID:   jobID,
		limiter: newTokenBucket(10, 1.0),
	}

	if snapshot.Timestamp == "" {
		snapshot.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if data, err := json.Marshal(snapshot); err == nil {
		client.send <- data
	}

	client.hub.register <- client

	// Start goroutines for reading and writing
	go client.writePump()
	go client.readPump()
}

// readPump reads messages from the WebSocket connection. Subscribers
// have nothing to send; inbound traffic beyond the rate limit closes
// the connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error("websocket unexpected close", "error", err)
			}
			break
		}
		if !c.limiter.allow() {
			logging.Warn("websocket client exceeded message rate", "job_id", c.jobID)
			break
		}
	}
}

// writePump writes messages to the WebSocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Flush any additional queued messages
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
