// Package websocket pushes live updates to connected editors: reloads when a
// page, component or stylesheet changes, and publish results.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/pagesmith/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// OriginValidator decides whether a browser origin may connect.
type OriginValidator interface {
	IsAllowedOrigin(origin string) bool
}

// HostList allows origins whose host:port is in the list.
type HostList []string

// IsAllowedOrigin implements OriginValidator. Only http and https origins
// are accepted.
func (h HostList) IsAllowedOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	for _, allowed := range h {
		allowed = strings.TrimSpace(allowed)
		if au, err := url.Parse(allowed); err == nil && au.Host != "" {
			allowed = au.Host
		}
		if strings.EqualFold(u.Host, allowed) {
			return true
		}
	}
	return false
}

// WebSocketManager tracks editor connections and broadcasts updates.
type WebSocketManager struct {
	clients      map[*websocket.Conn]*Client
	clientsMutex sync.RWMutex

	broadcast  chan []byte
	register   chan *Client
	unregister chan *websocket.Conn

	originValidator OriginValidator
	logger          logging.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
}

// NewWebSocketManager creates a manager and starts its hub.
func NewWebSocketManager(originValidator OriginValidator, logger logging.Logger) *WebSocketManager {
	if originValidator == nil {
		originValidator = HostList(nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	wm := &WebSocketManager{
		clients:         make(map[*websocket.Conn]*Client),
		broadcast:       make(chan []byte, 256),
		register:        make(chan *Client, 32),
		unregister:      make(chan *websocket.Conn, 32),
		originValidator: originValidator,
		logger:          logging.OrNop(logger).WithComponent("websocket"),
		ctx:             ctx,
		cancel:          cancel,
	}
	go wm.runHub()
	return wm
}

// HandleWebSocket upgrades an editor connection. Requests without an
// allowed Origin header are rejected.
func (wm *WebSocketManager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if wm.ctx.Err() != nil {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}
	origin := r.Header.Get("Origin")
	if origin == "" || !wm.originValidator.IsAllowedOrigin(origin) {
		wm.logger.Warn(r.Context(), nil, "websocket origin rejected", "origin", origin, "remote", r.RemoteAddr)
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The origin was validated above.
		InsecureSkipVerify: true,
		CompressionMode:    websocket.CompressionDisabled,
	})
	if err != nil {
		wm.logger.Warn(r.Context(), err, "websocket upgrade failed", "remote", r.RemoteAddr)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	client := &Client{
		conn:         conn,
		send:         make(chan []byte, 256),
		lastActivity: time.Now(),
	}
	select {
	case wm.register <- client:
	case <-wm.ctx.Done():
		_ = conn.Close(websocket.StatusServiceRestart, "server shutting down")
		return
	}
	go wm.handleClient(client)
}

func (wm *WebSocketManager) runHub() {
	for {
		select {
		case client := <-wm.register:
			wm.clientsMutex.Lock()
			wm.clients[client.conn] = client
			count := len(wm.clients)
			wm.clientsMutex.Unlock()
			wm.logger.Debug(wm.ctx, "editor connected", "clients", count)

		case conn := <-wm.unregister:
			wm.unregisterClient(conn)

		case message := <-wm.broadcast:
			wm.broadcastToClients(message)

		case <-wm.ctx.Done():
			return
		}
	}
}

func (wm *WebSocketManager) unregisterClient(conn *websocket.Conn) {
	wm.clientsMutex.Lock()
	client, exists := wm.clients[conn]
	if exists {
		delete(wm.clients, conn)
		close(client.send)
	}
	count := len(wm.clients)
	wm.clientsMutex.Unlock()

	if exists {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		wm.logger.Debug(wm.ctx, "editor disconnected", "clients", count)
	}
}

func (wm *WebSocketManager) broadcastToClients(message []byte) {
	wm.clientsMutex.RLock()
	var slow []*websocket.Conn
	for conn, client := range wm.clients {
		select {
		case client.send <- message:
		default:
			slow = append(slow, conn)
		}
	}
	wm.clientsMutex.RUnlock()

	for _, conn := range slow {
		wm.unregisterClient(conn)
	}
}

func (wm *WebSocketManager) handleClient(client *Client) {
	go wm.writeToClient(client)
	wm.readFromClient(client)

	select {
	case wm.unregister <- client.conn:
	case <-wm.ctx.Done():
	}
}

// readFromClient drains client frames so pings and closes are processed.
func (wm *WebSocketManager) readFromClient(client *Client) {
	for {
		ctx, cancel := context.WithTimeout(wm.ctx, pongWait)
		_, _, err := client.conn.Read(ctx)
		cancel()
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && wm.ctx.Err() == nil {
				wm.logger.Debug(wm.ctx, "websocket read ended", "error", err.Error())
			}
			return
		}
		client.lastActivity = time.Now()
	}
}

func (wm *WebSocketManager) writeToClient(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(wm.ctx, writeWait)
			err := client.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(wm.ctx, writeWait)
			err := client.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}

		case <-wm.ctx.Done():
			return
		}
	}
}

// BroadcastMessage sends message to every connected editor. Messages are
// dropped when the broadcast queue is full.
func (wm *WebSocketManager) BroadcastMessage(message UpdateMessage) {
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}
	data, err := json.Marshal(message)
	if err != nil {
		wm.logger.Error(wm.ctx, err, "failed to marshal broadcast message")
		return
	}

	select {
	case wm.broadcast <- data:
	case <-wm.ctx.Done():
	default:
		wm.logger.Warn(wm.ctx, nil, "broadcast queue full, dropping message", "type", message.Type)
	}
}

// GetConnectedClients returns the number of connected editors.
func (wm *WebSocketManager) GetConnectedClients() int {
	wm.clientsMutex.RLock()
	defer wm.clientsMutex.RUnlock()
	return len(wm.clients)
}

// Shutdown closes every connection and stops the hub.
func (wm *WebSocketManager) Shutdown(_ context.Context) error {
	wm.shutdownOnce.Do(func() {
		wm.cancel()

		wm.clientsMutex.Lock()
		for conn, client := range wm.clients {
			close(client.send)
			_ = conn.Close(websocket.StatusGoingAway, "server shutdown")
		}
		wm.clients = make(map[*websocket.Conn]*Client)
		wm.clientsMutex.Unlock()
	})
	return nil
}

// IsShutdown reports whether Shutdown was called.
func (wm *WebSocketManager) IsShutdown() bool {
	return wm.ctx.Err() != nil
}
