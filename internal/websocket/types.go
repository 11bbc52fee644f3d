package websocket

import (
	"time"

	"github.com/coder/websocket"
)

// Message types pushed to editor clients.
const (
	MessageReload    = "reload"
	MessagePublished = "published"
	MessageComponent = "component"
)

// Client is one connected editor.
type Client struct {
	conn         *websocket.Conn
	send         chan []byte
	lastActivity time.Time
}

// UpdateMessage is a message sent to the browser.
type UpdateMessage struct {
	Type      string    `json:"type"`
	Target    string    `json:"target,omitempty"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
