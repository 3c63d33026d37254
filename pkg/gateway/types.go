package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ChatResponse is the body of a successful chat reply.
type ChatResponse struct {
	Response string `json:"response"`
	Status   string `json:"status"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// WSReply is one frame sent back on a chat websocket. Code carries the HTTP
// status the same request would have received over POST /api/chat.
type WSReply struct {
	Code     int    `json:"code"`
	Response string `json:"response,omitempty"`
	Status   string `json:"status,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Client is one open chat websocket.
type Client struct {
	ID           string
	SessionKey   string
	ClientID     string
	Conn         *websocket.Conn
	ConnectedAt  time.Time
	LastActivity time.Time
	IPAddress    string

	writeMu sync.Mutex
}

// WriteJSON serialises writes to the underlying connection.
func (c *Client) WriteJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteJSON(v)
}

// ClientInfo describes a connected client.
type ClientInfo struct {
	ID           string    `json:"id"`
	SessionKey   string    `json:"session_key"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastActivity time.Time `json:"last_activity"`
	IPAddress    string    `json:"ip_address"`
	Idle         bool      `json:"idle"`
}
