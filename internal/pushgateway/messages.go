package pushgateway

import "github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/session"

// MessageType enumerates the server->client and client->server message
// types from spec.md §6.
type MessageType string

const (
	TypeConnected      MessageType = "CONNECTED"
	TypeStateUpdate    MessageType = "STATE_UPDATE"
	TypeStateSync      MessageType = "STATE_SYNC"
	TypeSessionDeleted MessageType = "SESSION_DELETED"
	TypePong           MessageType = "PONG"
	TypeError          MessageType = "ERROR"

	TypePing      MessageType = "PING"
	TypeReconnect MessageType = "RECONNECT"
)

// Message is the wire envelope: {type, sessionId, timestamp, ...}.
type Message struct {
	Type      MessageType      `json:"type"`
	SessionID string           `json:"sessionId"`
	Timestamp int64            `json:"timestamp"`
	State     *session.Session `json:"state,omitempty"`
	Code      string           `json:"code,omitempty"`
	Message   string           `json:"message,omitempty"`
}
