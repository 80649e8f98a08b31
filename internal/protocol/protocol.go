// Package protocol defines the messages pushed to local status-stream clients.
package protocol

import "time"

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// TypeStatus carries a control service status snapshot
	TypeStatus MessageType = "status"

	// TypePing can be used for application-level heartbeats if needed
	TypePing MessageType = "ping"
)

// Message is the generic container for all WebSocket messages
type Message struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

// StatusPayload is the payload for TypeStatus
type StatusPayload struct {
	Connected bool      `json:"connected"`
	State     string    `json:"state"`
	Reason    string    `json:"reason,omitempty"`
	Label     string    `json:"label"`
	CheckedAt time.Time `json:"checked_at"`
}
