package models

import (
	"encoding/json"
	"fmt"
)

// Event actions carried by live payloads
const (
	ActionCreate = "create"
	ActionUpdate = "update"
)

// WebSocket frame types
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FrameEvent       = "event"
)

// MessageEvent is published on the tenant's appMessage channel
type MessageEvent struct {
	Action  string   `json:"action"`
	Message *Message `json:"message,omitempty"`
}

// ContactEvent is published on the tenant's contact channel
type ContactEvent struct {
	Action  string   `json:"action"`
	Contact *Contact `json:"contact,omitempty"`
}

// WebSocketMessage is the envelope exchanged over the socket
type WebSocketMessage struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MessageChannel names the channel carrying message events for a tenant
func MessageChannel(tenantID string) string {
	return fmt.Sprintf("company-%s-appMessage", tenantID)
}

// ContactChannel names the channel carrying contact events for a tenant
func ContactChannel(tenantID string) string {
	return fmt.Sprintf("company-%s-contact", tenantID)
}
