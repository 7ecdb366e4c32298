// internal/domain/websocket/types.go
package websocket

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType represents different real-time event types
type EventType string

const (
	// Connection events
	EventTypePing         EventType = "ping"
	EventTypePong         EventType = "pong"
	EventTypeConnected    EventType = "connected"
	EventTypeDisconnected EventType = "disconnected"
	EventTypeError        EventType = "error"

	// Subscription events
	EventTypeSubscribe   EventType = "subscribe"
	EventTypeUnsubscribe EventType = "unsubscribe"

	// Dedupe events (server -> client)
	EventTypeDuplicatesFound     EventType = "duplicates:found"
	EventTypeMergeCompleted      EventType = "merge:completed"
	EventTypeBatchMergeCompleted EventType = "merge:batch_completed"

	// Dedupe requests (client -> server)
	EventTypeDuplicatesScan EventType = "duplicates:scan"

	// System events
	EventTypeSystemAlert EventType = "system:alert"
)

// WSMessage is the universal message format
type WSMessage struct {
	Type      EventType              `json:"type"`
	Data      interface{}            `json:"data,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	ID        string                 `json:"id,omitempty"`
}

// Subscription channels that clients can subscribe to
type ChannelType string

const (
	ChannelMerges ChannelType = "merges"
	ChannelSystem ChannelType = "system"
)

func (c ChannelType) Valid() bool {
	return c == ChannelMerges || c == ChannelSystem
}

// SubscribeRequest sent by client to subscribe to specific channels
type SubscribeRequest struct {
	Channels []ChannelType `json:"channels"`
}

// UnsubscribeRequest sent by client to unsubscribe from channels
type UnsubscribeRequest struct {
	Channels []ChannelType `json:"channels"`
}

// ScanRequest asks the server for a fresh duplicate scan.
type ScanRequest struct {
	Limit int `json:"limit"` // cap on groups returned, 0 means all
}

// ErrorData for error events
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// DuplicatesFoundData summarises a scan for channel subscribers.
type DuplicatesFoundData struct {
	Total    int            `json:"total"`
	ByReason map[string]int `json:"by_reason"`
}

type MergeCompletedData struct {
	PrimaryID   int64    `json:"primary_id"`
	CustomerID  string   `json:"customer_id"`
	AbsorbedIDs []string `json:"absorbed_ids"`
}

type BatchMergeCompletedData struct {
	TotalProcessed int `json:"total_processed"`
	SuccessCount   int `json:"success_count"`
	FailureCount   int `json:"failure_count"`
}

// SystemAlertData for system-wide alerts
type SystemAlertData struct {
	Severity string `json:"severity"` // info, warning, critical
	Title    string `json:"title"`
	Message  string `json:"message"`
}

// Helper to create messages
func NewMessage(eventType EventType, data interface{}) *WSMessage {
	return &WSMessage{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
		ID:        ulid.Make().String(),
	}
}

func (m *WSMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ParseMessage(data []byte) (*WSMessage, error) {
	var msg WSMessage
	err := json.Unmarshal(data, &msg)
	return &msg, err
}
