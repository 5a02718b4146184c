// Package comms implements the in-process communication channel between
// agents: direct and broadcast delivery, topic pub/sub, and a
// request/response protocol with correlation ids.
package comms

import (
	"errors"
	"time"
)

// Message type constants.
const (
	TypeInfo      = "info"
	TypeRequest   = "request"
	TypeResponse  = "response"
	TypeBroadcast = "broadcast"
	TypeConsensus = "consensus"
	TypeTask      = "task"
	TypeStatus    = "status"
	TypeError     = "error"
)

// Priority orders delivery within a recipient's queue.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// String returns the wire name for a priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "medium"
	}
}

// Delivery status constants.
const (
	StatusPending   = "pending"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// Message is a transient communication unit. Content is opaque to the
// channel; each consumer decodes its own expected shape.
type Message struct {
	ID            string    `json:"id"`
	From          string    `json:"from"`
	To            string    `json:"to,omitempty"` // empty = broadcast
	Type          string    `json:"type"`
	Content       any       `json:"content"`
	Priority      Priority  `json:"priority"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Status        string    `json:"status"`
}

// Handler consumes delivered messages. A handler error marks that message
// failed without affecting the rest of the queue.
type Handler func(msg *Message) error

// Channel errors.
var (
	ErrSenderNotRegistered    = errors.New("sender not registered")
	ErrRecipientNotRegistered = errors.New("recipient not registered")
	ErrRequestTimeout         = errors.New("request timed out")
)

// Metrics holds monotonically increasing channel counters plus a live
// queued-message gauge.
type Metrics struct {
	Sent      int64 `json:"sent"`
	Received  int64 `json:"received"`
	Broadcast int64 `json:"broadcast"`
	Failed    int64 `json:"failed"`
	Queued    int   `json:"queued"`
}
