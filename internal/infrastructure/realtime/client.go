package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a room event.
type EventType string

const (
	EventStatusChanged    EventType = "status-changed"
	EventNewMessage       EventType = "new-message"
	EventUserJoined       EventType = "user-joined"
	EventUserLeft         EventType = "user-left"
	EventUserDisconnected EventType = "user-disconnected"
)

// Event is one fan-out unit for a mission room. Sequence is monotone per
// room and reflects server commit order.
type Event struct {
	Type      EventType       `json:"type"`
	MissionID uuid.UUID       `json:"missionId"`
	Sequence  uint64          `json:"sequence"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	EmittedAt time.Time       `json:"emittedAt"`
}

// Client is one connection subscribed to a mission room.
type Client struct {
	ConnectionID string
	UserID       uuid.UUID
	ConnectedAt  time.Time

	events    chan *Event
	closeOnce sync.Once
}

// NewClient creates a room client with a buffered event channel.
func NewClient(connectionID string, userID uuid.UUID) *Client {
	return &Client{
		ConnectionID: connectionID,
		UserID:       userID,
		ConnectedAt:  time.Now().UTC(),
		events:       make(chan *Event, 256),
	}
}

// Events exposes the receive side of the client's event channel.
func (c *Client) Events() <-chan *Event {
	return c.events
}

// Close closes the event channel once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.events)
	})
}
