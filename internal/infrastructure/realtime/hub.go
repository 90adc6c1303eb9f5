package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Hub maintains per-mission room membership and broadcasts events to every
// member in commit order. Operations on different rooms never contend.
type Hub struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]*room
}

type room struct {
	mu      sync.Mutex
	seq     uint64
	members map[string]*Client
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[uuid.UUID]*room),
	}
}

func (h *Hub) getRoom(missionID uuid.UUID, create bool) *room {
	h.mu.RLock()
	r := h.rooms[missionID]
	h.mu.RUnlock()
	if r != nil || !create {
		return r
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if r = h.rooms[missionID]; r == nil {
		r = &room{members: make(map[string]*Client)}
		h.rooms[missionID] = r
	}
	return r
}

// Join registers a client in the mission's room.
func (h *Hub) Join(missionID uuid.UUID, client *Client) {
	r := h.getRoom(missionID, true)
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.members[client.ConnectionID]; ok {
		old.Close()
	}
	r.members[client.ConnectionID] = client
}

// Leave removes a connection from the room and closes its channel.
func (h *Hub) Leave(missionID uuid.UUID, connectionID string) *Client {
	r := h.getRoom(missionID, false)
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.members[connectionID]
	if !ok {
		return nil
	}
	delete(r.members, connectionID)
	c.Close()
	return c
}

// Broadcast sends an event to every current member of the room, assigning the
// next per-room sequence number. The room lock is held across the enqueue so
// all members observe events in the same relative order. Members whose
// buffers are full are evicted; once disconnected they fall back to push
// notification.
func (h *Hub) Broadcast(missionID uuid.UUID, typ EventType, payload any) *Event {
	r := h.getRoom(missionID, true)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	var raw json.RawMessage
	if payload != nil {
		raw, _ = json.Marshal(payload)
	}
	ev := &Event{
		Type:      typ,
		MissionID: missionID,
		Sequence:  r.seq,
		Payload:   raw,
		EmittedAt: time.Now().UTC(),
	}
	for id, c := range r.members {
		select {
		case c.events <- ev:
		default:
			delete(r.members, id)
			c.Close()
		}
	}
	return ev
}

// Members returns the distinct user ids currently connected to the room.
func (h *Hub) Members(missionID uuid.UUID) []uuid.UUID {
	r := h.getRoom(missionID, false)
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[uuid.UUID]struct{}, len(r.members))
	var users []uuid.UUID
	for _, c := range r.members {
		if _, ok := seen[c.UserID]; ok {
			continue
		}
		seen[c.UserID] = struct{}{}
		users = append(users, c.UserID)
	}
	return users
}

// IsConnected reports whether the user has at least one live connection in
// the room.
func (h *Hub) IsConnected(missionID, userID uuid.UUID) bool {
	r := h.getRoom(missionID, false)
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.members {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

// Stop closes every room and client.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, r := range h.rooms {
		r.mu.Lock()
		for _, c := range r.members {
			c.Close()
		}
		r.members = make(map[string]*Client)
		r.mu.Unlock()
		delete(h.rooms, id)
	}
}
