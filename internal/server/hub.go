package server

import (
	"sync"

	"paintboard/internal/protocol"
)

// Picture is a room's background image
type Picture struct {
	ContentType string
	Data        []byte
}

// Room represents a collaborative drawing room
type Room struct {
	ID         int
	Clients    map[*Client]bool
	Lines      []protocol.Line
	Background *Picture
	mu         sync.RWMutex
}

// Hub manages all rooms and clients
type Hub struct {
	Rooms map[int]*Room
	mu    sync.RWMutex
}

// NewHub returns a Hub with no rooms
func NewHub() *Hub {
	return &Hub{Rooms: make(map[int]*Room)}
}

// GetOrCreateRoom returns an existing room or creates a new one
func (h *Hub) GetOrCreateRoom(roomID int) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, exists := h.Rooms[roomID]; exists {
		return room
	}

	room := &Room{
		ID:      roomID,
		Clients: make(map[*Client]bool),
		Lines:   make([]protocol.Line, 0),
	}
	h.Rooms[roomID] = room
	return room
}

// Room returns the room with roomID, if it exists
func (h *Hub) Room(roomID int) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.Rooms[roomID]
	return room, ok
}

// Stats is a snapshot of the hub's size
type Stats struct {
	Rooms   int `json:"rooms"`
	Clients int `json:"clients"`
	Lines   int `json:"lines"`
}

// Stats counts rooms, connected clients and stored lines
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := Stats{Rooms: len(h.Rooms)}
	for _, room := range h.Rooms {
		room.mu.RLock()
		s.Clients += len(room.Clients)
		s.Lines += len(room.Lines)
		room.mu.RUnlock()
	}
	return s
}

// AddClient adds a client to the room
func (r *Room) AddClient(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Clients[client] = true
}

// RemoveClient removes a client from the room
func (r *Room) RemoveClient(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.Clients, client)
}

// Broadcast sends a message to all clients in the room except the sender
func (r *Room) Broadcast(msg []byte, sender *Client) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for client := range r.Clients {
		if client != sender {
			client.enqueue(msg)
		}
	}
}

// BroadcastToAll sends a message to all clients including sender
func (r *Room) BroadcastToAll(msg []byte) {
	r.Broadcast(msg, nil)
}

// AddLine appends a stroke to the room's state
func (r *Room) AddLine(line protocol.Line) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Lines = append(r.Lines, line)
}

// ClearLines drops every stroke of the room
func (r *Room) ClearLines() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Lines = make([]protocol.Line, 0)
}

// GetLines returns a copy of all strokes
func (r *Room) GetLines() []protocol.Line {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lines := make([]protocol.Line, len(r.Lines))
	copy(lines, r.Lines)
	return lines
}

// SetBackground replaces the room's background picture
func (r *Room) SetBackground(pic *Picture) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Background = pic
}

// GetBackground returns the room's background picture, or nil
func (r *Room) GetBackground() *Picture {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Background
}
