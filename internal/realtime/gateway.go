package realtime

import (
	"log/slog"
	"sync"
)

// Conn is one live client connection. The websocket transport wraps
// *websocket.Conn behind this so the gateway (and its tests) never touch
// the wire directly.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Event is the envelope every broadcast payload travels in.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Gateway owns the process-local broadcast registry: negotiation rooms and
// per-user channels. It is injected into the services that emit events —
// there is no package-level registry. Emission is fire-and-forget; a write
// failure drops the connection and is never surfaced to the caller.
type Gateway struct {
	mu       sync.Mutex
	rooms    map[string]map[Conn]struct{}
	channels map[string]map[Conn]struct{}
	// reverse indexes so Drop can clean up everything a connection joined
	connRooms   map[Conn]map[string]struct{}
	connChannel map[Conn]string
}

func NewGateway() *Gateway {
	return &Gateway{
		rooms:       make(map[string]map[Conn]struct{}),
		channels:    make(map[string]map[Conn]struct{}),
		connRooms:   make(map[Conn]map[string]struct{}),
		connChannel: make(map[Conn]string),
	}
}

// Join subscribes conn to the negotiation room identified by roomKey.
func (g *Gateway) Join(conn Conn, roomKey string) {
	if roomKey == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rooms[roomKey] == nil {
		g.rooms[roomKey] = make(map[Conn]struct{})
	}
	g.rooms[roomKey][conn] = struct{}{}
	if g.connRooms[conn] == nil {
		g.connRooms[conn] = make(map[string]struct{})
	}
	g.connRooms[conn][roomKey] = struct{}{}
}

// Leave unsubscribes conn from one room. Unknown memberships are a no-op.
func (g *Gateway) Leave(conn Conn, roomKey string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeFromRoom(conn, roomKey)
}

// Register subscribes conn to the personal channel for userID. A connection
// has at most one personal channel; re-registering moves it.
func (g *Gateway) Register(conn Conn, userID string) {
	if userID == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if prev, ok := g.connChannel[conn]; ok {
		g.removeFromChannel(conn, prev)
	}
	if g.channels[userID] == nil {
		g.channels[userID] = make(map[Conn]struct{})
	}
	g.channels[userID][conn] = struct{}{}
	g.connChannel[conn] = userID
}

// Drop removes conn from every room and channel it joined and closes it.
// Called when the read loop ends; safe to call twice.
func (g *Gateway) Drop(conn Conn) {
	g.mu.Lock()
	for roomKey := range g.connRooms[conn] {
		g.removeFromRoom(conn, roomKey)
	}
	if userID, ok := g.connChannel[conn]; ok {
		g.removeFromChannel(conn, userID)
	}
	g.mu.Unlock()
	_ = conn.Close()
}

// EmitRoom pushes an event to every connection in a negotiation room.
// A missing room means nobody is listening; the event is silently dropped.
func (g *Gateway) EmitRoom(roomKey, event string, data interface{}) {
	g.emit(g.snapshot(g.rooms, roomKey), event, data)
}

// EmitUser pushes an event to every connection on a user's personal channel.
func (g *Gateway) EmitUser(userID, event string, data interface{}) {
	g.emit(g.snapshot(g.channels, userID), event, data)
}

// RoomSize reports current membership, used by tests and the health surface.
func (g *Gateway) RoomSize(roomKey string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms[roomKey])
}

func (g *Gateway) snapshot(m map[string]map[Conn]struct{}, key string) []Conn {
	g.mu.Lock()
	defer g.mu.Unlock()
	conns := make([]Conn, 0, len(m[key]))
	for c := range m[key] {
		conns = append(conns, c)
	}
	return conns
}

// emit writes outside the lock; dead connections are dropped afterwards.
func (g *Gateway) emit(conns []Conn, event string, data interface{}) {
	var dead []Conn
	for _, c := range conns {
		if err := c.WriteJSON(Event{Event: event, Data: data}); err != nil {
			slog.Debug("dropping unreachable connection", "event", event, "err", err)
			dead = append(dead, c)
		}
	}
	for _, c := range dead {
		g.Drop(c)
	}
}

// callers must hold g.mu
func (g *Gateway) removeFromRoom(conn Conn, roomKey string) {
	if room, ok := g.rooms[roomKey]; ok {
		delete(room, conn)
		if len(room) == 0 {
			delete(g.rooms, roomKey)
		}
	}
	if rooms, ok := g.connRooms[conn]; ok {
		delete(rooms, roomKey)
		if len(rooms) == 0 {
			delete(g.connRooms, conn)
		}
	}
}

// callers must hold g.mu
func (g *Gateway) removeFromChannel(conn Conn, userID string) {
	if ch, ok := g.channels[userID]; ok {
		delete(ch, conn)
		if len(ch) == 0 {
			delete(g.channels, userID)
		}
	}
	delete(g.connChannel, conn)
}
