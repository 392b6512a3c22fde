package realtime

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"google.golang.org/protobuf/types/known/structpb"
)

// ErrSlowConsumer is returned for a connection whose send buffer is full.
var ErrSlowConsumer = errors.New("connection send buffer full")

var errConnClosed = errors.New("connection closed")

// Hub tracks room membership and fans events out to members. Membership is
// routing state only and is lost on disconnect.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Conn]struct{}
	log   *slog.Logger
}

// NewHub returns an empty hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{rooms: map[string]map[*Conn]struct{}{}, log: log.With("component", "hub")}
}

// Join adds c to room.
func (h *Hub) Join(room string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = map[*Conn]struct{}{}
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

// Leave removes c from room.
func (h *Hub) Leave(room string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(room, c)
}

// Drop removes c from every room it joined.
func (h *Hub) Drop(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range c.rooms {
		h.leaveLocked(room, c)
	}
}

func (h *Hub) leaveLocked(room string, c *Conn) {
	delete(c.rooms, room)
	members := h.rooms[room]
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Members returns the number of connections in room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Publish sends an event to every member of room. A room without members is
// not an error. Per-connection failures are joined into the returned error;
// delivery to the other members is unaffected.
func (h *Hub) Publish(room, event string, data any) error {
	frame, err := EncodeFrame(event, data)
	if err != nil {
		return err
	}
	h.mu.RLock()
	members := make([]*Conn, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	var errs []error
	for _, c := range members {
		if err := c.enqueue(frame); err != nil {
			errs = append(errs, fmt.Errorf("conn %s: %w", c.id, err))
		}
	}
	h.log.Debug("published", "room", room, "event", event, "members", len(members))
	return errors.Join(errs...)
}

// Conn is one open stream. Outbound frames are queued and written by a single
// writer goroutine.
type Conn struct {
	id    string
	out   chan *structpb.Struct
	done  chan struct{}
	once  sync.Once
	rooms map[string]struct{} // guarded by Hub.mu
}

func newConn(id string, buffer int) *Conn {
	return &Conn{
		id:    id,
		out:   make(chan *structpb.Struct, buffer),
		done:  make(chan struct{}),
		rooms: map[string]struct{}{},
	}
}

func (c *Conn) enqueue(f *structpb.Struct) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.out <- f:
		return nil
	case <-c.done:
		return errConnClosed
	default:
		return ErrSlowConsumer
	}
}

func (c *Conn) close() {
	c.once.Do(func() { close(c.done) })
}
