package chat

import (
	"sync"
	"sync/atomic"
	"time"
)

// Conn is one live, authenticated connection. A single user may have several
// (one per device), each maintained separately. UserID is fixed at handshake.
//
// Outbound frames go through a bounded queue drained by one writer goroutine,
// so broadcasters never wait on a slow peer.
type Conn struct {
	ID        string
	UserID    int64
	CreatedAt time.Time

	send    chan []byte
	done    chan struct{}
	dropped atomic.Int64

	mu     sync.Mutex
	closed bool
	rooms  map[int64]struct{}
}

func NewConn(id string, userID int64, sendQueueSize int) *Conn {
	if sendQueueSize <= 0 {
		sendQueueSize = 1
	}
	return &Conn{
		ID:        id,
		UserID:    userID,
		CreatedAt: time.Now(),
		send:      make(chan []byte, sendQueueSize),
		done:      make(chan struct{}),
		rooms:     make(map[int64]struct{}),
	}
}

// Send enqueues a frame without blocking. It returns false when the
// connection is closed or its queue is full; the frame is then dropped for
// this peer only.
func (c *Conn) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

// Emit encodes an event and sends it to this connection only.
func (c *Conn) Emit(event string, payload any) bool {
	frame, err := EncodeFrame(event, payload)
	if err != nil {
		return false
	}
	return c.Send(frame)
}

// Outbound is consumed by the writer goroutine.
func (c *Conn) Outbound() <-chan []byte { return c.send }

// Done is closed once the connection starts shutting down.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Dropped counts frames discarded because the queue was full.
func (c *Conn) Dropped() int64 { return c.dropped.Load() }

// markClosed flips the connection to closed and returns the rooms it was in.
// Only the first call returns true.
func (c *Conn) markClosed() ([]int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, false
	}
	c.closed = true
	close(c.done)
	rooms := make([]int64, 0, len(c.rooms))
	for id := range c.rooms {
		rooms = append(rooms, id)
	}
	c.rooms = nil
	return rooms, true
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Rooms lists the chats this connection joined.
func (c *Conn) Rooms() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int64, 0, len(c.rooms))
	for id := range c.rooms {
		out = append(out, id)
	}
	return out
}
