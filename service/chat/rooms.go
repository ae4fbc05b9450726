package chat

import (
	"sync"

	"PPLive/logger"

	"go.uber.org/zap"
)

const roomShards = 32

type roomShard struct {
	mu    sync.RWMutex
	rooms map[int64]map[*Conn]struct{}
}

// Rooms groups connections by chat for targeted broadcast. Membership here is
// advisory routing only; authorization happens in the pipeline.
type Rooms struct {
	shards [roomShards]*roomShard
}

func NewRooms() *Rooms {
	r := &Rooms{}
	for i := range r.shards {
		r.shards[i] = &roomShard{rooms: make(map[int64]map[*Conn]struct{})}
	}
	return r
}

func (r *Rooms) shard(chatID int64) *roomShard {
	return r.shards[uint64(chatID)%roomShards]
}

// Join adds c to the chat room and reports whether it was new. Joining twice
// is a no-op; a closed connection never joins.
func (r *Rooms) Join(c *Conn, chatID int64) bool {
	// c.mu is held across the room insert so a concurrent close either sees
	// the room in c.rooms or this join sees the close.
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	if _, ok := c.rooms[chatID]; ok {
		return false
	}
	c.rooms[chatID] = struct{}{}

	sh := r.shard(chatID)
	sh.mu.Lock()
	members := sh.rooms[chatID]
	if members == nil {
		members = make(map[*Conn]struct{})
		sh.rooms[chatID] = members
	}
	members[c] = struct{}{}
	sh.mu.Unlock()
	return true
}

// leave drops c from the given rooms and deletes rooms left empty.
func (r *Rooms) leave(c *Conn, chatIDs []int64) {
	for _, chatID := range chatIDs {
		sh := r.shard(chatID)
		sh.mu.Lock()
		if members := sh.rooms[chatID]; members != nil {
			delete(members, c)
			if len(members) == 0 {
				delete(sh.rooms, chatID)
			}
		}
		sh.mu.Unlock()
	}
}

// LeaveAll closes c and removes it from every room it joined.
func (r *Rooms) LeaveAll(c *Conn) {
	rooms, _ := c.markClosed()
	r.leave(c, rooms)
}

// Broadcast encodes once and enqueues to every member except exclude. It
// never blocks; a peer with a full queue misses this frame. It returns how
// many connections accepted the frame.
func (r *Rooms) Broadcast(chatID int64, event string, payload any, exclude *Conn) int {
	frame, err := EncodeFrame(event, payload)
	if err != nil {
		logger.Error("[Rooms] encode failed", zap.String("event", event), zap.Error(err))
		return 0
	}
	return r.BroadcastFrame(chatID, frame, exclude)
}

func (r *Rooms) BroadcastFrame(chatID int64, frame []byte, exclude *Conn) int {
	sh := r.shard(chatID)
	sh.mu.RLock()
	members := make([]*Conn, 0, len(sh.rooms[chatID]))
	for c := range sh.rooms[chatID] {
		if c != exclude {
			members = append(members, c)
		}
	}
	sh.mu.RUnlock()

	sent := 0
	for _, c := range members {
		if c.Send(frame) {
			sent++
		} else {
			logger.Debug("[Rooms] frame dropped", zap.Int64("chat_id", chatID), zap.String("conn_id", c.ID))
		}
	}
	return sent
}

// Members counts the connections currently in the room.
func (r *Rooms) Members(chatID int64) int {
	sh := r.shard(chatID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return len(sh.rooms[chatID])
}

// Len counts non-empty rooms.
func (r *Rooms) Len() int {
	n := 0
	for _, sh := range r.shards {
		sh.mu.RLock()
		n += len(sh.rooms)
		sh.mu.RUnlock()
	}
	return n
}
