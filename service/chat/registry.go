package chat

import (
	"context"
	"sync"
)

const registryShards = 32

// Transitions receives a user's offline→online and online→offline edges.
// Calls for one user are serialized and never overlap; calls for different
// users may run concurrently.
type Transitions interface {
	BecameOnline(ctx context.Context, userID int64)
	BecameOffline(ctx context.Context, userID int64)
}

type registryShard struct {
	mu     sync.RWMutex
	byUser map[int64]map[string]*Conn // user -> conn id -> conn
}

// Registry is the authoritative map of live connections per user. A user is
// online exactly when they have at least one registered connection.
type Registry struct {
	shards [registryShards]*registryShard
	users  *keyLock
	hooks  Transitions
}

func NewRegistry(hooks Transitions) *Registry {
	r := &Registry{users: newKeyLock(), hooks: hooks}
	for i := range r.shards {
		r.shards[i] = &registryShard{byUser: make(map[int64]map[string]*Conn)}
	}
	return r
}

func (r *Registry) shard(userID int64) *registryShard {
	return r.shards[uint64(userID)%registryShards]
}

// Register adds conn under userID. It returns true when this is the user's
// first connection, in which case BecameOnline has already run.
func (r *Registry) Register(ctx context.Context, userID int64, c *Conn) bool {
	unlock := r.users.Lock(userID)
	defer unlock()

	sh := r.shard(userID)
	sh.mu.Lock()
	conns := sh.byUser[userID]
	first := len(conns) == 0
	if conns == nil {
		conns = make(map[string]*Conn)
		sh.byUser[userID] = conns
	}
	conns[c.ID] = c
	sh.mu.Unlock()

	if first && r.hooks != nil {
		r.hooks.BecameOnline(ctx, userID)
	}
	return first
}

// Unregister removes conn. Removing a connection that is not registered is a
// no-op. It returns true when the user's last connection went away, in which
// case BecameOffline has already run.
func (r *Registry) Unregister(ctx context.Context, userID int64, c *Conn) bool {
	unlock := r.users.Lock(userID)
	defer unlock()

	sh := r.shard(userID)
	sh.mu.Lock()
	conns := sh.byUser[userID]
	if _, ok := conns[c.ID]; !ok {
		sh.mu.Unlock()
		return false
	}
	delete(conns, c.ID)
	last := len(conns) == 0
	if last {
		delete(sh.byUser, userID)
	}
	sh.mu.Unlock()

	if last && r.hooks != nil {
		r.hooks.BecameOffline(ctx, userID)
	}
	return last
}

func (r *Registry) IsOnline(userID int64) bool {
	return r.ConnCount(userID) > 0
}

func (r *Registry) ConnCount(userID int64) int {
	sh := r.shard(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return len(sh.byUser[userID])
}

// Conns returns the user's live connections.
func (r *Registry) Conns(userID int64) []*Conn {
	sh := r.shard(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	conns := sh.byUser[userID]
	out := make([]*Conn, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

// Users lists every user with at least one connection.
func (r *Registry) Users() []int64 {
	var out []int64
	for _, sh := range r.shards {
		sh.mu.RLock()
		for uid := range sh.byUser {
			out = append(out, uid)
		}
		sh.mu.RUnlock()
	}
	return out
}

// ForEach visits every live connection. fn runs outside the shard locks.
func (r *Registry) ForEach(fn func(*Conn)) {
	var batch []*Conn
	for _, sh := range r.shards {
		batch = batch[:0]
		sh.mu.RLock()
		for _, conns := range sh.byUser {
			for _, c := range conns {
				batch = append(batch, c)
			}
		}
		sh.mu.RUnlock()
		for _, c := range batch {
			fn(c)
		}
	}
}

func (r *Registry) Len() int {
	n := 0
	for _, sh := range r.shards {
		sh.mu.RLock()
		for _, conns := range sh.byUser {
			n += len(conns)
		}
		sh.mu.RUnlock()
	}
	return n
}
