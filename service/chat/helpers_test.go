package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"PPLive/module/chat/model"

	"github.com/stretchr/testify/require"
)

// memLedger is an in-memory Ledger with the same seen rules as the pg one.
type memLedger struct {
	mu         sync.Mutex
	members    map[int64]map[int64]bool
	rows       []model.Message
	nextID     int64
	failInsert error
	inserted   chan int64 // optional, receives every committed id
}

func newMemLedger() *memLedger {
	return &memLedger{members: make(map[int64]map[int64]bool), nextID: 100}
}

func (l *memLedger) addMember(chatID int64, users ...int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.members[chatID] == nil {
		l.members[chatID] = make(map[int64]bool)
	}
	for _, u := range users {
		l.members[chatID][u] = true
	}
}

func (l *memLedger) IsMember(_ context.Context, chatID, userID int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.members[chatID][userID], nil
}

func (l *memLedger) InsertMessage(_ context.Context, m model.NewMessage) (model.Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failInsert != nil {
		return model.Message{}, l.failInsert
	}
	l.nextID++
	row := model.Message{
		ID:        l.nextID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		CreatedAt: time.Now().UTC(),
		Delivered: true,
	}
	l.rows = append(l.rows, row)
	if l.inserted != nil {
		l.inserted <- row.ID
	}
	return row, nil
}

func (l *memLedger) MarkSeen(_ context.Context, chatID, readerID int64, ids []int64) ([]int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []int64
	for i := range l.rows {
		r := &l.rows[i]
		if r.ChatID == chatID && want[r.ID] && r.SenderID != readerID {
			r.Seen = true
			out = append(out, r.ID)
		}
	}
	return out, nil
}

func (l *memLedger) row(id int64) (model.Message, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.rows {
		if r.ID == id {
			return r, true
		}
	}
	return model.Message{}, false
}

func (l *memLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows)
}

var errStoreDown = errors.New("store down")

// memStore is a PresenceStore that can be switched off.
type memStore struct {
	mu     sync.Mutex
	online map[int64]time.Duration
	writes map[int64]int
	down   bool
}

func newMemStore() *memStore {
	return &memStore{online: make(map[int64]time.Duration), writes: make(map[int64]int)}
}

func (s *memStore) SetOnline(_ context.Context, userID int64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return errStoreDown
	}
	s.online[userID] = ttl
	s.writes[userID]++
	return nil
}

func (s *memStore) SetOffline(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return errStoreDown
	}
	delete(s.online, userID)
	return nil
}

func (s *memStore) OnlineUsers(context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, errStoreDown
	}
	out := make([]int64, 0, len(s.online))
	for id := range s.online {
		out = append(out, id)
	}
	return out, nil
}

func (s *memStore) has(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.online[userID]
	return ok
}

func (s *memStore) setDown(down bool) {
	s.mu.Lock()
	s.down = down
	s.mu.Unlock()
}

// queued pops every frame currently waiting on c without blocking.
func queued(t *testing.T, c *Conn) []Frame {
	t.Helper()
	var out []Frame
	for {
		select {
		case raw := <-c.Outbound():
			var f Frame
			require.NoError(t, json.Unmarshal(raw, &f))
			out = append(out, f)
		default:
			return out
		}
	}
}

// waitFrame blocks until c receives event, skipping others.
func waitFrame(t *testing.T, c *Conn, event string) Frame {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case raw := <-c.Outbound():
			var f Frame
			require.NoError(t, json.Unmarshal(raw, &f))
			if f.Event == event {
				return f
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s on conn %s", event, c.ID)
		}
	}
}

func events(frames []Frame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.Event
	}
	return out
}

func decodeData[T any](t *testing.T, f Frame) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(f.Data, &v))
	return v
}

func newTestServer(t *testing.T, store PresenceStore, ledger Ledger) *Server {
	t.Helper()
	s := NewServer(Options{
		Presence:      PresenceOptions{Heartbeat: 20 * time.Millisecond},
		SendQueueSize: 64,
		FanoutWorkers: 4,
	}, store, ledger, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}
