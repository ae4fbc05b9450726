package chat

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingHooks struct {
	mu       sync.Mutex
	seq      map[int64][]bool // true = online
	inFlight map[int64]int
	overlap  atomic.Bool
}

func newRecordingHooks() *recordingHooks {
	return &recordingHooks{seq: make(map[int64][]bool), inFlight: make(map[int64]int)}
}

func (h *recordingHooks) enter(uid int64, online bool) {
	h.mu.Lock()
	h.inFlight[uid]++
	if h.inFlight[uid] > 1 {
		h.overlap.Store(true)
	}
	h.seq[uid] = append(h.seq[uid], online)
	h.mu.Unlock()
}

func (h *recordingHooks) leave(uid int64) {
	h.mu.Lock()
	h.inFlight[uid]--
	h.mu.Unlock()
}

func (h *recordingHooks) BecameOnline(_ context.Context, uid int64) {
	h.enter(uid, true)
	defer h.leave(uid)
}

func (h *recordingHooks) BecameOffline(_ context.Context, uid int64) {
	h.enter(uid, false)
	defer h.leave(uid)
}

func (h *recordingHooks) transitions(uid int64) []bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]bool(nil), h.seq[uid]...)
}

func TestRegisterSignalsOnlineOnFirstConnectionOnly(t *testing.T) {
	hooks := newRecordingHooks()
	r := NewRegistry(hooks)
	ctx := context.Background()

	a, b := NewConn("a", 1, 1), NewConn("b", 1, 1)
	require.True(t, r.Register(ctx, 1, a))
	require.False(t, r.Register(ctx, 1, b))

	require.Equal(t, []bool{true}, hooks.transitions(1))
	require.True(t, r.IsOnline(1))
	require.Equal(t, 2, r.ConnCount(1))
	require.ElementsMatch(t, []*Conn{a, b}, r.Conns(1))
}

func TestTwoDevicesOfflineSignalsOnce(t *testing.T) {
	hooks := newRecordingHooks()
	r := NewRegistry(hooks)
	ctx := context.Background()

	phone, laptop := NewConn("phone", 1, 1), NewConn("laptop", 1, 1)
	r.Register(ctx, 1, phone)
	r.Register(ctx, 1, laptop)

	require.False(t, r.Unregister(ctx, 1, phone))
	require.True(t, r.IsOnline(1))
	require.Equal(t, []bool{true}, hooks.transitions(1))

	require.True(t, r.Unregister(ctx, 1, laptop))
	require.False(t, r.IsOnline(1))
	require.Equal(t, []bool{true, false}, hooks.transitions(1))
	require.Empty(t, r.Users())
}

func TestUnregisterUnknownConnectionIsNoop(t *testing.T) {
	hooks := newRecordingHooks()
	r := NewRegistry(hooks)
	ctx := context.Background()

	require.False(t, r.Unregister(ctx, 1, NewConn("ghost", 1, 1)))

	a := NewConn("a", 1, 1)
	r.Register(ctx, 1, a)
	require.False(t, r.Unregister(ctx, 1, NewConn("ghost", 1, 1)))
	require.True(t, r.Unregister(ctx, 1, a))
	require.False(t, r.Unregister(ctx, 1, a))

	require.Equal(t, []bool{true, false}, hooks.transitions(1))
}

// Online must equal "has at least one connection" under concurrent churn, and
// each user's transitions must alternate starting with online.
func TestOnlineTracksConnectionSetUnderChurn(t *testing.T) {
	hooks := newRecordingHooks()
	r := NewRegistry(hooks)
	ctx := context.Background()

	const (
		users   = 8
		devices = 4
		rounds  = 200
	)
	var (
		wg         sync.WaitGroup
		violations atomic.Int64
	)
	for u := int64(1); u <= users; u++ {
		for d := 0; d < devices; d++ {
			wg.Add(1)
			go func(uid int64, dev int) {
				defer wg.Done()
				rnd := rand.New(rand.NewSource(uid*100 + int64(dev)))
				for i := 0; i < rounds; i++ {
					c := NewConn(fmt.Sprintf("u%d-d%d-%d", uid, dev, i), uid, 1)
					r.Register(ctx, uid, c)
					if rnd.Intn(2) == 0 {
						r.Unregister(ctx, uid, c)
						continue
					}
					if !r.IsOnline(uid) {
						violations.Add(1)
					}
					r.Unregister(ctx, uid, c)
				}
			}(u, d)
		}
	}
	wg.Wait()

	require.Zero(t, violations.Load(), "user reported offline while holding a connection")
	require.False(t, hooks.overlap.Load(), "transitions for one user overlapped")
	for u := int64(1); u <= users; u++ {
		seq := hooks.transitions(u)
		require.NotEmpty(t, seq)
		for i, online := range seq {
			require.Equal(t, i%2 == 0, online, "user %d transition %d", u, i)
		}
		require.False(t, seq[len(seq)-1], "user %d should end offline", u)
		require.False(t, r.IsOnline(u))
	}
	require.Zero(t, r.Len())
}

func TestForEachVisitsEveryConnection(t *testing.T) {
	r := NewRegistry(nil)
	ctx := context.Background()
	for u := int64(1); u <= 40; u++ {
		r.Register(ctx, u, NewConn(fmt.Sprintf("c%d", u), u, 1))
	}
	r.Register(ctx, 1, NewConn("c1-bis", 1, 1))

	seen := map[string]bool{}
	r.ForEach(func(c *Conn) { seen[c.ID] = true })
	require.Len(t, seen, 41)
	require.Len(t, r.Users(), 40)
	require.Equal(t, 41, r.Len())
}
