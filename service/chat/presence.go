package chat

import (
	"context"
	"strconv"
	"sync"
	"time"

	"PPLive/logger"
	"PPLive/module/chat/model"
	"PPLive/tools/errs"
	"PPLive/tools/safe"

	"go.uber.org/zap"
)

type PresenceOptions struct {
	TTL          time.Duration
	Heartbeat    time.Duration
	StoreTimeout time.Duration // bound on each store round trip
}

func (o *PresenceOptions) norm() {
	if o.Heartbeat <= 0 {
		o.Heartbeat = 30 * time.Second
	}
	if o.TTL < 4*o.Heartbeat {
		o.TTL = 4 * o.Heartbeat
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 2 * time.Second
	}
}

// Tracker mirrors registry transitions into the presence store and tells every
// connected client about them. It implements Transitions.
type Tracker struct {
	store  PresenceStore
	opts   PresenceOptions
	fanout *Fanout
	tap    EventTap

	mu    sync.Mutex
	beats map[int64]*beat
	wg    sync.WaitGroup
}

type beat struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func NewTracker(store PresenceStore, opts PresenceOptions, tap EventTap) *Tracker {
	safe.MustNotNil(store, "presence store")
	opts.norm()
	if tap == nil {
		tap = nopTap{}
	}
	return &Tracker{
		store: store,
		opts:  opts,
		tap:   tap,
		beats: make(map[int64]*beat),
	}
}

func (t *Tracker) Options() PresenceOptions { return t.opts }

func (t *Tracker) BecameOnline(ctx context.Context, userID int64) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.opts.StoreTimeout)
	if err := t.store.SetOnline(sctx, userID, t.opts.TTL); err != nil {
		// registry stays authoritative; the heartbeat recreates the key
		logger.Warn("[Presence] write-through failed", zap.Int64("user_id", userID),
			zap.Error(storeErr("set online", err)))
	}
	cancel()

	t.startHeartbeat(userID)
	t.announce(ctx, userID, true)
}

func (t *Tracker) BecameOffline(ctx context.Context, userID int64) {
	t.stopHeartbeat(userID)

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.opts.StoreTimeout)
	if err := t.store.SetOffline(sctx, userID); err != nil {
		logger.Warn("[Presence] delete failed, key will expire by ttl",
			zap.Int64("user_id", userID), zap.Duration("ttl", t.opts.TTL), zap.Error(storeErr("set offline", err)))
	}
	cancel()

	t.announce(ctx, userID, false)
}

func (t *Tracker) announce(ctx context.Context, userID int64, online bool) {
	ev := model.PresenceChanged{UserID: userID, Online: online}
	if t.fanout != nil {
		frame, err := EncodeFrame(model.EvPresenceChanged, ev)
		if err == nil {
			t.fanout.Publish(ctx, userID, frame)
		}
	}
	t.tap.PresenceChanged(ctx, ev)
}

func (t *Tracker) startHeartbeat(userID int64) {
	t.stopHeartbeat(userID)

	ctx, cancel := context.WithCancel(context.Background())
	b := &beat{cancel: cancel, done: make(chan struct{})}
	t.mu.Lock()
	t.beats[userID] = b
	t.mu.Unlock()

	t.wg.Add(1)
	safe.Go("presence-heartbeat", func() {
		defer t.wg.Done()
		defer close(b.done)
		t.heartbeat(ctx, userID)
	})
}

// stopHeartbeat returns once the user's heartbeat has exited, so no refresh
// can land after the caller deletes the key.
func (t *Tracker) stopHeartbeat(userID int64) {
	t.mu.Lock()
	b, ok := t.beats[userID]
	delete(t.beats, userID)
	t.mu.Unlock()
	if ok {
		b.cancel()
		<-b.done
	}
}

func (t *Tracker) heartbeat(ctx context.Context, userID int64) {
	ticker := time.NewTicker(t.opts.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sctx, cancel := context.WithTimeout(ctx, t.opts.StoreTimeout)
			err := t.store.SetOnline(sctx, userID, t.opts.TTL)
			cancel()
			if err != nil && ctx.Err() == nil {
				logger.Warn("[Presence] heartbeat refresh failed", zap.Int64("user_id", userID),
					zap.Error(storeErr("refresh", err)))
			}
		}
	}
}

// Heartbeats reports how many users currently have a live heartbeat.
func (t *Tracker) Heartbeats() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.beats)
}

// Snapshot reads every user the store holds as online. When the store cannot
// be read the result is empty: nobody is reported online.
func (t *Tracker) Snapshot(ctx context.Context) map[string]bool {
	sctx, cancel := context.WithTimeout(ctx, t.opts.StoreTimeout)
	defer cancel()

	out := make(map[string]bool)
	users, err := t.store.OnlineUsers(sctx)
	if err != nil {
		logger.Warn("[Presence] snapshot failed, reporting nobody online", zap.Error(storeErr("snapshot", err)))
		return out
	}
	for _, uid := range users {
		out[strconv.FormatInt(uid, 10)] = true
	}
	return out
}

// Close cancels every heartbeat and waits for them to exit. Store keys are
// left to the offline path or TTL.
func (t *Tracker) Close() {
	t.mu.Lock()
	for uid, b := range t.beats {
		b.cancel()
		delete(t.beats, uid)
	}
	t.mu.Unlock()
	t.wg.Wait()
}

// storeErr tags a presence store failure as PresenceStoreUnavailable.
func storeErr(op string, err error) error {
	return errs.ErrPresenceStore.WrapMsg(op, "cause", err)
}
