// Package tap forwards already-broadcast facts (new messages, seen updates,
// presence flips) to a message bus for downstream consumers. Publishing is
// asynchronous and lossy under pressure: the live path never waits on it.
package tap

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"PPLive/logger"
	"PPLive/module/chat/model"
	"PPLive/tools/safe"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	TypeMessageCreated  = "message.created"
	TypeMessageSeen     = "message.seen"
	TypePresenceChanged = "presence.changed"
)

// Envelope is what goes on the wire.
type Envelope struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	At   time.Time       `json:"at"`
	Key  string          `json:"key"` // partition key: chat id or user id
	Data json.RawMessage `json:"data"`
}

func NewEnvelope(typ, key string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:   uuid.NewString(),
		Type: typ,
		At:   time.Now().UTC(),
		Key:  key,
		Data: raw,
	}, nil
}

// Publisher is a bus backend.
type Publisher interface {
	Publish(ctx context.Context, ev Envelope) error
	Close() error
}

// Tap queues envelopes and publishes them from one goroutine, so backend
// order follows broadcast order.
type Tap struct {
	pub     Publisher
	queue   chan Envelope
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func New(pub Publisher, queueSize int) *Tap {
	safe.MustNotNil(pub, "publisher")
	if queueSize <= 0 {
		queueSize = 1024
	}
	t := &Tap{
		pub:     pub,
		queue:   make(chan Envelope, queueSize),
		timeout: 5 * time.Second,
		done:    make(chan struct{}),
	}
	safe.Go("tap-publisher", t.run)
	return t
}

func (t *Tap) run() {
	defer close(t.done)
	for ev := range t.queue {
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		if err := t.pub.Publish(ctx, ev); err != nil {
			logger.Warn("[Tap] publish failed",
				zap.String("type", ev.Type), zap.String("id", ev.ID), zap.Error(err))
		}
		cancel()
	}
}

func (t *Tap) enqueue(typ, key string, data any) {
	ev, err := NewEnvelope(typ, key, data)
	if err != nil {
		logger.Error("[Tap] encode failed", zap.String("type", typ), zap.Error(err))
		return
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return
	}
	select {
	case t.queue <- ev:
	default:
		logger.Warn("[Tap] queue full, event dropped", zap.String("type", typ), zap.String("key", key))
	}
}

func (t *Tap) MessageCreated(_ context.Context, m model.Message) {
	t.enqueue(TypeMessageCreated, strconv.FormatInt(m.ChatID, 10), m)
}

func (t *Tap) MessagesSeen(_ context.Context, u model.SeenUpdate) {
	t.enqueue(TypeMessageSeen, strconv.FormatInt(u.ChatID, 10), u)
}

func (t *Tap) PresenceChanged(_ context.Context, p model.PresenceChanged) {
	t.enqueue(TypePresenceChanged, strconv.FormatInt(p.UserID, 10), p)
}

// Close stops accepting events, publishes what is queued and closes the
// backend. Events raised after Close are dropped.
func (t *Tap) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.queue)
	t.mu.Unlock()

	<-t.done
	return t.pub.Close()
}
