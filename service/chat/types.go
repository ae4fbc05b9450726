package chat

import (
	"context"
	"time"

	"PPLive/module/chat/model"
)

//go:generate mockgen -destination=../../mocks/mock_ledger.go -package=mocks PPLive/service/chat Ledger,PresenceStore

// Ledger is the durable message store. The pg ledger implements it.
type Ledger interface {
	IsMember(ctx context.Context, chatID, userID int64) (bool, error)
	InsertMessage(ctx context.Context, m model.NewMessage) (model.Message, error)
	// MarkSeen flips seen on the listed messages of chatID not authored by
	// readerID and returns the ids it matched.
	MarkSeen(ctx context.Context, chatID, readerID int64, ids []int64) ([]int64, error)
}

// PresenceStore is the shared online marker store with TTL expiry.
type PresenceStore interface {
	SetOnline(ctx context.Context, userID int64, ttl time.Duration) error
	SetOffline(ctx context.Context, userID int64) error
	OnlineUsers(ctx context.Context) ([]int64, error)
}

// EventTap receives facts after they were broadcast. Implementations must not
// block the caller.
type EventTap interface {
	MessageCreated(ctx context.Context, m model.Message)
	MessagesSeen(ctx context.Context, u model.SeenUpdate)
	PresenceChanged(ctx context.Context, p model.PresenceChanged)
}

type nopTap struct{}

func (nopTap) MessageCreated(context.Context, model.Message)          {}
func (nopTap) MessagesSeen(context.Context, model.SeenUpdate)         {}
func (nopTap) PresenceChanged(context.Context, model.PresenceChanged) {}

// ChatContext is what event handlers are built with.
type ChatContext struct {
	S *Server
}
