package handlers

import (
	"context"

	"PPLive/module/chat/model"
	"PPLive/service/chat"
)

// SnapshotHandler answers request-presence-snapshot to the requester only.
type SnapshotHandler struct{ ctx *chat.ChatContext }

func NewSnapshotHandler(ctx *chat.ChatContext) chat.Handler { return &SnapshotHandler{ctx: ctx} }
func (h *SnapshotHandler) Event() string                    { return model.EvRequestSnapshot }

func (h *SnapshotHandler) Handle(ctx context.Context, c *chat.Conn, _ *chat.InFrame) error {
	c.Emit(model.EvPresenceSnapshot, h.ctx.S.Tracker().Snapshot(ctx))
	return nil
}
