package handlers

import (
	"context"

	"PPLive/module/chat/model"
	"PPLive/service/chat"
)

// JoinRoomHandler subscribes the connection to a chat room. Room membership
// only routes broadcasts; sending is authorized against the ledger.
type JoinRoomHandler struct{ ctx *chat.ChatContext }

func NewJoinRoomHandler(ctx *chat.ChatContext) chat.Handler { return &JoinRoomHandler{ctx: ctx} }
func (h *JoinRoomHandler) Event() string                    { return model.EvJoinRoom }

func (h *JoinRoomHandler) Handle(_ context.Context, c *chat.Conn, f *chat.InFrame) error {
	req, err := chat.Bind[model.JoinRoomReq](f)
	if err != nil {
		return err
	}
	if err := chat.ValidateReq(req); err != nil {
		return err
	}
	rooms := h.ctx.S.Rooms()
	if rooms.Join(c, req.ChatID) {
		rooms.Broadcast(req.ChatID, model.EvUserJoined,
			model.TypingSignal{UserID: c.UserID, ChatID: req.ChatID}, c)
	}
	return nil
}
