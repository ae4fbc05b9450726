package handlers

import (
	"context"

	"PPLive/module/chat/model"
	"PPLive/service/chat"
)

// TypingHandler serves both typing and stop-typing.
type TypingHandler struct {
	ctx     *chat.ChatContext
	started bool
}

func NewTypingHandler(ctx *chat.ChatContext) chat.Handler {
	return &TypingHandler{ctx: ctx, started: true}
}

func NewStopTypingHandler(ctx *chat.ChatContext) chat.Handler {
	return &TypingHandler{ctx: ctx}
}

func (h *TypingHandler) Event() string {
	if h.started {
		return model.EvTyping
	}
	return model.EvStopTyping
}

func (h *TypingHandler) Handle(_ context.Context, c *chat.Conn, f *chat.InFrame) error {
	req, err := chat.Bind[model.TypingReq](f)
	if err != nil {
		return err
	}
	if err := chat.ValidateReq(req); err != nil {
		return err
	}
	h.ctx.S.Typing().Relay(c, req.ChatID, h.started)
	return nil
}
