package handlers

import (
	"context"

	"PPLive/module/chat/model"
	"PPLive/service/chat"
)

type SendMessageHandler struct{ ctx *chat.ChatContext }

func NewSendMessageHandler(ctx *chat.ChatContext) chat.Handler { return &SendMessageHandler{ctx: ctx} }
func (h *SendMessageHandler) Event() string                    { return model.EvSendMessage }

func (h *SendMessageHandler) Handle(ctx context.Context, c *chat.Conn, f *chat.InFrame) error {
	req, err := chat.Bind[model.SendMessageReq](f)
	if err != nil {
		return err
	}
	_, err = h.ctx.S.Pipeline().Send(ctx, c, req)
	return err
}

type MarkSeenHandler struct{ ctx *chat.ChatContext }

func NewMarkSeenHandler(ctx *chat.ChatContext) chat.Handler { return &MarkSeenHandler{ctx: ctx} }
func (h *MarkSeenHandler) Event() string                    { return model.EvMarkSeen }

func (h *MarkSeenHandler) Handle(ctx context.Context, c *chat.Conn, f *chat.InFrame) error {
	req, err := chat.Bind[model.MarkSeenReq](f)
	if err != nil {
		return err
	}
	return h.ctx.S.Pipeline().MarkSeen(ctx, c, req)
}
