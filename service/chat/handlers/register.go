package handlers

import "PPLive/service/chat"

// RegisterAll binds every client event handler to s.
func RegisterAll(s *chat.Server) {
	ctx := &chat.ChatContext{S: s}
	d := s.Disp()
	d.Register(NewSnapshotHandler(ctx))
	d.Register(NewJoinRoomHandler(ctx))
	d.Register(NewSendMessageHandler(ctx))
	d.Register(NewTypingHandler(ctx))
	d.Register(NewStopTypingHandler(ctx))
	d.Register(NewMarkSeenHandler(ctx))
}
