package chat

import "PPLive/module/chat/model"

// Typing relays typing indicators to the rest of a room. It keeps no state.
type Typing struct {
	rooms *Rooms
}

func NewTyping(rooms *Rooms) *Typing { return &Typing{rooms: rooms} }

// Relay sends user-typing (started) or user-stopped-typing to every other
// connection in the chat room.
func (t *Typing) Relay(c *Conn, chatID int64, started bool) int {
	event := model.EvUserStopTyping
	if started {
		event = model.EvUserTyping
	}
	return t.rooms.Broadcast(chatID, event, model.TypingSignal{UserID: c.UserID, ChatID: chatID}, c)
}
