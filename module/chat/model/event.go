package model

// Server -> client events.
const (
	EvPresenceChanged  = "presence-changed"
	EvPresenceSnapshot = "presence-snapshot"
	EvNewMessage       = "new-message"
	EvMessageAck       = "message-ack"
	EvMessageError     = "message-error"
	EvUserTyping       = "user-typing"
	EvUserStopTyping   = "user-stopped-typing"
	EvSeenUpdate       = "seen-update"
	EvUserJoined       = "user-joined"
)

// Client -> server events.
const (
	EvRequestSnapshot = "request-presence-snapshot"
	EvJoinRoom        = "join-room"
	EvSendMessage     = "send-message"
	EvTyping          = "typing"
	EvStopTyping      = "stop-typing"
	EvMarkSeen        = "mark-seen"
)

type PresenceChanged struct {
	UserID int64 `json:"userId"`
	Online bool  `json:"online"`
}

type MessageAck struct {
	MessageID int64 `json:"messageId"`
	Delivered bool  `json:"delivered"`
}

type MessageError struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// TypingSignal is used for typing, stop-typing and user-joined alike.
type TypingSignal struct {
	UserID int64 `json:"userId"`
	ChatID int64 `json:"chatId"`
}

type SeenUpdate struct {
	ChatID     int64   `json:"chatId"`
	MessageIDs []int64 `json:"messageIds"`
	SeenBy     int64   `json:"seenBy"`
}

// ---- inbound payloads ----

type JoinRoomReq struct {
	ChatID int64 `json:"chatId" validate:"required,gt=0"`
}

type SendMessageReq struct {
	ChatID  int64  `json:"chatId" validate:"required,gt=0"`
	Content string `json:"content"`
}

type TypingReq struct {
	ChatID int64 `json:"chatId" validate:"required,gt=0"`
}

type MarkSeenReq struct {
	ChatID     int64   `json:"chatId" validate:"required,gt=0"`
	MessageIDs []int64 `json:"messageIds"`
}
