package model

import "time"

const MaxContentLen = 2000 // varchar(2000) in the ledger

// Message is one persisted row of the ledger. Delivered means "durably
// stored", not "acknowledged by a device". Seen only ever goes false -> true.
type Message struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chatId"`
	SenderID  int64     `json:"senderId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Delivered bool      `json:"delivered"`
	Seen      bool      `json:"seen"`
}

// NewMessage is what the pipeline hands the ledger; id/createdAt are assigned on insert.
type NewMessage struct {
	ChatID   int64
	SenderID int64
	Content  string
}
