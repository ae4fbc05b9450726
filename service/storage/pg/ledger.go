package pg

import (
	"context"

	"PPLive/module/chat/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

// DB is the subset of *pgxpool.Pool the ledger uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Ledger stores messages and answers membership questions.
type Ledger struct {
	db DB
}

func NewLedger(db DB) *Ledger {
	return &Ledger{db: db}
}

const sqlIsMember = `SELECT EXISTS (SELECT 1 FROM chat_members WHERE chat_id = $1 AND user_id = $2)`

func (l *Ledger) IsMember(ctx context.Context, chatID, userID int64) (bool, error) {
	var ok bool
	if err := l.db.QueryRow(ctx, sqlIsMember, chatID, userID).Scan(&ok); err != nil {
		return false, errors.Wrapf(err, "membership chat=%d user=%d", chatID, userID)
	}
	return ok, nil
}

// delivered is written true in the same statement that creates the row.
const sqlInsertMessage = `INSERT INTO messages (chat_id, sender_id, content, delivered)
VALUES ($1, $2, $3, true)
RETURNING id, chat_id, sender_id, content, created_at, delivered, seen`

func (l *Ledger) InsertMessage(ctx context.Context, m model.NewMessage) (model.Message, error) {
	var out model.Message
	err := l.db.QueryRow(ctx, sqlInsertMessage, m.ChatID, m.SenderID, m.Content).Scan(
		&out.ID, &out.ChatID, &out.SenderID, &out.Content, &out.CreatedAt, &out.Delivered, &out.Seen,
	)
	if err != nil {
		return model.Message{}, errors.Wrapf(err, "insert message chat=%d", m.ChatID)
	}
	return out, nil
}

// seen is only ever set to true; the sender filter keeps users from
// acknowledging their own messages. RETURNING lists every non-own row in the
// chat, already-seen ones included, so repeating a call returns the same ids.
const sqlMarkSeen = `UPDATE messages SET seen = true
WHERE chat_id = $1 AND id = ANY($2) AND sender_id <> $3
RETURNING id`

func (l *Ledger) MarkSeen(ctx context.Context, chatID, readerID int64, ids []int64) ([]int64, error) {
	rows, err := l.db.Query(ctx, sqlMarkSeen, chatID, ids, readerID)
	if err != nil {
		return nil, errors.Wrapf(err, "mark seen chat=%d", chatID)
	}
	marked, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, errors.Wrapf(err, "mark seen chat=%d", chatID)
	}
	return marked, nil
}

func (l *Ledger) Ping(ctx context.Context) error {
	return l.db.Ping(ctx)
}
