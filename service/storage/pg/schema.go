package pg

import (
	"context"

	"github.com/pkg/errors"
)

// The tables belong to the CRUD service; this DDL only bootstraps a dev
// database when DB_AUTO_MIGRATE is set.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS chat_members (
		chat_id   BIGINT NOT NULL,
		user_id   BIGINT NOT NULL,
		joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (chat_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS chat_members_user_idx ON chat_members (user_id)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id         BIGSERIAL PRIMARY KEY,
		chat_id    BIGINT NOT NULL,
		sender_id  BIGINT NOT NULL,
		content    VARCHAR(2000) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		delivered  BOOLEAN NOT NULL DEFAULT false,
		seen       BOOLEAN NOT NULL DEFAULT false
	)`,
	`CREATE INDEX IF NOT EXISTS messages_chat_idx ON messages (chat_id, id)`,
	`CREATE INDEX IF NOT EXISTS messages_sender_idx ON messages (sender_id)`,
}

func (l *Ledger) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := l.db.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, "migrate")
		}
	}
	return nil
}
