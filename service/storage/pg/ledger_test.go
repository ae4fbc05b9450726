package pg

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"PPLive/module/chat/model"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func newMockLedger(t *testing.T) (pgxmock.PgxPoolIface, *Ledger) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewLedger(mock)
}

var msgColumns = []string{"id", "chat_id", "sender_id", "content", "created_at", "delivered", "seen"}

func TestIsMember(t *testing.T) {
	mock, l := newMockLedger(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(int64(5), int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(int64(5), int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := l.IsMember(context.Background(), 5, 1)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.IsMember(context.Background(), 5, 2)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertMessageReturnsDeliveredRow(t *testing.T) {
	mock, l := newMockLedger(t)
	now := time.Now().UTC().Truncate(time.Millisecond)

	mock.ExpectQuery(`INSERT INTO messages`).
		WithArgs(int64(5), int64(1), "hello").
		WillReturnRows(pgxmock.NewRows(msgColumns).AddRow(int64(100), int64(5), int64(1), "hello", now, true, false))

	m, err := l.InsertMessage(context.Background(), model.NewMessage{ChatID: 5, SenderID: 1, Content: "hello"})
	require.NoError(t, err)
	require.Equal(t, model.Message{
		ID: 100, ChatID: 5, SenderID: 1, Content: "hello", CreatedAt: now, Delivered: true, Seen: false,
	}, m)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertMessageFailure(t *testing.T) {
	mock, l := newMockLedger(t)

	mock.ExpectQuery(`INSERT INTO messages`).
		WithArgs(int64(5), int64(1), "hello").
		WillReturnError(errors.New("connection reset"))

	_, err := l.InsertMessage(context.Background(), model.NewMessage{ChatID: 5, SenderID: 1, Content: "hello"})
	require.ErrorContains(t, err, "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSeenExcludesReaderAndReturnsMatched(t *testing.T) {
	mock, l := newMockLedger(t)

	mock.ExpectQuery(`UPDATE messages SET seen = true`).
		WithArgs(int64(5), []int64{100, 101}, int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(100)))

	ids, err := l.MarkSeen(context.Background(), 5, 2, []int64{100, 101})
	require.NoError(t, err)
	require.Equal(t, []int64{100}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRemarkingSeenReturnsSameIDs(t *testing.T) {
	mock, l := newMockLedger(t)
	for i := 0; i < 2; i++ {
		mock.ExpectQuery(`UPDATE messages SET seen = true`).
			WithArgs(int64(5), []int64{100}, int64(2)).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(100)))
	}

	first, err := l.MarkSeen(context.Background(), 5, 2, []int64{100})
	require.NoError(t, err)
	again, err := l.MarkSeen(context.Background(), 5, 2, []int64{100})
	require.NoError(t, err)
	require.Equal(t, first, again)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateRunsDDL(t *testing.T) {
	mock, l := newMockLedger(t)
	for _, stmt := range schema {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}

	require.NoError(t, l.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateStopsOnError(t *testing.T) {
	mock, l := newMockLedger(t)
	mock.ExpectExec(regexp.QuoteMeta(schema[0])).WillReturnError(errors.New("permission denied"))

	require.ErrorContains(t, l.Migrate(context.Background()), "permission denied")
	require.NoError(t, mock.ExpectationsWereMet())
}
