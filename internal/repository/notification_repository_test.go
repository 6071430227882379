package repository

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shinyyama/book-market-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationRepository_ListFilters(t *testing.T) {
	tests := []struct {
		name  string
		f     NotificationFilter
		query string
		args  []interface{}
	}{
		{
			name:  "whole inbox",
			f:     NotificationFilter{},
			query: "SELECT * FROM `notifications` WHERE user_uid = ? ORDER BY id DESC LIMIT ?",
			args:  []interface{}{"alice", 20},
		},
		{
			name:  "unread favorites before a cursor",
			f:     NotificationFilter{UnreadOnly: true, Kind: model.NotificationKindFavorite, BeforeID: 90, Limit: 500},
			query: "SELECT * FROM `notifications` WHERE user_uid = ? AND read_at IS NULL AND kind = ? AND id < ? ORDER BY id DESC LIMIT ?",
			args:  []interface{}{"alice", "FAVORITE", 90, 50},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gdb, mock := newMockDB(t)
			repo := NewNotificationRepository(gdb)

			var args []driver.Value
			for _, a := range tt.args {
				args = append(args, a)
			}
			mock.ExpectQuery(quoted(tt.query)).WithArgs(args...).
				WillReturnRows(sqlmock.NewRows([]string{"id", "user_uid", "kind", "body"}).
					AddRow(89, "alice", "FAVORITE", "gone"))

			list, err := repo.List(context.Background(), "alice", tt.f)
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, model.NotificationKindFavorite, list[0].Kind)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestNotificationRepository_MarkReadByKind(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewNotificationRepository(gdb)
	at := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(quoted("UPDATE `notifications` SET `read_at`=? WHERE user_uid = ? AND read_at IS NULL AND kind = ?")).
		WithArgs(at, "alice", "TRANSACTION").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.MarkRead(context.Background(), "alice", model.NotificationKindTransaction, at)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepository_UnreadByKind(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewNotificationRepository(gdb)

	mock.ExpectQuery(quoted("SELECT kind, COUNT(*) AS n FROM `notifications` WHERE user_uid = ? AND read_at IS NULL GROUP BY `kind`")).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"kind", "n"}).
			AddRow("TRANSACTION", 4).
			AddRow("FAVORITE", 1))

	got, err := repo.UnreadByKind(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, map[model.NotificationKind]int64{
		model.NotificationKindTransaction: 4,
		model.NotificationKindFavorite:    1,
	}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
