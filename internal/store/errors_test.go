package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return sqlx.NewDb(conn, "sqlite"), mock
}

func TestApproveItemWrapsDatabaseError(t *testing.T) {
	database, mock := newMockDB(t)
	mock.ExpectExec(`UPDATE items SET approved = 1`).
		WithArgs("Available", int64(4)).
		WillReturnError(errors.New("disk I/O error"))

	ok, err := ApproveItem(context.Background(), database, 4)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "approving item")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveItemReportsLostRace(t *testing.T) {
	database, mock := newMockDB(t)
	mock.ExpectExec(`UPDATE items SET status = \?, reserved_by = \?`).
		WithArgs("Reserved", "carlos@lsu.edu", int64(1), "Available", "carlos@lsu.edu").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := ReserveItem(context.Background(), database, 1, "carlos@lsu.edu")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateItemRollsBackOnImageFailure(t *testing.T) {
	database, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO items`).WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectExec(`INSERT INTO item_images`).WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	item, err := CreateItem(context.Background(), database, textbook("alice@lsu.edu"), []string{"photo-1.jpg"})
	require.Error(t, err)
	assert.Nil(t, item)
	assert.Contains(t, err.Error(), "storing item image")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRejectItemRollsBackWhenNotificationFails(t *testing.T) {
	database, mock := newMockDB(t)
	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT .* FROM items WHERE id = \?`).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "title", "description", "category", "condition", "status", "donor",
			"reserved_by", "claimed_by", "approved", "created_at", "updated_at",
		}).AddRow(2, "Lamp", "Desk lamp", "Furniture", "Good", "Pending Approval", "sarah@lsu.edu",
			"", "", false, now, now))
	mock.ExpectQuery(`SELECT item_id, filename FROM item_images`).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"item_id", "filename"}))
	mock.ExpectExec(`DELETE FROM items WHERE id = \?`).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO notifications`).WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	item, n, err := RejectItem(context.Background(), database, 2, "blurry photos")
	require.Error(t, err)
	assert.Nil(t, item)
	assert.Nil(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
