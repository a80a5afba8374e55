package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/swapshop/swapshop/internal/model"
)

// AddNotification appends a notification. ID and CreatedAt are filled in
// when empty.
func AddNotification(ctx context.Context, db sqlx.ExecerContext, n *model.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_email, type, item_id, item_name, message, read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserEmail, n.Type, n.ItemID, n.ItemName, n.Message, n.Read, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("adding notification: %w", err)
	}
	return nil
}

// ListNotifications returns a user's notifications, newest first.
func ListNotifications(ctx context.Context, db *sqlx.DB, email string) ([]model.Notification, error) {
	ns := []model.Notification{}
	err := db.SelectContext(ctx, &ns,
		`SELECT id, user_email, type, item_id, item_name, message, read, created_at
		 FROM notifications WHERE user_email = ? ORDER BY created_at DESC, rowid DESC`, email)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return ns, nil
}

// MarkNotificationsRead flags all of a user's notifications as read.
func MarkNotificationsRead(ctx context.Context, db *sqlx.DB, email string) (int64, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE user_email = ? AND read = 0`, email)
	if err != nil {
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows: %w", err)
	}
	return n, nil
}

// ImportNotification stores a notification with a known ID. Rows already
// present are left untouched.
func ImportNotification(ctx context.Context, db sqlx.ExecerContext, n *model.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_email, type, item_id, item_name, message, read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		n.ID, n.UserEmail, n.Type, n.ItemID, n.ItemName, n.Message, n.Read, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("importing notification: %w", err)
	}
	return nil
}
