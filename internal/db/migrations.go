package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// migrations is a list of SQL statements applied in order after schema creation.
// The applied count is tracked in PRAGMA user_version. Append new migrations at the end.
var migrations = []string{
	// Migration 1: notifications are listed newest first per user.
	`CREATE INDEX IF NOT EXISTS idx_notifications_user_recent
	     ON notifications(user_email, created_at DESC)`,
	// Migration 2: claimed items are looked up per claimant on /myitems.
	`CREATE INDEX IF NOT EXISTS idx_items_claimed_by
	     ON items(claimed_by) WHERE claimed_by <> ''`,
}

// Migrate applies the migrations that have not run yet.
func Migrate(db *sqlx.DB) error {
	var version int
	if err := db.Get(&version, `PRAGMA user_version`); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
		if _, err := db.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, i+1)); err != nil {
			return fmt.Errorf("recording migration %d: %w", i+1, err)
		}
	}

	return nil
}
