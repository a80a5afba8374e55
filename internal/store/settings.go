package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const settingJWTSecret = "jwt_secret"

// GetSetting returns the value stored under key. ok is false when the key
// has never been set.
func GetSetting(ctx context.Context, q sqlx.QueryerContext, key string) (value string, ok bool, err error) {
	err = sqlx.GetContext(ctx, q, &value, `SELECT value FROM settings WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("querying setting %s: %w", key, err)
	}
	return value, true, nil
}

// PutSettingIfAbsent stores value under key unless key is already set.
func PutSettingIfAbsent(ctx context.Context, e sqlx.ExecerContext, key, value string) error {
	if _, err := e.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`,
		key, value,
	); err != nil {
		return fmt.Errorf("storing setting %s: %w", key, err)
	}
	return nil
}

// GetJWTSecret returns the persisted token signing secret, generating one on
// first use. Processes racing on an empty database end up with the same value.
func GetJWTSecret(ctx context.Context, db *sqlx.DB) (string, error) {
	if secret, ok, err := GetSetting(ctx, db, settingJWTSecret); err != nil || ok {
		return secret, err
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}
	if err := PutSettingIfAbsent(ctx, db, settingJWTSecret, hex.EncodeToString(buf)); err != nil {
		return "", err
	}

	secret, _, err := GetSetting(ctx, db, settingJWTSecret)
	return secret, err
}
