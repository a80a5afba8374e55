package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/swapshop/swapshop/internal/model"
	"github.com/swapshop/swapshop/internal/store"
)

// seedUser is one entry of a users JSON file.
type seedUser struct {
	Email         string             `json:"email"`
	Name          string             `json:"name"`
	Password      string             `json:"password"`
	Role          string             `json:"role"`
	Notifications []seedNotification `json:"notifications"`
}

type seedNotification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	ItemID    int64     `json:"itemId"`
	ItemName  string    `json:"itemName"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// ImportFile upserts the users listed in a JSON array. Plaintext passwords
// are hashed; values that already are bcrypt hashes are stored as given.
// The file is applied in a single transaction: one bad entry leaves the
// directory untouched. Returns the number of users written.
func (d *Directory) ImportFile(ctx context.Context, r io.Reader) (int, error) {
	var users []seedUser
	if err := json.NewDecoder(r).Decode(&users); err != nil {
		return 0, fmt.Errorf("decoding users file: %w", err)
	}

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning users import: %w", err)
	}
	defer tx.Rollback()

	for i, su := range users {
		if err := importUser(ctx, tx, i, su); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing users import: %w", err)
	}

	d.logger.Info("users imported", zap.Int("count", len(users)))
	return len(users), nil
}

func importUser(ctx context.Context, tx *sqlx.Tx, i int, su seedUser) error {
	email := model.NormalizeEmail(su.Email)
	if email == "" || su.Password == "" {
		return fmt.Errorf("user %d: email and password required", i+1)
	}
	role := su.Role
	if role == "" {
		role = model.RoleUser
	}
	if !model.ValidRole(role) {
		return fmt.Errorf("user %s: %w %q", email, ErrInvalidRole, role)
	}

	hash := su.Password
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		b, err := bcrypt.GenerateFromPassword([]byte(su.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hashing password for %s: %w", email, err)
		}
		hash = string(b)
	}

	if _, err := store.UpsertUser(ctx, tx, email, su.Name, hash, role); err != nil {
		return err
	}

	for _, sn := range su.Notifications {
		n := &model.Notification{
			ID:        sn.ID,
			UserEmail: email,
			Type:      sn.Type,
			ItemID:    sn.ItemID,
			ItemName:  sn.ItemName,
			Message:   sn.Message,
			Read:      sn.Read,
			CreatedAt: sn.Timestamp.UTC(),
		}
		if n.Type == "" {
			n.Type = model.NotificationItemRejected
		}
		add := store.ImportNotification
		if n.ID == "" {
			add = store.AddNotification
		}
		if err := add(ctx, tx, n); err != nil {
			return err
		}
	}
	return nil
}
