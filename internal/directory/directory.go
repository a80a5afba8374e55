// Package directory manages user accounts and their notifications.
package directory

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/swapshop/swapshop/internal/model"
	"github.com/swapshop/swapshop/internal/store"
)

var (
	// ErrInvalidCredentials is returned for any failed login.
	ErrInvalidCredentials = errors.New("invalid .edu email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("email must be an institutional address")
	ErrInvalidRole        = errors.New("invalid role")
)

// Directory resolves and manages accounts.
type Directory struct {
	db     *sqlx.DB
	suffix string
	logger *zap.Logger
}

// New returns a directory accepting emails that end with suffix.
func New(db *sqlx.DB, suffix string, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{db: db, suffix: suffix, logger: logger}
}

// Suffix returns the required email suffix.
func (d *Directory) Suffix() string {
	return d.suffix
}

// Authenticate checks an email and password pair.
func (d *Directory) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	email = model.NormalizeEmail(email)
	if email == "" || password == "" || !model.HasSuffix(email, d.suffix) {
		return nil, ErrInvalidCredentials
	}

	user, err := store.GetUserByEmail(ctx, d.db, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		// Keep timing similar to a wrong password.
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		d.logger.Warn("login failed", zap.String("email", email))
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// dummyHash is compared against when the user does not exist.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("swapshop-no-such-user"), bcrypt.DefaultCost)

// FindByEmail returns the user with email, or nil.
func (d *Directory) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return store.GetUserByEmail(ctx, d.db, model.NormalizeEmail(email))
}

// Get returns the user with id, or nil.
func (d *Directory) Get(ctx context.Context, id int64) (*model.User, error) {
	return store.GetUser(ctx, d.db, id)
}

// List returns all users.
func (d *Directory) List(ctx context.Context) ([]model.User, error) {
	users, err := store.ListUsers(ctx, d.db)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

// CreateUser validates and stores a new account.
func (d *Directory) CreateUser(ctx context.Context, email, name, password, role string) (*model.User, error) {
	email = model.NormalizeEmail(email)
	if !model.HasSuffix(email, d.suffix) {
		return nil, ErrInvalidEmail
	}
	if role == "" {
		role = model.RoleUser
	}
	if !model.ValidRole(role) {
		return nil, ErrInvalidRole
	}
	if err := model.ValidatePassword(password); err != nil {
		return nil, err
	}

	existing, err := store.GetUserByEmail(ctx, d.db, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	user, err := store.CreateUser(ctx, d.db, email, name, string(hash), role)
	if err != nil {
		return nil, err
	}

	d.logger.Info("user created", zap.String("email", email), zap.String("role", role))
	return user, nil
}

// ChangePassword replaces a user's password after checking the current one.
func (d *Directory) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	user, err := store.GetUser(ctx, d.db, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}
	if err := model.ValidatePassword(next); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if err := store.UpdateUserPassword(ctx, d.db, userID, string(hash)); err != nil {
		return err
	}

	d.logger.Info("user changed own password", zap.String("email", user.Email))
	return nil
}

// EnsureAdmin creates an admin account with a random password when the
// directory has no users yet. The password is returned only on creation.
func (d *Directory) EnsureAdmin(ctx context.Context, email string) (string, error) {
	n, err := store.CountUsers(ctx, d.db)
	if err != nil {
		return "", err
	}
	if n > 0 || email == "" {
		return "", nil
	}

	password, err := generatePassword(16)
	if err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}
	if _, err := d.CreateUser(ctx, email, "Administrator", password, model.RoleAdmin); err != nil {
		return "", fmt.Errorf("creating admin user: %w", err)
	}
	return password, nil
}

// AppendNotification stores a notification for n.UserEmail.
func (d *Directory) AppendNotification(ctx context.Context, n *model.Notification) (*model.Notification, error) {
	n.UserEmail = model.NormalizeEmail(n.UserEmail)
	if err := store.AddNotification(ctx, d.db, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Notifications lists a user's notifications, newest first.
func (d *Directory) Notifications(ctx context.Context, email string) ([]model.Notification, error) {
	return store.ListNotifications(ctx, d.db, model.NormalizeEmail(email))
}

// MarkNotificationsRead flags all of a user's notifications as read.
func (d *Directory) MarkNotificationsRead(ctx context.Context, email string) (int64, error) {
	return store.MarkNotificationsRead(ctx, d.db, model.NormalizeEmail(email))
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
