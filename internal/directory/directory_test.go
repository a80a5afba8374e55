package directory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swapshop/swapshop/internal/db"
	"github.com/swapshop/swapshop/internal/model"
)

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()
	return New(db.NewTestDB(t), ".edu", nil)
}

func TestAuthenticate(t *testing.T) {
	d := newTestDirectory(t)
	ctx := context.Background()

	_, err := d.CreateUser(ctx, "Alice@LSU.edu", "Alice", "password123", model.RoleUser)
	require.NoError(t, err)

	user, err := d.Authenticate(ctx, "alice@lsu.edu", "password123")
	require.NoError(t, err)
	assert.Equal(t, "alice@lsu.edu", user.Email)
	assert.Equal(t, "Alice", user.Name)

	_, err = d.Authenticate(ctx, "alice@lsu.edu", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = d.Authenticate(ctx, "nobody@lsu.edu", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = d.Authenticate(ctx, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateRequiresSuffix(t *testing.T) {
	d := newTestDirectory(t)
	ctx := context.Background()

	// Imported accounts bypass the suffix check on creation but not on login.
	_, err := d.ImportFile(ctx, strings.NewReader(
		`[{"email":"bob@gmail.com","name":"Bob","password":"password123","role":"user"}]`))
	require.NoError(t, err)

	_, err = d.Authenticate(ctx, "bob@gmail.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateUserValidation(t *testing.T) {
	d := newTestDirectory(t)
	ctx := context.Background()

	_, err := d.CreateUser(ctx, "carlos@gmail.com", "Carlos", "password123", "")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = d.CreateUser(ctx, "carlos@lsu.edu", "Carlos", "password123", "superuser")
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = d.CreateUser(ctx, "carlos@lsu.edu", "Carlos", "short", "")
	assert.Error(t, err)

	user, err := d.CreateUser(ctx, "carlos@lsu.edu", "Carlos", "password123", "")
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, user.Role)

	_, err = d.CreateUser(ctx, "CARLOS@lsu.edu", "Carlos", "password123", "")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestChangePassword(t *testing.T) {
	d := newTestDirectory(t)
	ctx := context.Background()

	user, err := d.CreateUser(ctx, "sarah@lsu.edu", "Sarah", "password123", "")
	require.NoError(t, err)

	assert.ErrorIs(t, d.ChangePassword(ctx, user.ID, "nope", "newpassword1"), ErrInvalidCredentials)
	assert.Error(t, d.ChangePassword(ctx, user.ID, "password123", "short"))
	require.NoError(t, d.ChangePassword(ctx, user.ID, "password123", "newpassword1"))

	_, err = d.Authenticate(ctx, "sarah@lsu.edu", "newpassword1")
	assert.NoError(t, err)
	_, err = d.Authenticate(ctx, "sarah@lsu.edu", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestEnsureAdmin(t *testing.T) {
	d := newTestDirectory(t)
	ctx := context.Background()

	password, err := d.EnsureAdmin(ctx, "admin.mike@lsu.edu")
	require.NoError(t, err)
	require.Len(t, password, 16)

	user, err := d.Authenticate(ctx, "admin.mike@lsu.edu", password)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, user.Role)

	again, err := d.EnsureAdmin(ctx, "admin.mike@lsu.edu")
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestNotifications(t *testing.T) {
	d := newTestDirectory(t)
	ctx := context.Background()

	n, err := d.AppendNotification(ctx, &model.Notification{
		UserEmail: "Sarah@lsu.edu",
		Type:      model.NotificationItemRejected,
		ItemID:    3,
		ItemName:  "Mini Fridge",
		Message:   "rejected",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.CreatedAt.IsZero())

	ns, err := d.Notifications(ctx, "sarah@lsu.edu")
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, "Mini Fridge", ns[0].ItemName)

	count, err := d.MarkNotificationsRead(ctx, "SARAH@lsu.edu")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
