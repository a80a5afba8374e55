package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swapshop/swapshop/internal/db"
	"github.com/swapshop/swapshop/internal/model"
)

func TestNotificationsNewestFirst(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	old := &model.Notification{
		UserEmail: "sarah@lsu.edu", Type: model.NotificationItemRejected,
		ItemID: 1, ItemName: "Lamp", Message: "first",
		CreatedAt: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	}
	recent := &model.Notification{
		UserEmail: "sarah@lsu.edu", Type: model.NotificationItemRejected,
		ItemID: 2, ItemName: "Chair", Message: "second",
	}
	other := &model.Notification{
		UserEmail: "james@lsu.edu", Type: model.NotificationItemRejected,
		ItemID: 3, ItemName: "Desk", Message: "elsewhere",
	}
	for _, n := range []*model.Notification{old, recent, other} {
		require.NoError(t, AddNotification(ctx, database, n))
		assert.NotEmpty(t, n.ID)
	}

	ns, err := ListNotifications(ctx, database, "sarah@lsu.edu")
	require.NoError(t, err)
	require.Len(t, ns, 2)
	assert.Equal(t, "second", ns[0].Message)
	assert.Equal(t, "first", ns[1].Message)
	assert.True(t, ns[1].CreatedAt.Equal(old.CreatedAt))
	assert.False(t, ns[0].Read)

	n, err := MarkNotificationsRead(ctx, database, "sarah@lsu.edu")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ns, err = ListNotifications(ctx, database, "sarah@lsu.edu")
	require.NoError(t, err)
	for _, got := range ns {
		assert.True(t, got.Read)
	}

	ns, err = ListNotifications(ctx, database, "james@lsu.edu")
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.False(t, ns[0].Read)
}

func TestListNotificationsEmpty(t *testing.T) {
	database := db.NewTestDB(t)

	ns, err := ListNotifications(context.Background(), database, "nobody@lsu.edu")
	require.NoError(t, err)
	assert.Empty(t, ns)
}
