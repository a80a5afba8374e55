package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swapshop/swapshop/internal/db"
	"github.com/swapshop/swapshop/internal/model"
)

func TestSessionsIssueResolveRevoke(t *testing.T) {
	s := &Sessions{DB: db.NewTestDB(t), Secret: "test-secret", TTL: time.Hour}
	ctx := context.Background()
	user := &model.User{ID: 3, Email: "carlos@lsu.edu", Role: model.RoleUser}

	token, err := s.Issue(user)
	require.NoError(t, err)

	claims, err := s.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "carlos@lsu.edu", claims.Email)
	assert.Equal(t, int64(3), claims.UserID)

	require.NoError(t, s.Revoke(ctx, claims))
	_, err = s.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrRevoked)

	other, err := s.Issue(user)
	require.NoError(t, err)
	_, err = s.Resolve(ctx, other)
	assert.NoError(t, err, "revoking one session must not affect another")
}

func TestSessionsRejectForeignToken(t *testing.T) {
	s := &Sessions{DB: db.NewTestDB(t), Secret: "test-secret"}
	token, err := GenerateToken("other-secret", 1, "alice@lsu.edu", model.RoleUser, 0)
	require.NoError(t, err)

	_, err = s.Resolve(context.Background(), token)
	assert.Error(t, err)
	assert.Equal(t, int(TokenExpiry/time.Second), s.MaxAge())
}
