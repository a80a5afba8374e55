package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/swapshop/swapshop/internal/model"
	"github.com/swapshop/swapshop/internal/store"
)

// ErrRevoked is returned for tokens invalidated by logout.
var ErrRevoked = errors.New("token has been revoked")

// CookieName is the session cookie shared by the web and API routers.
const CookieName = "token"

// Sessions issues and resolves signed session tokens. Revocations are kept
// in the database so logout survives restarts.
type Sessions struct {
	DB     *sqlx.DB
	Secret string
	TTL    time.Duration
}

// Issue returns a signed token for user.
func (s *Sessions) Issue(user *model.User) (string, error) {
	return GenerateToken(s.Secret, user.ID, user.Email, user.Role, s.TTL)
}

// Resolve validates a token and checks it has not been revoked.
func (s *Sessions) Resolve(ctx context.Context, token string) (*Claims, error) {
	claims, err := ValidateToken(s.Secret, token)
	if err != nil {
		return nil, err
	}
	if claims.ID != "" {
		revoked, err := store.IsTokenRevoked(ctx, s.DB, claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrRevoked
		}
	}
	return claims, nil
}

// Revoke invalidates the token described by claims until it would expire.
func (s *Sessions) Revoke(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ID == "" {
		return nil
	}
	expiresAt := time.Now().Add(s.lifetime())
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return store.RevokeToken(ctx, s.DB, claims.ID, expiresAt)
}

// MaxAge is the cookie lifetime in seconds.
func (s *Sessions) MaxAge() int {
	return int(s.lifetime() / time.Second)
}

func (s *Sessions) lifetime() time.Duration {
	if s.TTL <= 0 {
		return TokenExpiry
	}
	return s.TTL
}
