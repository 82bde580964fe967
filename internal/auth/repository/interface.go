package repository

import (
	"context"
	"errors"
	"time"

	authdomain "blogpost-backend/internal/auth/domain"
)

// ErrTokenConsumed is returned by Rotate when the presented token was already
// rotated or revoked by a concurrent request.
var ErrTokenConsumed = errors.New("token already consumed")

// ErrEmailTaken is returned by Create when the email is already registered.
var ErrEmailTaken = errors.New("email already registered")

// UserRepository defines data access for users
type UserRepository interface {
	Create(ctx context.Context, user *authdomain.User) error
	FindByEmail(ctx context.Context, email string) (*authdomain.User, error)
	FindByID(ctx context.Context, id string) (*authdomain.User, error)
}

// TokenRepository defines data access for issued tokens
type TokenRepository interface {
	// Create inserts tokens; existing rows are never touched.
	Create(ctx context.Context, tokens ...*authdomain.Token) error

	// FindByHash returns nil, nil when no row matches.
	FindByHash(ctx context.Context, hash string) (*authdomain.Token, error)

	// DeleteByUserID revokes every token of the user and returns how many were removed.
	DeleteByUserID(ctx context.Context, userID string) (int64, error)

	// Rotate atomically consumes the token consumedID, revokes all of the user's
	// remaining tokens and stores fresh. It fails with ErrTokenConsumed if the
	// consumed token no longer exists.
	Rotate(ctx context.Context, userID, consumedID string, fresh ...*authdomain.Token) error

	CountByUserID(ctx context.Context, userID string) (int64, error)

	// DeleteExpired removes tokens whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// LoginLimiter tracks failed login attempts per key.
type LoginLimiter interface {
	Blocked(ctx context.Context, key string) (bool, error)
	Fail(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}
