package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	authdomain "blogpost-backend/internal/auth/domain"
	"blogpost-backend/pkg/database"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewInMemory(uuid.NewString())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&authdomain.User{}, &authdomain.Token{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newToken(userID string, kind authdomain.TokenKind, expiresAt time.Time) *authdomain.Token {
	return &authdomain.Token{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      kind,
		Hash:      uuid.NewString(),
		Ability:   kind.Ability(),
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(setupDB(t))

	user := &authdomain.User{Email: "  Alice@Example.com ", Name: "Alice", Password: "hash"}
	require.NoError(t, repo.Create(ctx, user))
	assert.NotEmpty(t, user.ID)

	found, err := repo.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)

	byID, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", byID.Name)

	missing, err := repo.FindByID(ctx, uuid.NewString())
	assert.NoError(t, err)
	assert.Nil(t, missing)

	err = repo.Create(ctx, &authdomain.User{Email: "alice@example.com", Name: "Dup", Password: "x"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("s3cret-pass", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
}

func TestTokenRepository_CreateFindDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewTokenRepository(setupDB(t))
	exp := time.Now().Add(time.Hour)

	a := newToken("u1", authdomain.KindAccess, exp)
	r := newToken("u1", authdomain.KindRefresh, exp)
	other := newToken("u2", authdomain.KindAccess, exp)
	require.NoError(t, repo.Create(ctx, a, r, other))

	found, err := repo.FindByHash(ctx, a.Hash)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, a.ID, found.ID)
	assert.Equal(t, authdomain.AbilityAccessAPI, found.Ability)

	none, err := repo.FindByHash(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, none)

	n, err := repo.DeleteByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	count, err := repo.CountByUserID(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestTokenRepository_Rotate(t *testing.T) {
	ctx := context.Background()
	repo := NewTokenRepository(setupDB(t))
	exp := time.Now().Add(time.Hour)

	access := newToken("u1", authdomain.KindAccess, exp)
	refresh := newToken("u1", authdomain.KindRefresh, exp)
	require.NoError(t, repo.Create(ctx, access, refresh))

	fresh := []*authdomain.Token{newToken("u1", authdomain.KindAccess, exp), newToken("u1", authdomain.KindRefresh, exp)}
	require.NoError(t, repo.Rotate(ctx, "u1", refresh.ID, fresh...))

	old, err := repo.FindByHash(ctx, access.Hash)
	require.NoError(t, err)
	assert.Nil(t, old, "old access token must be revoked")

	count, err := repo.CountByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	err = repo.Rotate(ctx, "u1", refresh.ID, newToken("u1", authdomain.KindAccess, exp))
	assert.ErrorIs(t, err, ErrTokenConsumed)

	count, err = repo.CountByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "failed rotation leaves state untouched")
}

func TestTokenRepository_RotateConcurrent(t *testing.T) {
	ctx := context.Background()
	repo := NewTokenRepository(setupDB(t))
	exp := time.Now().Add(time.Hour)

	refresh := newToken("u1", authdomain.KindRefresh, exp)
	require.NoError(t, repo.Create(ctx, refresh))

	const workers = 5
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.Rotate(ctx, "u1", refresh.ID,
				newToken("u1", authdomain.KindAccess, exp),
				newToken("u1", authdomain.KindRefresh, exp),
			)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrTokenConsumed)
	}
	assert.Equal(t, 1, succeeded)

	count, err := repo.CountByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "exactly one fresh pair survives")
}

func TestTokenRepository_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	repo := NewTokenRepository(setupDB(t))
	now := time.Now()

	require.NoError(t, repo.Create(ctx,
		newToken("u1", authdomain.KindAccess, now.Add(-time.Minute)),
		newToken("u1", authdomain.KindAccess, now),
		newToken("u1", authdomain.KindRefresh, now.Add(time.Hour)),
	))

	n, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestRedisLoginLimiter(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := NewRedisLoginLimiter(client, 3, time.Minute)

	for i := 0; i < 2; i++ {
		require.NoError(t, limiter.Fail(ctx, "bob@example.com"))
	}
	blocked, err := limiter.Blocked(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, limiter.Fail(ctx, "bob@example.com"))
	blocked, err = limiter.Blocked(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.True(t, blocked)

	mr.FastForward(time.Minute + time.Second)
	blocked, err = limiter.Blocked(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.False(t, blocked, "lockout expires")

	require.NoError(t, limiter.Fail(ctx, "bob@example.com"))
	require.NoError(t, limiter.Reset(ctx, "bob@example.com"))
	assert.False(t, mr.Exists("login:attempts:bob@example.com"))
}

func TestNoopLoginLimiter(t *testing.T) {
	l := NewNoopLoginLimiter()
	ctx := context.Background()
	require.NoError(t, l.Fail(ctx, "x"))
	blocked, err := l.Blocked(ctx, "x")
	require.NoError(t, err)
	assert.False(t, blocked)
}
