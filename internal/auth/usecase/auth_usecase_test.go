package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	authdomain "blogpost-backend/internal/auth/domain"
	authdto "blogpost-backend/internal/auth/dto"
	"blogpost-backend/internal/auth/repository"
	"blogpost-backend/internal/auth/token"
	"blogpost-backend/pkg/apperror"
	"blogpost-backend/pkg/database"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type env struct {
	uc        AuthUsecase
	tokens    repository.TokenRepository
	validator *token.Validator
}

func newEnv(t *testing.T, limiter repository.LoginLimiter) *env {
	t.Helper()
	db, err := database.NewInMemory(uuid.NewString())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&authdomain.User{}, &authdomain.Token{}))

	users := repository.NewUserRepository(db)
	tokens := repository.NewTokenRepository(db)
	strategy := token.NewOpaqueStrategy()
	issuer := token.NewIssuer(tokens, strategy, 15*time.Minute, time.Hour)
	validator := token.NewValidator(tokens, users, strategy)

	return &env{
		uc:        NewAuthUsecase(users, tokens, limiter, issuer, validator),
		tokens:    tokens,
		validator: validator,
	}
}

func register(t *testing.T, e *env, email string) *AuthResult {
	t.Helper()
	res, err := e.uc.Register(context.Background(), &authdto.RegisterRequest{
		Name: "Test", Email: email, Password: "password123", PasswordConfirmation: "password123",
	})
	require.NoError(t, err)
	return res
}

func requireKind(t *testing.T, err error, kind apperror.Kind) *apperror.AppError {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, kind, appErr.Kind)
	return appErr
}

func TestRegister(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	res := register(t, e, "alice@example.com")
	assert.NotEmpty(t, res.User.ID)
	assert.NotEmpty(t, res.Tokens.Access.Value)
	assert.NotEmpty(t, res.Tokens.Refresh.Value)

	_, err := e.validator.Validate(ctx, res.Tokens.Access.Value, authdomain.AbilityAccessAPI)
	assert.NoError(t, err)

	_, err = e.uc.Register(ctx, &authdto.RegisterRequest{Name: "Again", Email: "ALICE@example.com", Password: "password123"})
	appErr := requireKind(t, err, apperror.KindValidation)
	assert.Equal(t, []string{apperror.MsgEmailTaken}, appErr.Errors)
}

func TestRegister_PasswordTooLongForBcrypt(t *testing.T) {
	e := newEnv(t, nil)
	long := strings.Repeat("p", 80)

	_, err := e.uc.Register(context.Background(), &authdto.RegisterRequest{
		Name: "Long", Email: "long@example.com", Password: long, PasswordConfirmation: long,
	})
	appErr := requireKind(t, err, apperror.KindValidation)
	assert.Equal(t, []string{apperror.MsgPasswordTooLong}, appErr.Errors)
}

func TestLogin(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	register(t, e, "bob@example.com")

	res, err := e.uc.Login(ctx, &authdto.LoginRequest{Email: "bob@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", res.User.Email)

	_, err = e.uc.Login(ctx, &authdto.LoginRequest{Email: "bob@example.com", Password: "wrong"})
	appErr := requireKind(t, err, apperror.KindValidation)
	assert.Equal(t, apperror.MsgBadCredentials, appErr.Message)

	_, err = e.uc.Login(ctx, &authdto.LoginRequest{Email: "nobody@example.com", Password: "password123"})
	requireKind(t, err, apperror.KindValidation)
}

func TestLogin_Lockout(t *testing.T) {
	mr := miniredis.RunT(t)
	limiter := repository.NewRedisLoginLimiter(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 2, time.Minute)
	e := newEnv(t, limiter)
	ctx := context.Background()
	register(t, e, "carol@example.com")

	for i := 0; i < 2; i++ {
		_, err := e.uc.Login(ctx, &authdto.LoginRequest{Email: "carol@example.com", Password: "nope"})
		requireKind(t, err, apperror.KindValidation)
	}

	_, err := e.uc.Login(ctx, &authdto.LoginRequest{Email: "carol@example.com", Password: "password123"})
	requireKind(t, err, apperror.KindTooManyRequests)

	mr.FastForward(2 * time.Minute)
	_, err = e.uc.Login(ctx, &authdto.LoginRequest{Email: "carol@example.com", Password: "password123"})
	assert.NoError(t, err)
}

func TestRefresh_RotatesEverything(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	first := register(t, e, "dave@example.com")

	session, err := e.validator.Validate(ctx, first.Tokens.Refresh.Value, authdomain.AbilityIssueAccessToken)
	require.NoError(t, err)

	second, err := e.uc.Refresh(ctx, session)
	require.NoError(t, err)
	assert.NotEqual(t, first.Tokens.Access.Value, second.Tokens.Access.Value)

	_, err = e.validator.Validate(ctx, first.Tokens.Access.Value, authdomain.AbilityAccessAPI)
	requireKind(t, err, apperror.KindUnauthenticated)
	_, err = e.validator.Validate(ctx, first.Tokens.Refresh.Value, authdomain.AbilityIssueAccessToken)
	requireKind(t, err, apperror.KindUnauthenticated)

	_, err = e.validator.Validate(ctx, second.Tokens.Access.Value, authdomain.AbilityAccessAPI)
	assert.NoError(t, err)

	_, err = e.uc.Refresh(ctx, session)
	requireKind(t, err, apperror.KindUnauthenticated)
}

func TestRefresh_ConcurrentOnlyOneWins(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	res := register(t, e, "erin@example.com")

	session, err := e.validator.Validate(ctx, res.Tokens.Refresh.Value, authdomain.AbilityIssueAccessToken)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = e.uc.Refresh(ctx, session)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range results {
		if err == nil {
			ok++
			continue
		}
		requireKind(t, err, apperror.KindUnauthenticated)
	}
	assert.Equal(t, 1, ok)

	count, err := e.tokens.CountByUserID(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestRefresh_NoSession(t *testing.T) {
	e := newEnv(t, nil)
	_, err := e.uc.Refresh(context.Background(), nil)
	requireKind(t, err, apperror.KindUnauthenticated)
}

func TestLogout(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	res := register(t, e, "frank@example.com")

	out, err := e.uc.Logout(ctx, res.Tokens.Refresh.Value, "")
	require.NoError(t, err)
	assert.True(t, out)

	count, err := e.tokens.CountByUserID(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	out, err = e.uc.Logout(ctx, res.Tokens.Refresh.Value, res.Tokens.Access.Value)
	require.NoError(t, err)
	assert.False(t, out, "second logout is already logged out")

	out, err = e.uc.Logout(ctx, "", "")
	require.NoError(t, err)
	assert.False(t, out)
}

func TestLogout_FallsBackToBearer(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	res := register(t, e, "gina@example.com")

	out, err := e.uc.Logout(ctx, "garbage", res.Tokens.Access.Value)
	require.NoError(t, err)
	assert.True(t, out)
}

func TestLogout_ExpiredTokensRevokeNothing(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	res := register(t, e, "ivan@example.com")
	e.validator.SetClock(func() time.Time { return time.Now().Add(2 * time.Hour) })

	out, err := e.uc.Logout(ctx, res.Tokens.Refresh.Value, res.Tokens.Access.Value)
	require.NoError(t, err)
	assert.False(t, out)

	count, err := e.tokens.CountByUserID(ctx, res.User.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

type failingTokenRepo struct {
	mock.Mock
	repository.TokenRepository
}

func (m *failingTokenRepo) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return int64(args.Int(0)), args.Error(1)
}

func TestLogout_RevokeFailure(t *testing.T) {
	db, err := database.NewInMemory(uuid.NewString())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&authdomain.User{}, &authdomain.Token{}))
	users := repository.NewUserRepository(db)
	tokens := repository.NewTokenRepository(db)
	strategy := token.NewOpaqueStrategy()
	issuer := token.NewIssuer(tokens, strategy, time.Minute, time.Hour)
	validator := token.NewValidator(tokens, users, strategy)

	user := &authdomain.User{Email: "h@example.com", Name: "H", Password: "x"}
	require.NoError(t, users.Create(context.Background(), user))
	pair, err := issuer.Issue(context.Background(), user)
	require.NoError(t, err)

	failing := &failingTokenRepo{TokenRepository: tokens}
	failing.On("DeleteByUserID", mock.Anything, user.ID).Return(0, errors.New("deadlock"))

	uc := NewAuthUsecase(users, failing, nil, issuer, validator)
	_, err = uc.Logout(context.Background(), pair.Refresh.Value, "")
	appErr := requireKind(t, err, apperror.KindInternal)
	assert.Equal(t, apperror.MsgRevokeFailed, appErr.Message)
	failing.AssertExpectations(t)
}
