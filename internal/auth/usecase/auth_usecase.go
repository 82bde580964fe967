package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	authdomain "blogpost-backend/internal/auth/domain"
	authdto "blogpost-backend/internal/auth/dto"
	"blogpost-backend/internal/auth/repository"
	"blogpost-backend/internal/auth/token"
	"blogpost-backend/pkg/apperror"
	"blogpost-backend/pkg/logger"
	"blogpost-backend/pkg/metrics"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	userRepo  repository.UserRepository
	tokenRepo repository.TokenRepository
	limiter   repository.LoginLimiter
	issuer    *token.Issuer
	validator *token.Validator
	log       *zap.Logger
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(
	userRepo repository.UserRepository,
	tokenRepo repository.TokenRepository,
	limiter repository.LoginLimiter,
	issuer *token.Issuer,
	validator *token.Validator,
) AuthUsecase {
	if limiter == nil {
		limiter = repository.NewNoopLoginLimiter()
	}
	return &authUsecase{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		limiter:   limiter,
		issuer:    issuer,
		validator: validator,
		log:       logger.Named("AuthUsecase"),
	}
}

func (u *authUsecase) Register(ctx context.Context, req *authdto.RegisterRequest) (*AuthResult, error) {
	existing, err := u.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.Validation(apperror.MsgValidation, apperror.MsgEmailTaken)
	}

	hashedPassword, err := repository.HashPassword(req.Password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, apperror.Validation(apperror.MsgValidation, apperror.MsgPasswordTooLong)
	}
	if err != nil {
		return nil, err
	}

	user := &authdomain.User{
		Email:    req.Email,
		Password: hashedPassword,
		Name:     strings.TrimSpace(req.Name),
	}
	if err := u.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, apperror.Validation(apperror.MsgValidation, apperror.MsgEmailTaken)
		}
		return nil, err
	}

	pair, err := u.issuer.Issue(ctx, user)
	if err != nil {
		return nil, err
	}
	u.log.Info("user registered", zap.String("user_id", user.ID))
	return &AuthResult{User: user, Tokens: pair}, nil
}

func (u *authUsecase) Login(ctx context.Context, req *authdto.LoginRequest) (*AuthResult, error) {
	key := strings.ToLower(strings.TrimSpace(req.Email))

	blocked, err := u.limiter.Blocked(ctx, key)
	if err != nil {
		u.log.Warn("login limiter unavailable", zap.Error(err))
	} else if blocked {
		return nil, apperror.TooManyRequests()
	}

	user, err := u.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil || !repository.CheckPasswordHash(req.Password, user.Password) {
		if err := u.limiter.Fail(ctx, key); err != nil {
			u.log.Warn("failed to record login attempt", zap.Error(err))
		}
		return nil, apperror.Validation(apperror.MsgBadCredentials, apperror.MsgBadCredentials)
	}

	if err := u.limiter.Reset(ctx, key); err != nil {
		u.log.Warn("failed to reset login attempts", zap.Error(err))
	}

	pair, err := u.issuer.Issue(ctx, user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Tokens: pair}, nil
}

func (u *authUsecase) Refresh(ctx context.Context, session *token.Session) (*AuthResult, error) {
	if session == nil || session.User == nil || session.Token == nil {
		metrics.Refreshes.WithLabelValues("unauthenticated").Inc()
		return nil, apperror.Unauthenticated("")
	}

	pair, rows, err := u.issuer.Mint(session.User)
	if err != nil {
		metrics.Refreshes.WithLabelValues("error").Inc()
		return nil, err
	}

	err = u.tokenRepo.Rotate(ctx, session.User.ID, session.Token.ID, rows...)
	switch {
	case errors.Is(err, repository.ErrTokenConsumed):
		metrics.Refreshes.WithLabelValues("replayed").Inc()
		u.log.Warn("refresh token already consumed", zap.String("user_id", session.User.ID))
		return nil, apperror.Unauthenticated("")
	case err != nil:
		metrics.Refreshes.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("rotate tokens: %w", err)
	}

	token.Issued(rows)
	metrics.Refreshes.WithLabelValues("ok").Inc()
	return &AuthResult{User: session.User, Tokens: pair}, nil
}

func (u *authUsecase) Logout(ctx context.Context, refreshToken, bearerToken string) (bool, error) {
	var session *token.Session
	for _, plain := range []string{refreshToken, bearerToken} {
		if plain == "" {
			continue
		}
		s, err := u.validator.Lookup(ctx, plain)
		if err != nil {
			if apperror.IsKind(err, apperror.KindInternal) {
				return false, err
			}
			continue
		}
		session = s
		break
	}
	if session == nil {
		return false, nil
	}

	n, err := u.tokenRepo.DeleteByUserID(ctx, session.User.ID)
	if err != nil {
		return false, &apperror.AppError{Kind: apperror.KindInternal, Message: apperror.MsgRevokeFailed, Err: err}
	}
	u.log.Info("user logged out", zap.String("user_id", session.User.ID), zap.Int64("revoked", n))
	return true, nil
}
