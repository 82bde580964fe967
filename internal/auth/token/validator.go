package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	authdomain "blogpost-backend/internal/auth/domain"
	"blogpost-backend/internal/auth/repository"
	"blogpost-backend/pkg/apperror"
	"blogpost-backend/pkg/metrics"
)

// Session is what a valid token resolves to.
type Session struct {
	User  *authdomain.User
	Token *authdomain.Token
}

// Validator resolves presented plaintexts to sessions. It never writes.
type Validator struct {
	tokens   repository.TokenRepository
	users    repository.UserRepository
	strategy Strategy
	now      func() time.Time
}

func NewValidator(tokens repository.TokenRepository, users repository.UserRepository, strategy Strategy) *Validator {
	return &Validator{tokens: tokens, users: users, strategy: strategy, now: time.Now}
}

func (v *Validator) SetClock(now func() time.Time) {
	v.now = now
}

// Validate checks, in order: the token exists, it has not expired, and it
// carries ability. Missing or expired tokens are Unauthenticated, a wrong
// ability is Forbidden.
func (v *Validator) Validate(ctx context.Context, plain string, ability authdomain.Ability) (*Session, error) {
	session, err := v.validate(ctx, plain, ability, true)
	if err != nil {
		metrics.TokenValidations.WithLabelValues(validationResult(err)).Inc()
		return nil, err
	}
	metrics.TokenValidations.WithLabelValues("ok").Inc()
	return session, nil
}

// Lookup resolves a live token to its owner whatever its ability. Logout
// accepts either half of the pair through it.
func (v *Validator) Lookup(ctx context.Context, plain string) (*Session, error) {
	return v.validate(ctx, plain, "", false)
}

func (v *Validator) validate(ctx context.Context, plain string, ability authdomain.Ability, checkAbility bool) (*Session, error) {
	if plain == "" {
		return nil, apperror.Unauthenticated("")
	}
	if err := v.strategy.Verify(plain); err != nil {
		return nil, apperror.Unauthenticated("")
	}

	tok, err := v.tokens.FindByHash(ctx, Hash(plain))
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("find token: %w", err))
	}
	if tok == nil {
		return nil, apperror.Unauthenticated("")
	}

	if tok.ExpiredAt(v.now()) {
		return nil, apperror.Unauthenticated("")
	}
	if checkAbility && !tok.Can(ability) {
		return nil, apperror.Forbidden(apperror.MsgInvalidAbility)
	}

	user, err := v.users.FindByID(ctx, tok.UserID)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("find token owner: %w", err))
	}
	if user == nil {
		return nil, apperror.Unauthenticated("")
	}
	return &Session{User: user, Token: tok}, nil
}

func validationResult(err error) string {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		return "error"
	}
	switch appErr.Kind {
	case apperror.KindUnauthenticated:
		return "unauthenticated"
	case apperror.KindForbidden:
		return "forbidden"
	default:
		return "error"
	}
}
