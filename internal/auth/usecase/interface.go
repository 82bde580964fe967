package usecase

import (
	"context"

	authdomain "blogpost-backend/internal/auth/domain"
	authdto "blogpost-backend/internal/auth/dto"
	"blogpost-backend/internal/auth/token"
)

// AuthResult is returned whenever a new token pair is issued.
type AuthResult struct {
	User   *authdomain.User
	Tokens *token.Pair
}

// AuthUsecase defines the session lifecycle: register, login, refresh and logout.
type AuthUsecase interface {
	Register(ctx context.Context, req *authdto.RegisterRequest) (*AuthResult, error)
	Login(ctx context.Context, req *authdto.LoginRequest) (*AuthResult, error)

	// Refresh consumes a validated refresh session, revokes every token of the
	// user and issues a new pair in one transaction.
	Refresh(ctx context.Context, session *token.Session) (*AuthResult, error)

	// Logout revokes every token of the user owning refreshToken, or failing
	// that bearerToken. It reports false when neither resolves to a user.
	Logout(ctx context.Context, refreshToken, bearerToken string) (bool, error)
}
