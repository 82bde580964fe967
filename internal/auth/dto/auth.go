package dto

import authdomain "blogpost-backend/internal/auth/domain"

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,max=72"`
}

type RegisterRequest struct {
	Name                 string `json:"name" binding:"required,max=255"`
	Email                string `json:"email" binding:"required,email,max=255"`
	Password             string `json:"password" binding:"required,min=8,max=72"`
	PasswordConfirmation string `json:"password_confirmation" binding:"required,eqfield=Password"`
}

// TokenResponse is the body returned whenever a token pair is issued.
// The refresh token travels only in the cookie.
type TokenResponse struct {
	User        *authdomain.User `json:"user,omitempty"`
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type"`
	ExpiresIn   int64            `json:"expires_in"`
}

type MeResponse struct {
	User *authdomain.User `json:"user"`
}
