package delivery

import (
	"net/http"
	"time"

	authdomain "blogpost-backend/internal/auth/domain"
	authdto "blogpost-backend/internal/auth/dto"
	"blogpost-backend/internal/auth/token"
	"blogpost-backend/internal/auth/usecase"
	"blogpost-backend/pkg/apperror"
	"blogpost-backend/pkg/response"

	"github.com/gin-gonic/gin"
)

// CookieConfig describes the refresh token cookie.
type CookieConfig struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

// AuthHandler handles auth HTTP requests
type AuthHandler struct {
	authUsecase usecase.AuthUsecase
	cookie      CookieConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authUsecase usecase.AuthUsecase, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{authUsecase: authUsecase, cookie: cookie}
}

// Register creates an account and signs it in
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req authdto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	res, err := h.authUsecase.Register(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setRefreshCookie(c, res.Tokens.Refresh.Value)
	response.Created(c, "User registered successfully.", h.tokenResponse(res, true))
}

// Login
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req authdto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	res, err := h.authUsecase.Login(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setRefreshCookie(c, res.Tokens.Refresh.Value)
	response.Success(c, "User logged in successfully.", h.tokenResponse(res, true))
}

// RefreshGuard authenticates the refresh route. A cookie that no longer
// resolves to a live token is cleared along with the 401.
func (h *AuthHandler) RefreshGuard(validator *token.Validator, extract Extractor) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := validator.Validate(c.Request.Context(), extract(c), authdomain.AbilityIssueAccessToken)
		if err != nil {
			if apperror.IsKind(err, apperror.KindUnauthenticated) {
				h.clearRefreshCookie(c)
			}
			response.Abort(c, err)
			return
		}
		setSession(c, session)
		c.Next()
	}
}

// RefreshToken exchanges the refresh cookie for a new pair. Runs behind
// Authenticate with the refresh ability.
// POST /api/auth/refresh-token
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	res, err := h.authUsecase.Refresh(c.Request.Context(), CurrentSession(c))
	if err != nil {
		if apperror.IsKind(err, apperror.KindUnauthenticated) {
			h.clearRefreshCookie(c)
		}
		response.Error(c, err)
		return
	}

	h.setRefreshCookie(c, res.Tokens.Refresh.Value)
	response.Success(c, "Token refreshed successfully.", h.tokenResponse(res, false))
}

// Logout revokes every token of the caller. Works with the refresh cookie or
// a bearer token and is idempotent.
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	refresh, _ := c.Cookie(h.cookie.Name)

	loggedOut, err := h.authUsecase.Logout(c.Request.Context(), refresh, BearerExtractor(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.clearRefreshCookie(c)
	if !loggedOut {
		response.Success(c, "You are already logged out.", nil)
		return
	}
	response.Success(c, "You are successfully logged out.", nil)
}

// Me returns the authenticated user
// GET|POST /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		response.Error(c, apperror.Unauthenticated(""))
		return
	}
	response.Success(c, "", authdto.MeResponse{User: user})
}

func (h *AuthHandler) tokenResponse(res *usecase.AuthResult, withUser bool) authdto.TokenResponse {
	out := authdto.TokenResponse{
		AccessToken: res.Tokens.Access.Value,
		TokenType:   "Bearer",
		ExpiresIn:   int64(res.Tokens.Access.ExpiresIn.Seconds()),
	}
	if withUser {
		out.User = res.User
	}
	return out
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, value string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, value, int(h.cookie.TTL.Seconds()), "/", "", h.cookie.Secure, true)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
}
