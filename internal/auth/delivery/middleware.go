package delivery

import (
	"strings"

	authdomain "blogpost-backend/internal/auth/domain"
	"blogpost-backend/internal/auth/token"
	"blogpost-backend/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	ContextUser    = "user"
	ContextUserID  = "userID"
	ContextSession = "session"
)

// Extractor pulls the presented token out of a request.
type Extractor func(c *gin.Context) string

// BearerExtractor reads "Authorization: Bearer <token>".
func BearerExtractor(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	scheme, value, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(value)
}

// CookieExtractor reads the named cookie.
func CookieExtractor(name string) Extractor {
	return func(c *gin.Context) string {
		v, err := c.Cookie(name)
		if err != nil {
			return ""
		}
		return v
	}
}

// RouteExtractor reads the refresh cookie on the refresh route and the bearer
// header everywhere else.
func RouteExtractor(refreshPath, cookieName string) Extractor {
	cookie := CookieExtractor(cookieName)
	return func(c *gin.Context) string {
		if c.FullPath() == refreshPath {
			return cookie(c)
		}
		return BearerExtractor(c)
	}
}

// Authenticate validates the presented token for ability and stores the
// resolved user on the context.
func Authenticate(validator *token.Validator, extract Extractor, ability authdomain.Ability) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := validator.Validate(c.Request.Context(), extract(c), ability)
		if err != nil {
			response.Abort(c, err)
			return
		}
		setSession(c, session)
		c.Next()
	}
}

func setSession(c *gin.Context, session *token.Session) {
	c.Set(ContextSession, session)
	c.Set(ContextUser, session.User)
	c.Set(ContextUserID, session.User.ID)
}

// AuthMiddleware guards ordinary API routes: bearer token with the access ability.
func AuthMiddleware(validator *token.Validator) gin.HandlerFunc {
	return Authenticate(validator, BearerExtractor, authdomain.AbilityAccessAPI)
}

func CurrentUser(c *gin.Context) *authdomain.User {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil
	}
	user, _ := v.(*authdomain.User)
	return user
}

func CurrentSession(c *gin.Context) *token.Session {
	v, ok := c.Get(ContextSession)
	if !ok {
		return nil
	}
	session, _ := v.(*token.Session)
	return session
}
