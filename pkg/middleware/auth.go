package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
	"github.com/weiawesome/wes-io-chat/pkg/response"
)

const (
	UserIDKey     = "user_id"
	AdminKey      = "admin"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// TokenValidator validates signed tokens of a given kind.
type TokenValidator interface {
	Validate(token string, kind jwt.Kind) (*jwt.Claims, error)
}

// AuthMiddleware validates JWT tokens carried in cookies.
type AuthMiddleware struct {
	tokens      TokenValidator
	cookieName  string
	adminCookie string
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(tokens TokenValidator, cookieName, adminCookie string) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:      tokens,
		cookieName:  cookieName,
		adminCookie: adminCookie,
	}
}

// RequireAuth returns a Gin middleware that validates the session cookie, falling
// back to a bearer header for non-browser clients.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c, m.cookieName)
		if token == "" {
			response.Unauthorized(c, "Please login to access this route")
			c.Abort()
			return
		}

		claims, err := m.tokens.Validate(token, jwt.KindSession)
		if err != nil {
			response.Unauthorized(c, "Invalid or expired session")
			c.Abort()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Next()
	}
}

// RequireAdmin returns a Gin middleware that validates the admin cookie.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(m.adminCookie)
		if err != nil || token == "" {
			response.Unauthorized(c, "Only admin can access this route")
			c.Abort()
			return
		}

		if _, err := m.tokens.Validate(token, jwt.KindAdmin); err != nil {
			response.Unauthorized(c, "Only admin can access this route")
			c.Abort()
			return
		}

		c.Set(AdminKey, true)
		c.Next()
	}
}

// TokenFromRequest reads the named cookie, then the Authorization header.
func TokenFromRequest(c *gin.Context, cookieName string) string {
	if token, err := c.Cookie(cookieName); err == nil && token != "" {
		return token
	}
	authHeader := c.GetHeader(AuthHeaderKey)
	if strings.HasPrefix(authHeader, BearerPrefix) {
		return strings.TrimPrefix(authHeader, BearerPrefix)
	}
	return ""
}

// GetUserID extracts user ID from Gin context.
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
