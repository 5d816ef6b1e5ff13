package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/peerlearn/peerlearn/pkg/jwt"
	"github.com/peerlearn/peerlearn/pkg/log"
	"github.com/peerlearn/peerlearn/pkg/response"
)

const (
	UserIDKey     = "user_id"
	EmailKey      = "email"
	UsernameKey   = "username"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
	TokenQueryKey = "access_token"
)

// TokenValidator validates an access token. *jwt.Manager satisfies it.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*jwt.Claims, error)
}

// AuthMiddleware validates JWT access tokens issued by this service.
type AuthMiddleware struct {
	validator TokenValidator
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

// RequireAuth returns a Gin middleware that validates JWT tokens.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := extractToken(c)
		if !ok {
			c.Abort()
			return
		}

		claims, err := m.validator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			msg := "failed to validate token"
			switch {
			case errors.Is(err, jwt.ErrExpiredToken), errors.Is(err, jwt.ErrRevokedToken), errors.Is(err, jwt.ErrInvalidToken):
				msg = err.Error()
			}
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}

		if claims.Type != jwt.TokenTypeAccess {
			response.Unauthorized(c, "access token required")
			c.Abort()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(EmailKey, claims.Email)
		c.Set(UsernameKey, claims.Username)

		ctx := c.Request.Context()
		l := log.Ctx(ctx).With().Str(log.FieldUserID, claims.UserID).Logger()
		c.Request = c.Request.WithContext(log.WithLogger(ctx, l))

		c.Next()
	}
}

// extractToken reads the bearer token from the Authorization header, or from
// the access_token query parameter on WebSocket upgrades where browsers cannot
// set headers.
func extractToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader(AuthHeaderKey)
	if authHeader == "" {
		if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
			if token := c.Query(TokenQueryKey); token != "" {
				return token, true
			}
		}
		response.Unauthorized(c, "missing authorization header")
		return "", false
	}

	if !strings.HasPrefix(authHeader, BearerPrefix) {
		response.Unauthorized(c, "invalid authorization format")
		return "", false
	}

	return strings.TrimPrefix(authHeader, BearerPrefix), true
}

// GetUserID extracts user ID from Gin context.
func GetUserID(c *gin.Context) string {
	if id, exists := c.Get(UserIDKey); exists {
		return id.(string)
	}
	return ""
}

// GetUsername extracts username from Gin context.
func GetUsername(c *gin.Context) string {
	if username, exists := c.Get(UsernameKey); exists {
		return username.(string)
	}
	return ""
}

// GetEmail extracts email from Gin context.
func GetEmail(c *gin.Context) string {
	if email, exists := c.Get(EmailKey); exists {
		return email.(string)
	}
	return ""
}
