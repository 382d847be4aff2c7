package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tidings-space/core/internal/models"
	"github.com/tidings-space/core/internal/pkg/jwt"
	"github.com/tidings-space/core/internal/pkg/response"
	"gorm.io/gorm"
)

const ContextKeyUserID = "user_id"

// Auth returns a middleware that enforces JWT authentication and that the
// token's user still exists and is active.
func Auth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := ValidateToken(db, extractToken(c))
		if err != nil {
			response.Unauthorized(c)
			return
		}
		c.Set(ContextKeyUserID, userID)
		c.Next()
	}
}

// OptionalAuth sets the user ID if a valid token is present, but does not
// block the request.
func OptionalAuth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, err := ValidateToken(db, extractToken(c)); err == nil && userID != "" {
			c.Set(ContextKeyUserID, userID)
		}
		c.Next()
	}
}

// ValidateToken validates a JWT and returns the authenticated user id.
func ValidateToken(db *gorm.DB, rawToken string) (string, error) {
	token := NormalizeToken(rawToken)
	if token == "" {
		return "", errors.New("token is required")
	}
	claims, err := jwt.Parse(token)
	if err != nil {
		return "", err
	}
	var user models.UserModel
	if err := db.Select("id", "is_active").First(&user, "id = ?", claims.UserID).Error; err != nil {
		return "", errors.New("user not found")
	}
	if !user.IsActive {
		return "", errors.New("user deactivated")
	}
	return claims.UserID, nil
}

// CurrentUserID extracts the authenticated user ID from context.
func CurrentUserID(c *gin.Context) string {
	if v, ok := c.Get(ContextKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// NormalizeToken strips the optional "Bearer " prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	return strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
}

func extractToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		return h
	}
	return c.Query("token")
}
