package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"github.com/ls1intum/thesis-management-sub000/internal/utils"
)

const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
	ContextGroups   = "groups"
	ContextActor    = "actor"
)

// ActorLoader resolves the user behind a token, with groups and research group loaded
type ActorLoader func(id uuid.UUID) (*models.User, error)

// AuthRequired checks the bearer token and resolves the acting user once per request
func AuthRequired(load ActorLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		claims, ok := parseBearer(authHeader)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}
		if !setActor(c, claims, load) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found or disabled"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// OptionalAuth resolves the actor when a valid token is present and continues anonymously otherwise
func OptionalAuth(load ActorLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := parseBearer(c.GetHeader("Authorization")); ok {
			setActor(c, claims, load)
		}
		c.Next()
	}
}

func parseBearer(authHeader string) (*utils.Claims, bool) {
	// Extract token from "Bearer <token>"
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, false
	}
	claims, err := utils.ParseToken(parts[1])
	if err != nil {
		return nil, false
	}
	return claims, true
}

func setActor(c *gin.Context, claims *utils.Claims, load ActorLoader) bool {
	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextUsername, claims.Username)
	c.Set(ContextGroups, claims.Groups)

	if load == nil {
		return true
	}
	user, err := load(claims.UserID)
	if err != nil || user == nil || !user.IsActive {
		return false
	}
	c.Set(ContextActor, user)
	return true
}

// AdminRequired is a middleware that checks for the admin group
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actor := GetActor(c); actor != nil {
			if !actor.IsAdmin() {
				c.JSON(http.StatusForbidden, gin.H{"error": "admin access required"})
				c.Abort()
				return
			}
			c.Next()
			return
		}
		if !hasGroup(GetGroups(c), models.GroupAdmin) {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func hasGroup(groups []string, group string) bool {
	for _, g := range groups {
		if g == group {
			return true
		}
	}
	return false
}

// GetActor returns the acting user, nil for anonymous requests
func GetActor(c *gin.Context) *models.User {
	if actor, exists := c.Get(ContextActor); exists {
		if user, ok := actor.(*models.User); ok {
			return user
		}
	}
	return nil
}

// GetUserID gets the current user ID from context
func GetUserID(c *gin.Context) uuid.UUID {
	if id, exists := c.Get(ContextUserID); exists {
		if uid, ok := id.(uuid.UUID); ok {
			return uid
		}
	}
	return uuid.Nil
}

// GetUsername gets the current username from context
func GetUsername(c *gin.Context) string {
	if username, exists := c.Get(ContextUsername); exists {
		return username.(string)
	}
	return ""
}

func GetGroups(c *gin.Context) []string {
	if groups, exists := c.Get(ContextGroups); exists {
		if g, ok := groups.([]string); ok {
			return g
		}
	}
	return nil
}
