package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/ls1intum/thesis-management-sub000/internal/config"
	"github.com/ls1intum/thesis-management-sub000/internal/middleware"
	"github.com/ls1intum/thesis-management-sub000/internal/services"
	"github.com/ls1intum/thesis-management-sub000/pkg/response"
	"gorm.io/gorm"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(db *gorm.DB, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService: services.NewAuthService(db, &cfg.JWT, &cfg.LDAP),
	}
}

// Service exposes the auth service for actor loading in middleware
func (h *AuthHandler) Service() *services.AuthService {
	return h.authService
}

type tokenResponse struct {
	AccessToken     string      `json:"access_token"`
	AccessExpireAt  int64       `json:"access_expire_at"`
	RefreshToken    string      `json:"refresh_token"`
	RefreshExpireAt int64       `json:"refresh_expire_at"`
	User            interface{} `json:"user,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Login handles user login
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.authService.Login(&req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		services.LogWarning("Auth", "Login", "login failed for "+req.Username, nil, c.ClientIP(), c.Request.UserAgent(), nil)
		response.Error(c, err)
		return
	}

	services.LogInfo("Auth", "Login", "user logged in: "+result.User.Username, &result.User.ID, c.ClientIP(), c.Request.UserAgent(), nil)
	response.Success(c, tokenResponse{
		AccessToken:     result.AccessToken,
		AccessExpireAt:  result.AccessExpireAt.Unix(),
		RefreshToken:    result.RefreshToken,
		RefreshExpireAt: result.RefreshExpireAt.Unix(),
		User:            result.User,
	})
}

// Refresh rotates the refresh token
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.authService.Refresh(req.RefreshToken, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, tokenResponse{
		AccessToken:     result.AccessToken,
		AccessExpireAt:  result.AccessExpireAt.Unix(),
		RefreshToken:    result.RefreshToken,
		RefreshExpireAt: result.RefreshExpireAt.Unix(),
	})
}

// Logout revokes the presented refresh token
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.authService.RevokeRefreshToken(req.RefreshToken); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "logged out successfully"})
}

// GetCurrentUser returns the current logged-in user
// GET /api/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	actor := middleware.GetActor(c)
	if actor == nil {
		response.Unauthorized(c, "authentication required")
		return
	}
	response.Success(c, actor)
}

// GetAuthConfig returns authentication configuration
// GET /api/auth/config
func (h *AuthHandler) GetAuthConfig(c *gin.Context) {
	response.Success(c, gin.H{
		"ldap_enabled": h.authService.IsLDAPEnabled(),
	})
}

// ChangePassword changes the password of a local account
// PUT /api/auth/password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req services.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.authService.ChangePassword(middleware.GetUserID(c), &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "password changed"})
}

// CreateAdminIfNotExists creates default admin user
func (h *AuthHandler) CreateAdminIfNotExists() error {
	return h.authService.CreateAdminIfNotExists()
}
