package services

import (
	"net/http"
	"testing"

	"github.com/ls1intum/thesis-management-sub000/internal/config"
	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"github.com/ls1intum/thesis-management-sub000/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestLoginRequest_Structure(t *testing.T) {
	req := LoginRequest{
		Username: "testuser",
		Password: "password123",
		AuthType: "local",
	}

	if req.Username != "testuser" {
		t.Errorf("Username = %q, expected %q", req.Username, "testuser")
	}
	if req.Password != "password123" {
		t.Errorf("Password = %q, expected %q", req.Password, "password123")
	}
	if req.AuthType != "local" {
		t.Errorf("AuthType = %q, expected %q", req.AuthType, "local")
	}
}

func TestLoginRequest_DefaultAuthType(t *testing.T) {
	req := LoginRequest{
		Username: "user",
		Password: "pass",
	}

	if req.AuthType != "" {
		t.Errorf("AuthType should be empty by default, got %q", req.AuthType)
	}
	if req.Username != "user" {
		t.Errorf("Username = %q, expected %q", req.Username, "user")
	}
	if req.Password != "pass" {
		t.Errorf("Password = %q, expected %q", req.Password, "pass")
	}
}

func TestLoginRequest_LDAPAuthType(t *testing.T) {
	req := LoginRequest{
		Username: "ldapuser",
		Password: "ldappass",
		AuthType: "ldap",
	}

	if req.AuthType != "ldap" {
		t.Errorf("AuthType = %q, expected %q", req.AuthType, "ldap")
	}
	if req.Username != "ldapuser" {
		t.Errorf("Username = %q, expected %q", req.Username, "ldapuser")
	}
	if req.Password != "ldappass" {
		t.Errorf("Password = %q, expected %q", req.Password, "ldappass")
	}
}

func TestChangePasswordRequest_Structure(t *testing.T) {
	req := ChangePasswordRequest{
		OldPassword: "oldpass",
		NewPassword: "newpass123",
	}

	if req.OldPassword != "oldpass" {
		t.Errorf("OldPassword = %q, expected %q", req.OldPassword, "oldpass")
	}
	if req.NewPassword != "newpass123" {
		t.Errorf("NewPassword = %q, expected %q", req.NewPassword, "newpass123")
	}
}

func TestChangePasswordRequest_MinLength(t *testing.T) {
	req := ChangePasswordRequest{
		OldPassword: "old",
		NewPassword: "123456",
	}

	if len(req.NewPassword) < 6 {
		t.Errorf("NewPassword length should be at least 6, got %d", len(req.NewPassword))
	}
	if req.OldPassword != "old" {
		t.Errorf("OldPassword = %q, expected %q", req.OldPassword, "old")
	}
}

func newTestAuthService(t *testing.T) (*AuthService, *gorm.DB) {
	t.Helper()
	utils.SetJWTSecret("test-secret")
	db := newTestDB(t)
	s := NewAuthService(db, &config.JWTConfig{Secret: "test-secret", ExpireHour: 2}, nil)
	return s, db
}

func TestCreateAdminIfNotExists(t *testing.T) {
	s, db := newTestAuthService(t)

	require.NoError(t, s.CreateAdminIfNotExists())
	require.NoError(t, s.CreateAdminIfNotExists())

	var users []models.User
	require.NoError(t, db.Preload("Groups").Find(&users).Error)
	require.Len(t, users, 1)
	assert.True(t, users[0].IsAdmin())
}

func TestLogin_IssuesGroupClaims(t *testing.T) {
	s, _ := newTestAuthService(t)
	require.NoError(t, s.CreateAdminIfNotExists())

	result, err := s.Login(&LoginRequest{Username: "admin", Password: "admin"}, "127.0.0.1", "test")
	require.NoError(t, err)
	require.NotNil(t, result.User.LastLogin)

	claims, err := utils.ParseToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, claims.UserID)
	assert.True(t, claims.HasGroup(models.GroupAdmin))

	_, err = s.Login(&LoginRequest{Username: "admin", Password: "wrong"}, "", "")
	assert.Equal(t, http.StatusUnauthorized, appStatus(err))
	_, err = s.Login(&LoginRequest{Username: "admin", Password: "admin", AuthType: "ldap"}, "", "")
	assert.Equal(t, http.StatusBadRequest, appStatus(err), "LDAP is not configured")
}

func TestRefresh_RotatesToken(t *testing.T) {
	s, db := newTestAuthService(t)
	require.NoError(t, s.CreateAdminIfNotExists())
	login, err := s.Login(&LoginRequest{Username: "admin", Password: "admin"}, "", "")
	require.NoError(t, err)

	refreshed, err := s.Refresh(login.RefreshToken, "", "")
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	_, err = s.Refresh(login.RefreshToken, "", "")
	assert.Equal(t, http.StatusUnauthorized, appStatus(err), "rotated tokens are revoked")

	require.NoError(t, s.RevokeRefreshToken(refreshed.RefreshToken))
	_, err = s.Refresh(refreshed.RefreshToken, "", "")
	assert.Equal(t, http.StatusUnauthorized, appStatus(err))

	var tokens int64
	require.NoError(t, db.Model(&models.RefreshToken{}).Where("revoked_at IS NULL").Count(&tokens).Error)
	assert.Zero(t, tokens)
}

func TestChangePassword(t *testing.T) {
	s, _ := newTestAuthService(t)
	require.NoError(t, s.CreateAdminIfNotExists())
	login, err := s.Login(&LoginRequest{Username: "admin", Password: "admin"}, "", "")
	require.NoError(t, err)

	err = s.ChangePassword(login.User.ID, &ChangePasswordRequest{OldPassword: "nope", NewPassword: "secret123"})
	assert.Equal(t, http.StatusBadRequest, appStatus(err))
	require.NoError(t, s.ChangePassword(login.User.ID, &ChangePasswordRequest{OldPassword: "admin", NewPassword: "secret123"}))

	_, err = s.Login(&LoginRequest{Username: "admin", Password: "secret123"}, "", "")
	assert.NoError(t, err)
}
