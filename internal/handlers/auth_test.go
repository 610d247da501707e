package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ls1intum/thesis-management-sub000/internal/config"
	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"github.com/ls1intum/thesis-management-sub000/internal/services"
	"github.com/ls1intum/thesis-management-sub000/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestAuthHandler(t *testing.T) *AuthHandler {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, models.Migrate(db))

	cfg := config.DefaultConfig()
	utils.SetJWTSecret(cfg.JWT.Secret)
	h := NewAuthHandler(db, cfg)
	require.NoError(t, h.CreateAdminIfNotExists())
	return h
}

func postJSON(handler gin.HandlerFunc, body string) *httptest.ResponseRecorder {
	r := gin.New()
	r.POST("/", handler)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestLogout_RejectsMalformedBody(t *testing.T) {
	h := newTestAuthHandler(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"refresh_token":`},
		{"missing token", `{}`},
		{"empty token", `{"refresh_token":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(h.Logout, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestLogout_RevokesRefreshToken(t *testing.T) {
	h := newTestAuthHandler(t)
	login, err := h.Service().Login(&services.LoginRequest{Username: "admin", Password: "admin"}, "127.0.0.1", "test")
	require.NoError(t, err)

	w := postJSON(h.Logout, fmt.Sprintf(`{"refresh_token":%q}`, login.RefreshToken))
	require.Equal(t, http.StatusOK, w.Code)

	_, err = h.Service().Refresh(login.RefreshToken, "127.0.0.1", "test")
	assert.Error(t, err, "a revoked refresh token cannot be used again")
}
