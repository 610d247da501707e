package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"github.com/ls1intum/thesis-management-sub000/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("test-secret-for-middleware-testing")
}

func staticLoader(users ...*models.User) ActorLoader {
	return func(id uuid.UUID) (*models.User, error) {
		for _, u := range users {
			if u.ID == id {
				return u, nil
			}
		}
		return nil, errors.New("not found")
	}
}

func newUser(active bool, groups ...string) *models.User {
	u := &models.User{ID: uuid.New(), Username: "testuser", IsActive: active}
	for _, g := range groups {
		u.Groups = append(u.Groups, models.UserGroup{UserID: u.ID, Group: g})
	}
	return u
}

func tokenFor(t *testing.T, u *models.User) string {
	t.Helper()
	token, err := utils.GenerateToken(u.ID, u.Username, u.GroupNames(), 24)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return token
}

func serve(router *gin.Engine, path, authHeader string) int {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	router.ServeHTTP(w, req)
	return w.Code
}

func TestAuthRequired_NoHeader(t *testing.T) {
	router := gin.New()
	router.Use(AuthRequired(staticLoader()))
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if code := serve(router, "/protected", ""); code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, code)
	}
}

func TestAuthRequired_InvalidFormat(t *testing.T) {
	router := gin.New()
	router.Use(AuthRequired(staticLoader()))
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	testCases := []string{
		"InvalidToken",
		"Basic token123",
		"Bearer",
		"Bearer invalid.jwt.token",
	}

	for _, authHeader := range testCases {
		if code := serve(router, "/protected", authHeader); code != http.StatusUnauthorized {
			t.Errorf("header %q: expected status %d, got %d", authHeader, http.StatusUnauthorized, code)
		}
	}
}

func TestAuthRequired_ResolvesActor(t *testing.T) {
	user := newUser(true, models.GroupAdvisor)

	router := gin.New()
	router.Use(AuthRequired(staticLoader(user)))
	var seen *models.User
	router.GET("/protected", func(c *gin.Context) {
		seen = GetActor(c)
		c.JSON(200, gin.H{"user_id": GetUserID(c)})
	})

	if code := serve(router, "/protected", "Bearer "+tokenFor(t, user)); code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, code)
	}
	if seen != user {
		t.Errorf("actor = %v, expected the loaded user", seen)
	}
}

func TestAuthRequired_RejectsUnknownOrDisabled(t *testing.T) {
	disabled := newUser(false, models.GroupStudent)
	unknown := newUser(true, models.GroupStudent)

	router := gin.New()
	router.Use(AuthRequired(staticLoader(disabled)))
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	for name, u := range map[string]*models.User{"disabled": disabled, "unknown": unknown} {
		if code := serve(router, "/protected", "Bearer "+tokenFor(t, u)); code != http.StatusUnauthorized {
			t.Errorf("%s: expected status %d, got %d", name, http.StatusUnauthorized, code)
		}
	}
}

func TestOptionalAuth(t *testing.T) {
	user := newUser(true, models.GroupStudent)

	router := gin.New()
	router.Use(OptionalAuth(staticLoader(user)))
	router.GET("/public", func(c *gin.Context) {
		if GetActor(c) == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusAccepted, "known")
	})

	tests := []struct {
		name     string
		header   string
		expected int
	}{
		{"no header", "", http.StatusOK},
		{"garbage token", "Bearer nope", http.StatusOK},
		{"valid token", "Bearer " + tokenFor(t, user), http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := serve(router, "/public", tt.header); code != tt.expected {
				t.Errorf("expected status %d, got %d", tt.expected, code)
			}
		})
	}
}

func TestAdminRequired(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(c *gin.Context)
		expected int
	}{
		{"anonymous", func(c *gin.Context) {}, http.StatusForbidden},
		{"staff actor", func(c *gin.Context) { c.Set(ContextActor, newUser(true, models.GroupSupervisor)) }, http.StatusForbidden},
		{"admin actor", func(c *gin.Context) { c.Set(ContextActor, newUser(true, models.GroupAdmin)) }, http.StatusOK},
		{"admin claim only", func(c *gin.Context) { c.Set(ContextGroups, []string{models.GroupAdmin}) }, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(func(c *gin.Context) {
				tt.setup(c)
				c.Next()
			})
			router.Use(AdminRequired())
			router.GET("/admin", func(c *gin.Context) {
				c.JSON(200, gin.H{"status": "ok"})
			})

			if code := serve(router, "/admin", ""); code != tt.expected {
				t.Errorf("expected status %d, got %d", tt.expected, code)
			}
		})
	}
}

func TestGetUserID(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if id := GetUserID(c); id != uuid.Nil {
		t.Errorf("expected nil uuid for missing user_id, got %s", id)
	}

	id := uuid.New()
	c.Set(ContextUserID, id)
	if got := GetUserID(c); got != id {
		t.Errorf("expected %s, got %s", id, got)
	}
}

func TestGetUsername(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if name := GetUsername(c); name != "" {
		t.Errorf("expected empty string for missing username, got %q", name)
	}

	c.Set(ContextUsername, "testuser")
	if name := GetUsername(c); name != "testuser" {
		t.Errorf("expected %q, got %q", "testuser", name)
	}
}
