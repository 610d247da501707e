package utils

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func init() {
	SetJWTSecret("test-secret-key-for-testing")
}

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken(uuid.New(), "testuser", []string{"admin"}, 24)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	if token == "" {
		t.Error("GenerateToken() returned empty token")
	}

	if len(token) < 50 {
		t.Errorf("token seems too short: %d chars", len(token))
	}
}

func TestGenerateToken_DifferentTokens(t *testing.T) {
	token1, _ := GenerateToken(uuid.New(), "user1", []string{"advisor"}, 24)
	token2, _ := GenerateToken(uuid.New(), "user2", []string{"student"}, 24)

	if token1 == token2 {
		t.Error("different users should produce different tokens")
	}
}

func TestParseToken(t *testing.T) {
	userID := uuid.New()
	username := "testuser"
	groups := []string{"advisor", "supervisor"}

	token, _ := GenerateToken(userID, username, groups, 24)

	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}

	if claims.UserID != userID {
		t.Errorf("UserID = %s, expected %s", claims.UserID, userID)
	}
	if claims.Username != username {
		t.Errorf("Username = %q, expected %q", claims.Username, username)
	}
	if len(claims.Groups) != 2 || !claims.HasGroup("supervisor") {
		t.Errorf("Groups = %v, expected %v", claims.Groups, groups)
	}
	if claims.HasGroup("admin") {
		t.Error("claims should not contain admin group")
	}
}

func TestParseToken_InvalidToken(t *testing.T) {
	invalidTokens := []string{
		"",
		"invalid",
		"not.a.token",
		"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature",
	}

	for _, token := range invalidTokens {
		_, err := ParseToken(token)
		if err == nil {
			t.Errorf("ParseToken(%q) should return error", token)
		}
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	SetJWTSecret("original-secret")
	token, _ := GenerateToken(uuid.New(), "user", []string{"admin"}, 24)

	SetJWTSecret("different-secret")
	_, err := ParseToken(token)

	SetJWTSecret("test-secret-key-for-testing")

	if err == nil {
		t.Error("ParseToken should fail with wrong secret")
	}
}

func TestParseToken_Expired(t *testing.T) {
	token, _ := GenerateToken(uuid.New(), "user", nil, -1)

	if _, err := ParseToken(token); err == nil {
		t.Error("ParseToken should fail for an expired token")
	}
}

func TestGenerateToken_Expiration(t *testing.T) {
	token, _ := GenerateToken(uuid.New(), "user", []string{"student"}, 1)
	claims, _ := ParseToken(token)

	expiresAt := claims.ExpiresAt.Time
	now := time.Now()

	if expiresAt.Before(now) {
		t.Error("token should not be expired immediately")
	}

	expectedExpiry := now.Add(1 * time.Hour)
	diff := expiresAt.Sub(expectedExpiry)
	if diff < -time.Minute || diff > time.Minute {
		t.Errorf("expiration time is off by more than 1 minute: %v", diff)
	}
}

func TestSetJWTSecret(t *testing.T) {
	userID := uuid.New()

	SetJWTSecret("original")
	token1, _ := GenerateToken(userID, "user", []string{"admin"}, 24)

	SetJWTSecret("new-secret")
	token2, _ := GenerateToken(userID, "user", []string{"admin"}, 24)

	SetJWTSecret("test-secret-key-for-testing")

	if token1 == token2 {
		t.Error("tokens generated with different secrets should be different")
	}
}
