package middleware

import (
	"strings"
	"testing"
)

func TestParseRouteInfo(t *testing.T) {
	tests := []struct {
		path, method   string
		module, action string
	}{
		{"/api/theses/:id/proposal", "PUT", "Theses", "Update"},
		{"/api/research-groups", "POST", "Research Groups", "Create"},
		{"/api/applications/:id", "DELETE", "Applications", "Delete"},
		{"/api/", "PATCH", "unknown", "PATCH"},
		{"/api/system-config", "GET", "System Config", "GET"},
	}

	for _, tt := range tests {
		module, action := parseRouteInfo(tt.path, tt.method)
		if module != tt.module || action != tt.action {
			t.Errorf("parseRouteInfo(%q, %q) = (%q, %q), expected (%q, %q)", tt.path, tt.method, module, action, tt.module, tt.action)
		}
	}
}

func TestMaskSensitiveFields(t *testing.T) {
	body := `{"username":"admin","password":"hunter2"}`
	masked := maskSensitiveFields(body)
	if strings.Contains(masked, "hunter2") {
		t.Errorf("password leaked: %s", masked)
	}
	if !strings.Contains(masked, `"username":"admin"`) {
		t.Errorf("unrelated fields should be kept: %s", masked)
	}
}

func TestFormatAuditMessage(t *testing.T) {
	if got := formatAuditMessage("advisor", "PUT", "/api/theses/1", 200); !strings.HasSuffix(got, "OK") {
		t.Errorf("message = %q, expected OK suffix", got)
	}
	if got := formatAuditMessage("advisor", "PUT", "/api/theses/1", 403); !strings.HasSuffix(got, "Failed") {
		t.Errorf("message = %q, expected Failed suffix", got)
	}
}
