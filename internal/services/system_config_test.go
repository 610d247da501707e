package services

import (
	"net/http"
	"testing"

	"github.com/ls1intum/thesis-management-sub000/internal/models"
)

func TestSystemConfigService_GetSet(t *testing.T) {
	db := newTestDB(t)
	svc := NewSystemConfigService(db)

	if got := svc.GetWithDefault("missing", "fallback"); got != "fallback" {
		t.Errorf("GetWithDefault() = %q, expected %q", got, "fallback")
	}

	if err := svc.Set("custom_key", "one"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := svc.Set("custom_key", "two"); err != nil {
		t.Fatalf("Set() overwrite error: %v", err)
	}
	if got, _ := svc.Get("custom_key"); got != "two" {
		t.Errorf("Get() = %q, expected %q", got, "two")
	}
}

func TestSystemConfigService_TypedGetters(t *testing.T) {
	db := newTestDB(t)
	svc := NewSystemConfigService(db)
	svc.Set("flag", "true")
	svc.Set("broken_flag", "maybe")
	svc.Set("number", " 42 ")

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"bool set", svc.GetBool("flag", false), true},
		{"bool unparsable", svc.GetBool("broken_flag", true), true},
		{"bool missing", svc.GetBool("nope", false), false},
		{"int trimmed", svc.GetInt("number", 0), 42},
		{"int missing", svc.GetInt("nope", 7), 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %v, expected %v", tt.got, tt.expected)
			}
		})
	}
}

func TestSystemConfigService_GetByGroupAndSwitches(t *testing.T) {
	db := newTestDB(t)
	if err := models.SeedSystemConfigs(db); err != nil {
		t.Fatalf("seed error: %v", err)
	}
	svc := NewSystemConfigService(db)

	workflow, err := svc.GetByGroup("workflow")
	if err != nil {
		t.Fatalf("GetByGroup() error: %v", err)
	}
	if len(workflow) != 2 {
		t.Errorf("workflow group has %d entries, expected 2", len(workflow))
	}

	switches := svc.GetWorkflowSwitches()
	if !switches.AutoRejectEnabled || !switches.ReminderEnabled || !switches.EmailEnabled {
		t.Errorf("seeded switches should all be enabled, got %+v", switches)
	}
	if switches.LogRetentionDays != 30 {
		t.Errorf("LogRetentionDays = %d, expected 30", switches.LogRetentionDays)
	}
}

func TestSystemConfigService_UpdateBatchValidatesTypes(t *testing.T) {
	db := newTestDB(t)
	models.SeedSystemConfigs(db)
	svc := NewSystemConfigService(db)

	tests := []struct {
		name   string
		values map[string]string
		status int
	}{
		{"valid bool", map[string]string{ConfigAutoRejectEnabled: "false"}, 0},
		{"invalid bool", map[string]string{ConfigAutoRejectEnabled: "nah"}, http.StatusBadRequest},
		{"invalid int", map[string]string{ConfigLogRetentionDays: "ten"}, http.StatusBadRequest},
		{"unknown key", map[string]string{"nope": "1"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.UpdateBatch(tt.values)
			if got := appStatus(err); got != tt.status {
				t.Errorf("status = %d, expected %d (err=%v)", got, tt.status, err)
			}
		})
	}

	if svc.GetBool(ConfigAutoRejectEnabled, true) {
		t.Error("auto reject should have been switched off by the valid update")
	}
}
