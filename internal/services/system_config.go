package services

import (
	"errors"
	"strconv"
	"strings"

	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"github.com/ls1intum/thesis-management-sub000/pkg/response"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Runtime switches stored in system_configs
const (
	ConfigAutoRejectEnabled      = "auto_reject_enabled"
	ConfigReminderEnabled        = "application_reminder_enabled"
	ConfigEmailEnabled           = "notification_email_enabled"
	ConfigLDAPSyncStudentGroup   = "ldap_sync_student_group"
	ConfigLogRetentionDays       = "log_retention_days"
	ConfigAccessTokenExpireHours = "auth_access_token_expire_hours"
	ConfigRefreshExpireHours     = "auth_refresh_token_expire_hours"
)

type SystemConfigService struct {
	db *gorm.DB
}

func NewSystemConfigService(db *gorm.DB) *SystemConfigService {
	return &SystemConfigService{db: db}
}

func (s *SystemConfigService) Get(key string) (string, error) {
	var cfg models.SystemConfig
	if err := s.db.Where(&models.SystemConfig{Key: key}).First(&cfg).Error; err != nil {
		return "", err
	}
	return cfg.Value, nil
}

func (s *SystemConfigService) GetWithDefault(key, defaultValue string) string {
	value, err := s.Get(key)
	if err != nil {
		return defaultValue
	}
	return value
}

func (s *SystemConfigService) GetBool(key string, defaultValue bool) bool {
	value, err := s.Get(key)
	if err != nil {
		return defaultValue
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return b
}

func (s *SystemConfigService) GetInt(key string, defaultValue int) int {
	value, err := s.Get(key)
	if err != nil {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return n
}

func (s *SystemConfigService) Set(key, value string) error {
	var cfg models.SystemConfig
	err := s.db.Where(&models.SystemConfig{Key: key}).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cfg = models.SystemConfig{
			Key:   key,
			Value: value,
		}
		return s.db.Create(&cfg).Error
	}
	if err != nil {
		return err
	}
	return s.db.Model(&cfg).Update("value", value).Error
}

func (s *SystemConfigService) GetByGroup(group string) ([]models.SystemConfig, error) {
	var configs []models.SystemConfig
	err := s.db.Where(clause.Eq{Column: clause.Column{Name: "group"}, Value: group}).
		Order("id").Find(&configs).Error
	if err != nil {
		return nil, err
	}
	return configs, nil
}

func (s *SystemConfigService) List() ([]models.SystemConfig, error) {
	var configs []models.SystemConfig
	if err := s.db.Order("id").Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

// UpdateBatch validates typed values against their stored type before writing
func (s *SystemConfigService) UpdateBatch(values map[string]string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for key, value := range values {
			var cfg models.SystemConfig
			if err := tx.Where(&models.SystemConfig{Key: key}).First(&cfg).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return response.NewNotFound("unknown config key: " + key)
				}
				return err
			}
			value = strings.TrimSpace(value)
			switch cfg.Type {
			case "bool":
				if _, err := strconv.ParseBool(value); err != nil {
					return response.NewBadRequest(key + " must be true or false")
				}
			case "int":
				if _, err := strconv.Atoi(value); err != nil {
					return response.NewBadRequest(key + " must be a number")
				}
			}
			if err := tx.Model(&cfg).Update("value", value).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// WorkflowSwitches is the runtime state of the scheduled workflow jobs
type WorkflowSwitches struct {
	AutoRejectEnabled bool `json:"auto_reject_enabled"`
	ReminderEnabled   bool `json:"application_reminder_enabled"`
	EmailEnabled      bool `json:"notification_email_enabled"`
	LDAPStudentSync   bool `json:"ldap_sync_student_group"`
	LogRetentionDays  int  `json:"log_retention_days"`
}

func (s *SystemConfigService) GetWorkflowSwitches() *WorkflowSwitches {
	return &WorkflowSwitches{
		AutoRejectEnabled: s.GetBool(ConfigAutoRejectEnabled, true),
		ReminderEnabled:   s.GetBool(ConfigReminderEnabled, true),
		EmailEnabled:      s.GetBool(ConfigEmailEnabled, true),
		LDAPStudentSync:   s.GetBool(ConfigLDAPSyncStudentGroup, true),
		LogRetentionDays:  s.GetInt(ConfigLogRetentionDays, 30),
	}
}
