package models

import (
	"fmt"

	"github.com/ls1intum/thesis-management-sub000/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB(cfg *config.DatabaseConfig) error {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}

	// sqlite serializes writers; a single connection avoids SQLITE_BUSY inside transactions
	if cfg.Driver == "sqlite" {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	DB = db
	return nil
}

// Migrate creates or updates every table on the given connection
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&ResearchGroup{},
		&ResearchGroupSetting{},
		&User{},
		&UserGroup{},
		&Topic{},
		&TopicRole{},
		&Application{},
		&ApplicationReviewer{},
		&Thesis{},
		&ThesisRole{},
		&ThesisStateChange{},
		&ThesisProposal{},
		&ThesisFile{},
		&ThesisComment{},
		&ThesisFeedback{},
		&ThesisAssessment{},
		&ThesisPresentation{},
		&SystemConfig{},
		&SystemLog{},
		&SchedulerLock{},
		&RefreshToken{},
	)
}

func AutoMigrate() error {
	return Migrate(DB)
}

func GetDB() *gorm.DB {
	return DB
}

// SeedDefaultData creates default runtime configuration if not exists
func SeedDefaultData() error {
	return SeedSystemConfigs(DB)
}

func SeedSystemConfigs(db *gorm.DB) error {
	defaultConfigs := []SystemConfig{
		{Key: "ldap_sync_student_group", Value: "true", Type: "bool", Group: "ldap", Label: "Sync Student Group Membership"},
		{Key: "auth_access_token_expire_hours", Value: "24", Type: "int", Group: "auth", Label: "Access Token Lifetime (hours)"},
		{Key: "auth_refresh_token_expire_hours", Value: "720", Type: "int", Group: "auth", Label: "Refresh Token Lifetime (hours)"},
		{Key: "auto_reject_enabled", Value: "true", Type: "bool", Group: "workflow", Label: "Run Automatic Rejection Sweep"},
		{Key: "application_reminder_enabled", Value: "true", Type: "bool", Group: "workflow", Label: "Send Weekly Application Reminders"},
		{Key: "notification_email_enabled", Value: "true", Type: "bool", Group: "notification", Label: "Send Workflow E-Mails"},
		{Key: "log_retention_days", Value: "30", Type: "int", Group: "system", Label: "System Log Retention Days"},
	}

	for _, cfg := range defaultConfigs {
		var count int64
		db.Model(&SystemConfig{}).Where(&SystemConfig{Key: cfg.Key}).Count(&count)
		if count == 0 {
			if err := db.Create(&cfg).Error; err != nil {
				return err
			}
		}
	}

	return nil
}
