package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	JWT       JWTConfig       `yaml:"jwt"`
	LDAP      LDAPConfig      `yaml:"ldap"`
	Redis     RedisConfig     `yaml:"redis"`
	Mail      MailConfig      `yaml:"mail"`
	Storage   StorageConfig   `yaml:"storage"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Chat      ChatConfig      `yaml:"chat"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Mode     string `yaml:"mode"` // debug, release, test
	LogLevel string `yaml:"log_level"`
	// ClientURL is used to build links in outgoing notifications
	ClientURL string `yaml:"client_url"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

type JWTConfig struct {
	Secret     string `yaml:"secret"`
	ExpireHour int    `yaml:"expire_hour"`
}

type LDAPConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	BaseDN       string `yaml:"base_dn"`
	BindDN       string `yaml:"bind_dn"`
	BindPassword string `yaml:"bind_password"`
	UserFilter   string `yaml:"user_filter"`
	UseSSL       bool   `yaml:"use_ssl"`
	// StudentGroupDN is the directory group students with an active thesis are added to
	StudentGroupDN string `yaml:"student_group_dn"`
	MemberAttr     string `yaml:"member_attr"`
}

// RedisConfig for optional async mail queue
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	UseTLS   bool   `yaml:"use_tls"`
	// Bcc receives a copy of every workflow mail (chair mailbox)
	Bcc string `yaml:"bcc"`
}

type StorageConfig struct {
	Driver    string `yaml:"driver"` // local, s3
	LocalPath string `yaml:"local_path"`
	// MaxUploadMB caps a single upload
	MaxUploadMB int `yaml:"max_upload_mb"`

	S3Endpoint        string `yaml:"s3_endpoint"`
	S3Region          string `yaml:"s3_region"`
	S3Bucket          string `yaml:"s3_bucket"`
	S3AccessKeyID     string `yaml:"s3_access_key_id"`
	S3SecretAccessKey string `yaml:"s3_secret_access_key"`
}

type KafkaConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Brokers       []string `yaml:"brokers"`
	EventTopic    string   `yaml:"event_topic"`
	CalendarTopic string   `yaml:"calendar_topic"`
}

// ChatConfig posts staff-facing workflow events to a group chat webhook
type ChatConfig struct {
	Enabled bool   `yaml:"enabled"`
	Type    string `yaml:"type"` // slack, mattermost, rocketchat, discord, teams, generic
	Webhook string `yaml:"webhook"`
}

type SchedulerConfig struct {
	AutoRejectCron string `yaml:"auto_reject_cron"`
	ReminderCron   string `yaml:"reminder_cron"`
	// HolidayCountry selects the business calendar used to skip reminders
	HolidayCountry string `yaml:"holiday_country"`
}

var GlobalConfig *Config

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	var cfg *Config

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg = DefaultConfig()
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		fileCfg := DefaultConfig()
		if err := yaml.Unmarshal(data, fileCfg); err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	cfg.overrideFromEnv()
	GlobalConfig = cfg
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      "8080",
			Mode:      "debug",
			LogLevel:  "info",
			ClientURL: "http://localhost:3000",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "thesis-management.db",
		},
		JWT: JWTConfig{
			Secret:     "thesis-management-secret-key-change-in-production",
			ExpireHour: 24,
		},
		LDAP: LDAPConfig{
			Enabled:    false,
			Port:       389,
			UserFilter: "(uid=%s)",
			MemberAttr: "memberUid",
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		Mail: MailConfig{
			Enabled: false,
			Port:    587,
		},
		Storage: StorageConfig{
			Driver:      "local",
			LocalPath:   "uploads",
			MaxUploadMB: 25,
		},
		Kafka: KafkaConfig{
			Enabled:       false,
			EventTopic:    "thesis-management.events",
			CalendarTopic: "thesis-management.calendar",
		},
		Chat: ChatConfig{
			Enabled: false,
			Type:    "slack",
		},
		Scheduler: SchedulerConfig{
			AutoRejectCron: "0 10 * * *",
			ReminderCron:   "0 9 * * 1",
			HolidayCountry: "DE",
		},
	}
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Server.LogLevel = level
	}
	if clientURL := os.Getenv("CLIENT_URL"); clientURL != "" {
		c.Server.ClientURL = clientURL
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.JWT.Secret = secret
	}
	if host := os.Getenv("MAIL_HOST"); host != "" {
		c.Mail.Enabled = true
		c.Mail.Host = host
	}
	if port := os.Getenv("MAIL_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Mail.Port = p
		}
	}
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		c.Storage.Driver = "s3"
		c.Storage.S3Bucket = bucket
	}
	if endpoint := os.Getenv("S3_ENDPOINT"); endpoint != "" {
		c.Storage.S3Endpoint = endpoint
	}
	if key := os.Getenv("S3_ACCESS_KEY_ID"); key != "" {
		c.Storage.S3AccessKeyID = key
	}
	if secret := os.Getenv("S3_SECRET_ACCESS_KEY"); secret != "" {
		c.Storage.S3SecretAccessKey = secret
	}
	if webhook := os.Getenv("CHAT_WEBHOOK"); webhook != "" {
		c.Chat.Enabled = true
		c.Chat.Webhook = webhook
	}
	if chatType := os.Getenv("CHAT_TYPE"); chatType != "" {
		c.Chat.Type = chatType
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Enabled = true
		c.Kafka.Brokers = strings.Split(brokers, ",")
	}
	// Redis URL override (format: redis://:password@host:port/db)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.Enabled = true
		c.parseRedisURL(redisURL)
	}
}

// parseRedisURL parses a Redis URL and sets config values
// Format: redis://:password@host:port/db
func (c *Config) parseRedisURL(redisURL string) {
	url := strings.TrimPrefix(redisURL, "redis://")

	if atIdx := strings.Index(url, "@"); atIdx != -1 {
		authPart := url[:atIdx]
		url = url[atIdx+1:]
		// Password format: :password or user:password
		if colonIdx := strings.Index(authPart, ":"); colonIdx != -1 {
			c.Redis.Password = authPart[colonIdx+1:]
		}
	}

	if slashIdx := strings.LastIndex(url, "/"); slashIdx != -1 {
		dbStr := url[slashIdx+1:]
		url = url[:slashIdx]
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}

	c.Redis.Addr = url
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
