package config

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
)

// Config holds the full logger configuration. It is loaded once at startup
// and passed by reference into every component.
type Config struct {
	Enabled     bool              `mapstructure:"enabled"`
	Environment string            `mapstructure:"environment"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Alerts      AlertsConfig      `mapstructure:"alerts"`
	Security    SecurityConfig    `mapstructure:"security"`
	Retention   RetentionConfig   `mapstructure:"retention"`
	Performance PerformanceConfig `mapstructure:"performance"`
}

// StorageConfig selects and configures the active storage backend.
type StorageConfig struct {
	Driver        string              `mapstructure:"driver"` // sqlite, file, elasticsearch
	DatabasePath  string              `mapstructure:"databasePath"`
	FilePath      string              `mapstructure:"filePath"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

// ElasticsearchConfig configures the elasticsearch backend.
type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	APIKey    string   `mapstructure:"apiKey"`
	Index     string   `mapstructure:"index"`
}

// Threshold defines "count events within window" for one severity level.
type Threshold struct {
	Count      int    `mapstructure:"count"`
	TimeWindow string `mapstructure:"timeWindow"` // e.g. "1 hour", "30 minutes"
}

// AlertsConfig configures the alert engine and its channels.
type AlertsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// CooldownMinutes suppresses repeat alerts per level for the given number
	// of minutes after a breach fires. Zero keeps the baseline behavior: a
	// breached threshold re-fires on every qualifying record.
	CooldownMinutes int                  `mapstructure:"cooldownMinutes"`
	Thresholds      map[string]Threshold `mapstructure:"thresholds"`
	Channels        ChannelsConfig       `mapstructure:"channels"`
	Filters         AlertFilters         `mapstructure:"filters"`
}

// AlertFilters restricts which records are eligible for threshold evaluation.
type AlertFilters struct {
	ExcludeLevels     []string `mapstructure:"excludeLevels"`
	IncludeCategories []string `mapstructure:"includeCategories"`
	ExcludeCategories []string `mapstructure:"excludeCategories"`
}

// ChannelsConfig holds per-channel notification settings.
type ChannelsConfig struct {
	Email    EmailConfig    `mapstructure:"email"`
	Slack    SlackConfig    `mapstructure:"slack"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// EmailConfig configures the direct-message channel.
type EmailConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	To            string `mapstructure:"to"`
	From          string `mapstructure:"from"`
	SubjectPrefix string `mapstructure:"subjectPrefix"`
	SMTPHost      string `mapstructure:"smtpHost"`
	SMTPPort      int    `mapstructure:"smtpPort"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
}

// SlackConfig configures the chat-webhook channel.
type SlackConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhookUrl"`
	Channel    string `mapstructure:"channel"`
}

// TelegramConfig configures the bot-API channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"botToken"`
	ChatID   string `mapstructure:"chatId"`
	// APIBaseURL overrides the Telegram API endpoint, mainly for tests.
	APIBaseURL string `mapstructure:"apiBaseUrl"`
}

// SecurityConfig configures context sanitization.
type SecurityConfig struct {
	SanitizeSensitiveData bool     `mapstructure:"sanitizeSensitiveData"`
	SensitivePatterns     []string `mapstructure:"sensitivePatterns"`
	MaskReplacement       string   `mapstructure:"maskReplacement"`
}

// RetentionConfig configures cleanup of old records.
type RetentionConfig struct {
	Enabled              bool           `mapstructure:"enabled"`
	Days                 map[string]int `mapstructure:"days"` // per environment
	CompressBeforeDelete bool           `mapstructure:"compressBeforeDelete"`
	CleanupSchedule      string         `mapstructure:"cleanupSchedule"` // cron expression
	ArchivePath          string         `mapstructure:"archivePath"`
}

// RetentionDays resolves the retention window for the configured environment,
// falling back to the production value, then 30 days.
func (c *Config) RetentionDays() int {
	if days, ok := c.Retention.Days[c.Environment]; ok && days > 0 {
		return days
	}
	if days, ok := c.Retention.Days["production"]; ok && days > 0 {
		return days
	}
	return 30
}

// PerformanceConfig tunes write batching and the async queue.
type PerformanceConfig struct {
	UseQueue  bool `mapstructure:"useQueue"`
	QueueSize int  `mapstructure:"queueSize"`
	BatchSize int  `mapstructure:"batchSize"`
}

// Load reads configuration from an optional file plus SIMORGH_LOGGER_*
// environment variables, applying the documented defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("SIMORGH_LOGGER")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("enabled", true)
	v.SetDefault("environment", "production")

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.databasePath", "./logs.db")
	v.SetDefault("storage.filePath", "./logs/advanced")
	v.SetDefault("storage.elasticsearch.addresses", []string{"http://localhost:9200"})
	v.SetDefault("storage.elasticsearch.index", "app-logs")

	v.SetDefault("alerts.enabled", true)
	v.SetDefault("alerts.cooldownMinutes", 0)
	v.SetDefault("alerts.thresholds", map[string]any{
		"critical": map[string]any{"count": 5, "timeWindow": "1 hour"},
		"error":    map[string]any{"count": 20, "timeWindow": "1 hour"},
	})
	v.SetDefault("alerts.filters.excludeLevels", []string{"debug", "info"})
	v.SetDefault("alerts.filters.excludeCategories", []string{"debug"})
	v.SetDefault("alerts.channels.email.subjectPrefix", "[Log Alert]")
	v.SetDefault("alerts.channels.email.smtpPort", 587)
	v.SetDefault("alerts.channels.slack.channel", "#alerts")

	v.SetDefault("security.sanitizeSensitiveData", true)
	v.SetDefault("security.sensitivePatterns", []string{
		"password", "token", "secret", "key", "credit_card", "ssn", "social_security",
	})
	v.SetDefault("security.maskReplacement", "[REDACTED]")

	v.SetDefault("retention.enabled", true)
	v.SetDefault("retention.days", map[string]int{
		"local":      7,
		"staging":    14,
		"production": 30,
	})
	v.SetDefault("retention.compressBeforeDelete", true)
	v.SetDefault("retention.cleanupSchedule", "0 2 * * *")
	v.SetDefault("retention.archivePath", "./logs/compressed")

	v.SetDefault("performance.useQueue", false)
	v.SetDefault("performance.queueSize", 1000)
	v.SetDefault("performance.batchSize", 1000)
}

// Validate checks the parts of the configuration that must fail fast.
// Malformed sensitive patterns are deliberately not rejected here: the
// sanitizer falls back to its default set at runtime.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.Storage,
		validation.Field(&c.Storage.Driver, validation.Required,
			validation.In("sqlite", "file", "elasticsearch")),
	); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}

	for level, t := range c.Alerts.Thresholds {
		if err := validation.Validate(t.Count, validation.Required, validation.Min(1)); err != nil {
			return fmt.Errorf("alert threshold for %q: count: %w", level, err)
		}
	}

	if c.Alerts.Channels.Email.Enabled {
		if err := validation.ValidateStruct(&c.Alerts.Channels.Email,
			validation.Field(&c.Alerts.Channels.Email.To, validation.Required),
			validation.Field(&c.Alerts.Channels.Email.SMTPHost, validation.Required),
		); err != nil {
			return fmt.Errorf("email channel: %w", err)
		}
	}
	if c.Alerts.Channels.Slack.Enabled {
		if err := validation.ValidateStruct(&c.Alerts.Channels.Slack,
			validation.Field(&c.Alerts.Channels.Slack.WebhookURL, validation.Required),
		); err != nil {
			return fmt.Errorf("slack channel: %w", err)
		}
	}
	if c.Alerts.Channels.Telegram.Enabled {
		if err := validation.ValidateStruct(&c.Alerts.Channels.Telegram,
			validation.Field(&c.Alerts.Channels.Telegram.BotToken, validation.Required),
			validation.Field(&c.Alerts.Channels.Telegram.ChatID, validation.Required),
		); err != nil {
			return fmt.Errorf("telegram channel: %w", err)
		}
	}

	if err := validation.Validate(c.Performance.BatchSize, validation.Min(1)); err != nil {
		return fmt.Errorf("performance config: batchSize: %w", err)
	}

	return nil
}
