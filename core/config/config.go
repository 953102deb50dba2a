package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// WhatsAppConfig holds WhatsApp Cloud API settings shared by the webhook
// boundary and the outbound client.
type WhatsAppConfig struct {
	Token             string `yaml:"token" envconfig:"WA_TOKEN"`
	PhoneID           string `yaml:"phone_id" envconfig:"WA_PHONE_ID"`
	BusinessAccountID string `yaml:"business_account_id" envconfig:"WA_BUSINESS_ACCOUNT_ID"`
	VerifyToken       string `yaml:"verify_token" envconfig:"WA_VERIFY_TOKEN"`
	AppSecret         string `yaml:"app_secret" envconfig:"WA_APP_SECRET"`
	AdminNumber       string `yaml:"admin_number" envconfig:"WA_ADMIN_NUMBER"`
	// GraphBaseURL overrides the Graph API endpoint; empty -> production.
	GraphBaseURL string `yaml:"graph_base_url" envconfig:"WA_GRAPH_BASE_URL"`
}

// WebhookConfig specifies the inbound HTTP listener.
type WebhookConfig struct {
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// OTPConfig bounds one-time-code verification.
type OTPConfig struct {
	Length      int `yaml:"length" envconfig:"OTP_LENGTH"`
	TTLSeconds  int `yaml:"ttl_seconds" envconfig:"OTP_TTL_SECONDS"`
	MaxAttempts int `yaml:"max_attempts" envconfig:"OTP_MAX_ATTEMPTS"`
}

// TTL returns the configured challenge lifetime.
func (c OTPConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// AbandonmentConfig controls the staleness policy for unfinished
// conversations. Detection is pull-model on access; SweepSchedule
// additionally enables a periodic cron pass when non-empty.
type AbandonmentConfig struct {
	ThresholdMinutes int    `yaml:"threshold_minutes" envconfig:"ABANDON_THRESHOLD_MINUTES"`
	SweepSchedule    string `yaml:"sweep_schedule" envconfig:"ABANDON_SWEEP_SCHEDULE"`
}

// Threshold returns the inactivity duration after which an active flow is
// considered abandoned.
func (c AbandonmentConfig) Threshold() time.Duration {
	return time.Duration(c.ThresholdMinutes) * time.Minute
}

// MediaConfig controls CV uploads.
type MediaConfig struct {
	UploadDir string `yaml:"upload_dir" envconfig:"MEDIA_UPLOAD_DIR"`
	MaxBytes  int64  `yaml:"max_bytes" envconfig:"MEDIA_MAX_BYTES"`
}

// AdminConfig protects the read-only admin API.
type AdminConfig struct {
	Username string `yaml:"username" envconfig:"ADMIN_USERNAME"`
	Password string `yaml:"password" envconfig:"ADMIN_PASSWORD"`
}

// Config aggregates the application configuration.
type Config struct {
	WhatsApp    WhatsAppConfig    `yaml:"whatsapp"`
	Webhook     WebhookConfig     `yaml:"webhook"`
	Logging     LoggingConfig     `yaml:"logging"`
	OTP         OTPConfig         `yaml:"otp"`
	Abandonment AbandonmentConfig `yaml:"abandonment"`
	Media       MediaConfig       `yaml:"media"`
	Admin       AdminConfig       `yaml:"admin"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and
// adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if strings.TrimSpace(cfg.WhatsApp.Token) == "" {
		return fmt.Errorf("whatsapp.token is required")
	}
	if strings.TrimSpace(cfg.WhatsApp.PhoneID) == "" {
		return fmt.Errorf("whatsapp.phone_id is required")
	}
	if strings.TrimSpace(cfg.WhatsApp.VerifyToken) == "" {
		return fmt.Errorf("whatsapp.verify_token is required")
	}

	if strings.TrimSpace(cfg.Webhook.Listen) == "" {
		cfg.Webhook.Listen = "0.0.0.0"
	}
	if cfg.Webhook.Port <= 0 {
		cfg.Webhook.Port = 8080
	}

	if cfg.OTP.Length <= 0 {
		cfg.OTP.Length = 6
	}
	if cfg.OTP.Length > 10 {
		return fmt.Errorf("otp.length must be <= 10")
	}
	if cfg.OTP.TTLSeconds <= 0 {
		cfg.OTP.TTLSeconds = 300
	}
	if cfg.OTP.MaxAttempts <= 0 {
		cfg.OTP.MaxAttempts = 3
	}

	if cfg.Abandonment.ThresholdMinutes <= 0 {
		cfg.Abandonment.ThresholdMinutes = 30
	}
	cfg.Abandonment.SweepSchedule = strings.TrimSpace(cfg.Abandonment.SweepSchedule)

	if strings.TrimSpace(cfg.Media.UploadDir) == "" {
		cfg.Media.UploadDir = "uploads/cvs"
	}
	if cfg.Media.MaxBytes <= 0 {
		cfg.Media.MaxBytes = 10 << 20
	}

	if cfg.Admin.Username == "" {
		cfg.Admin.Username = "admin"
	}

	return nil
}
