package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		WhatsApp: WhatsAppConfig{
			Token:       "token",
			PhoneID:     "12345",
			VerifyToken: "verify",
		},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, Normalize(cfg))

	require.Equal(t, "0.0.0.0", cfg.Webhook.Listen)
	require.Equal(t, 8080, cfg.Webhook.Port)
	require.Equal(t, 6, cfg.OTP.Length)
	require.Equal(t, 5*time.Minute, cfg.OTP.TTL())
	require.Equal(t, 3, cfg.OTP.MaxAttempts)
	require.Equal(t, 30*time.Minute, cfg.Abandonment.Threshold())
	require.Equal(t, "uploads/cvs", cfg.Media.UploadDir)
	require.Equal(t, int64(10<<20), cfg.Media.MaxBytes)
	require.Equal(t, "admin", cfg.Admin.Username)
}

func TestNormalizeRequiredFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing token", func(c *Config) { c.WhatsApp.Token = "" }},
		{"missing phone id", func(c *Config) { c.WhatsApp.PhoneID = "" }},
		{"missing verify token", func(c *Config) { c.WhatsApp.VerifyToken = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			require.Error(t, Normalize(cfg))
		})
	}
}

func TestNormalizeRejectsOverlongOTP(t *testing.T) {
	cfg := validConfig()
	cfg.OTP.Length = 11
	require.Error(t, Normalize(cfg))
}

func TestNormalizeNil(t *testing.T) {
	require.Error(t, Normalize(nil))
}
