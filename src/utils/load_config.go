package utils

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var ErrMissingConfig = errors.New("missing configuration")

type AppConfig struct {
	DiscordBotToken       string        `mapstructure:"dc_bot_token"`
	DiscordAppsID         uint64        `mapstructure:"dc_application_id"`
	DiscordPublicKey      string        `mapstructure:"dc_public_key"`
	DiscordAPIVersion     int           `mapstructure:"dc_api_version"`
	DiscordHTTPBaseURL    string        `mapstructure:"dc_http_base_url"`
	DiscordGatewayAddress string        `mapstructure:"dc_gateway_address"`
	DiscordIntents        uint64        `mapstructure:"dc_intents"`
	DiscordCompress       bool          `mapstructure:"dc_compress"`
	RequestTimeout        time.Duration `mapstructure:"dc_request_timeout"`
	MaxResumeAttempts     int           `mapstructure:"dc_max_resume_attempts"`
	MaxReconnectAttempts  int           `mapstructure:"dc_max_reconnect_attempts"`
	WebhookAddress        string        `mapstructure:"dc_webhook_address"`
	LogLevel              string        `mapstructure:"dc_log_level"`
	AppEnv                string        `mapstructure:"dc_app_env"`
}

var defaults = map[string]any{
	"dc_api_version":            10,
	"dc_http_base_url":          "",
	"dc_gateway_address":        "",
	"dc_application_id":         0,
	"dc_public_key":             "",
	"dc_intents":                1, // GUILDS
	"dc_compress":               false,
	"dc_request_timeout":        "15s",
	"dc_max_resume_attempts":    5,
	"dc_max_reconnect_attempts": 10,
	"dc_webhook_address":        "",
	"dc_log_level":              "info",
	"dc_app_env":                "development",
}

// LoadConfiguration reads the given .env files (".env" when none is given,
// a missing file is not an error) and then the DC_* environment variables.
func LoadConfiguration(envFiles ...string) (AppConfig, error) {
	cfg := AppConfig{}
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	if err := v.BindEnv("dc_bot_token", "DC_BOT_TOKEN"); err != nil {
		return cfg, err
	}
	// APP_ENV is what older deployments set.
	if err := v.BindEnv("dc_app_env", "DC_APP_ENV", "APP_ENV"); err != nil {
		return cfg, err
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c AppConfig) Validate() error {
	if c.DiscordBotToken == "" {
		return fmt.Errorf("%w: provide DC_BOT_TOKEN", ErrMissingConfig)
	}
	if c.WebhookAddress != "" {
		if c.DiscordPublicKey == "" {
			return fmt.Errorf("%w: provide DC_PUBLIC_KEY to serve interactions over HTTP", ErrMissingConfig)
		}
		if b, err := hex.DecodeString(c.DiscordPublicKey); err != nil || len(b) != 32 {
			return errors.New("DC_PUBLIC_KEY must be a 32 byte hex encoded ed25519 key")
		}
	}
	if c.MaxResumeAttempts < 0 || c.MaxReconnectAttempts < 0 {
		return errors.New("reconnect attempt limits must not be negative")
	}
	return nil
}
