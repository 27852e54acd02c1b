package config

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/marbel89/chantbot/model"
	"github.com/spf13/viper"
)

const (
	DefaultMaxAttachmentBytes = 25 << 20
	DefaultDatabasePath       = "./data/chantbot.db"
)

// Load reads configuration from the environment and, when present, from a
// config file. An empty path looks for config.{yaml,env,...} in the working
// directory; a missing file is not an error since the environment alone is enough.
func Load(path string) (*model.Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &model.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so that AutomaticEnv values reach Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("DISCORD_TOKEN", "")
	v.SetDefault("ANONYMOUS_CHANNEL_ID", "")
	v.SetDefault("MOD_LOG_CHANNEL_ID", "")
	v.SetDefault("MOD_ALERT_CHANNEL_ID", "")
	v.SetDefault("CONFIRM_TIMEOUT", model.DefaultConfirmTimeout)
	v.SetDefault("MAX_ATTACHMENT_BYTES", DefaultMaxAttachmentBytes)
	v.SetDefault("DATABASE_PATH", DefaultDatabasePath)
	v.SetDefault("HEALTH_ADDR", "")
	v.SetDefault("ALLOWED_GUILDS", []string{})
	v.SetDefault("DEVELOPERS", []string{})
	v.SetDefault("ADMIN_ROLES", []string{})
}

// Validate checks the required settings the way the bot needs them at startup.
func Validate(cfg *model.Config) error {
	if cfg.Token == "" {
		return ErrMissingToken
	}

	required := []struct {
		key   string
		value string
	}{
		{"ANONYMOUS_CHANNEL_ID", cfg.AnonymousChannelID},
		{"MOD_LOG_CHANNEL_ID", cfg.ModLogChannelID},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingChannel, r.key)
		}
		if !isSnowflake(r.value) {
			return fmt.Errorf("%w: %s=%q must be an integer", ErrInvalidChannel, r.key, r.value)
		}
	}

	if cfg.ModAlertChannelID != "" && !isSnowflake(cfg.ModAlertChannelID) {
		return fmt.Errorf("%w: MOD_ALERT_CHANNEL_ID=%q must be an integer", ErrInvalidChannel, cfg.ModAlertChannelID)
	}

	if cfg.ConfirmTimeout <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, cfg.ConfirmTimeout)
	}

	if cfg.MaxAttachmentBytes <= 0 {
		cfg.MaxAttachmentBytes = DefaultMaxAttachmentBytes
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = DefaultDatabasePath
	}
	return nil
}

func isSnowflake(id string) bool {
	_, err := strconv.ParseUint(id, 10, 64)
	return err == nil
}
