package model

import "time"

// DefaultConfirmTimeout is the confirmation window when none is configured.
const DefaultConfirmTimeout = 5 * time.Minute

// Config mirrors the recognized environment variables and config file keys.
type Config struct {
	Token              string        `mapstructure:"DISCORD_TOKEN"`
	AnonymousChannelID string        `mapstructure:"ANONYMOUS_CHANNEL_ID"`
	ModLogChannelID    string        `mapstructure:"MOD_LOG_CHANNEL_ID"`
	ModAlertChannelID  string        `mapstructure:"MOD_ALERT_CHANNEL_ID"`
	ConfirmTimeout     time.Duration `mapstructure:"CONFIRM_TIMEOUT"`
	MaxAttachmentBytes int64         `mapstructure:"MAX_ATTACHMENT_BYTES"`
	DatabasePath       string        `mapstructure:"DATABASE_PATH"`
	HealthAddr         string        `mapstructure:"HEALTH_ADDR"`
	Commands           Commands      `mapstructure:",squash"`
}

// Commands holds slash command registration and permission settings.
type Commands struct {
	AllowedGuilds []string `mapstructure:"ALLOWED_GUILDS"`
	Auth          Auth     `mapstructure:",squash"`
}

// Auth lists who may run moderator commands.
type Auth struct {
	Developers []string `mapstructure:"DEVELOPERS"`
	AdminRoles []string `mapstructure:"ADMIN_ROLES"`
}
