package config

import "errors"

// ErrMissingToken indicates that DISCORD_TOKEN is not set.
var ErrMissingToken = errors.New("DISCORD_TOKEN is not set")

// ErrMissingChannel indicates that a required channel id is not set.
var ErrMissingChannel = errors.New("required channel id is not set")

// ErrInvalidChannel indicates a channel id that is not a numeric snowflake.
var ErrInvalidChannel = errors.New("invalid channel id")

// ErrInvalidTimeout indicates a non-positive confirmation timeout.
var ErrInvalidTimeout = errors.New("CONFIRM_TIMEOUT must be positive")
