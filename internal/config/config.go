package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	"readlater/internal/articles"
)

type Config struct {
	Token        string  `env:"TOKEN,required,notEmpty"`
	AllowedUsers []int64 `env:"ALLOWED_USERS"`
	DBPath       string  `env:"DB_PATH"                 envDefault:"db.sqlite"`
	Timezone     string  `env:"TIMEZONE"                envDefault:"Local"`
	LogLevel     string  `env:"LOG_LEVEL"               envDefault:"info"`

	AlarmPollSpec string `env:"ALARM_POLL_SPEC" envDefault:"@every 15s"`

	// Zero keeps the article store default.
	StorageMaxBytes     int `env:"STORAGE_MAX_BYTES"`
	StorageWarningBytes int `env:"STORAGE_WARNING_BYTES"`
	MaxTitleLength      int `env:"MAX_TITLE_LENGTH"`

	PrivateChatRate time.Duration `env:"PRIVATE_CHAT_RATE" envDefault:"1s"`
	GroupChatRate   time.Duration `env:"GROUP_CHAT_RATE"   envDefault:"3s"`

	ResolveTitles bool          `env:"RESOLVE_TITLES" envDefault:"true"`
	TitleTimeout  time.Duration `env:"TITLE_TIMEOUT"  envDefault:"10s"`
}

func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}

	if err = cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.StorageMaxBytes < 0 || c.StorageWarningBytes < 0 || c.MaxTitleLength < 0 {
		return fmt.Errorf("storage limits must not be negative, got %d/%d/%d",
			c.StorageMaxBytes, c.StorageWarningBytes, c.MaxTitleLength)
	}

	limits := c.Limits()
	if limits.WarningBytes > limits.MaxBytes {
		return fmt.Errorf("STORAGE_WARNING_BYTES must not exceed %d, got %d",
			limits.MaxBytes, limits.WarningBytes)
	}

	if c.PrivateChatRate <= 0 || c.GroupChatRate <= 0 {
		return fmt.Errorf("chat rates must be positive, got %s/%s", c.PrivateChatRate, c.GroupChatRate)
	}

	return nil
}

// Limits returns the article storage limits; unset values keep the defaults.
func (c Config) Limits() articles.Limits {
	limits := articles.DefaultLimits()

	if c.StorageMaxBytes > 0 {
		limits.MaxBytes = c.StorageMaxBytes
	}
	if c.StorageWarningBytes > 0 {
		limits.WarningBytes = c.StorageWarningBytes
	}
	if c.MaxTitleLength > 0 {
		limits.MaxTitleLength = c.MaxTitleLength
	}

	return limits
}

func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", c.Timezone, err)
	}

	return loc, nil
}

func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}

	return level, nil
}
