// Package config loads the typed bot configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Backend names a storage implementation.
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendBolt     Backend = "bolt"
	BackendMongo    Backend = "mongo"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	TelegramToken string `env:"TELEGRAM_BOT_TOKEN,required,notEmpty"`
	// OwnerID is the Telegram user id that always resolves to the owner role.
	OwnerID int64 `env:"OWNER_ID"`
	// ControlChatID receives approval requests from unapproved groups. Defaults to the owner's private chat.
	ControlChatID int64  `env:"CONTROL_CHAT_ID"`
	Prefix        string `env:"PREFIX" envDefault:"+"`

	Backend         Backend       `env:"STORAGE_BACKEND" envDefault:"sqlite"`
	DatabasePath    string        `env:"DATABASE_PATH" envDefault:"data.sqlite"`
	DatabaseDSN     string        `env:"DATABASE_DSN"`
	BoltPath        string        `env:"BOLT_PATH" envDefault:"data.bolt"`
	MongoURI        string        `env:"MONGODB_URI"`
	MongoDatabase   string        `env:"MONGODB_DATABASE" envDefault:"groupkeeper"`
	HTTPAddr        string        `env:"HTTP_ADDR"`
	OMDbAPIKey      string        `env:"OMDB_API_KEY"`
	WordAPIURL      string        `env:"WORD_API_URL"`
	RoundTimeout    time.Duration `env:"WORDGAME_ROUND_TIMEOUT" envDefault:"60s"`
	RoundTick       time.Duration `env:"WORDGAME_TICK" envDefault:"5s"`
	OutboundTimeout time.Duration `env:"OUTBOUND_TIMEOUT" envDefault:"10s"`
	OTLPEndpoint    string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks backend-specific requirements and value ranges.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQLite:
		if c.DatabasePath == "" {
			return fmt.Errorf("%w: DATABASE_PATH is required for the sqlite backend", ErrInvalid)
		}
	case BackendPostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("%w: DATABASE_DSN is required for the postgres backend", ErrInvalid)
		}
	case BackendBolt:
		if c.BoltPath == "" {
			return fmt.Errorf("%w: BOLT_PATH is required for the bolt backend", ErrInvalid)
		}
	case BackendMongo:
		if c.MongoURI == "" || c.MongoDatabase == "" {
			return fmt.Errorf("%w: MONGODB_URI and MONGODB_DATABASE are required for the mongo backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown STORAGE_BACKEND %q", ErrInvalid, c.Backend)
	}

	if strings.TrimSpace(c.Prefix) == "" || strings.ContainsAny(c.Prefix, " \t\n") {
		return fmt.Errorf("%w: PREFIX must be a non-empty token without spaces", ErrInvalid)
	}
	if c.RoundTimeout <= 0 || c.RoundTick <= 0 || c.OutboundTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalid)
	}
	return nil
}

// ControlChat returns where approval requests go, or 0 when nobody can receive them.
func (c *Config) ControlChat() int64 {
	if c.ControlChatID != 0 {
		return c.ControlChatID
	}
	return c.OwnerID
}
