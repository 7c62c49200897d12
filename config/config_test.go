package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("OWNER_ID", "42")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Prefix != "+" || cfg.Backend != BackendSQLite || cfg.DatabasePath != "data.sqlite" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.RoundTimeout != 60*time.Second || cfg.OutboundTimeout != 10*time.Second {
		t.Fatalf("unexpected durations %+v", cfg)
	}
	if cfg.ControlChat() != 42 {
		t.Fatalf("control chat should default to the owner, got %d", cfg.ControlChat())
	}
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error without a token")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("STORAGE_BACKEND", "mongo")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("CONTROL_CHAT_ID", "-100")
	t.Setenv("WORDGAME_ROUND_TIMEOUT", "90s")
	t.Setenv("PREFIX", "!")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != BackendMongo || cfg.MongoDatabase != "groupkeeper" {
		t.Fatalf("unexpected backend settings %+v", cfg)
	}
	if cfg.ControlChat() != -100 || cfg.RoundTimeout != 90*time.Second || cfg.Prefix != "!" {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			TelegramToken:   "t",
			Prefix:          "+",
			Backend:         BackendSQLite,
			DatabasePath:    "data.sqlite",
			RoundTimeout:    time.Minute,
			RoundTick:       time.Second,
			OutboundTimeout: time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Backend = BackendPostgres }, wantErr: true},
		{name: "postgres with dsn", mutate: func(c *Config) { c.Backend = BackendPostgres; c.DatabaseDSN = "host=db" }},
		{name: "bolt without path", mutate: func(c *Config) { c.Backend = BackendBolt }, wantErr: true},
		{name: "mongo without uri", mutate: func(c *Config) { c.Backend = BackendMongo; c.MongoDatabase = "x" }, wantErr: true},
		{name: "unknown backend", mutate: func(c *Config) { c.Backend = "redis" }, wantErr: true},
		{name: "prefix with space", mutate: func(c *Config) { c.Prefix = "a b" }, wantErr: true},
		{name: "zero tick", mutate: func(c *Config) { c.RoundTick = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalid) {
					t.Fatalf("expected ErrInvalid, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
		})
	}
}
