package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Port        int    `validate:"gt=0,lt=65536"`
	DatabaseURL string
	NatsURL     string
	NatsToken   string
	LogLevel    string `validate:"oneof=debug info warn error"`

	BatchSize    int           `validate:"gt=0"`
	Workers      int           `validate:"gte=0"`
	BatchTimeout time.Duration `validate:"gt=0"`
	MinLangChars int           `validate:"gte=0"`
	TopKeywords  int           `validate:"gt=0"`
	DateOrder    string        `validate:"omitempty,oneof=dmy mdy"`
}

func Load() (Config, error) {
	cfg := Config{
		Port:        envInt("CHATLENS_PORT", 8760),
		DatabaseURL: envStr("DATABASE_URL", ""),
		NatsURL:     envStr("NATS_URL", "nats://localhost:4222"),
		NatsToken:   envStr("NATS_TOKEN", ""),
		LogLevel:    envStr("LOG_LEVEL", "info"),

		BatchSize:    envInt("CHATLENS_BATCH_SIZE", 2000),
		Workers:      envInt("CHATLENS_WORKERS", 0), // 0: one per CPU
		BatchTimeout: envDuration("CHATLENS_BATCH_TIMEOUT", 60*time.Second),
		MinLangChars: envInt("CHATLENS_MIN_LANG_CHARS", 10),
		TopKeywords:  envInt("CHATLENS_TOP_KEYWORDS", 10),
		DateOrder:    envStr("CHATLENS_DATE_ORDER", ""),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
