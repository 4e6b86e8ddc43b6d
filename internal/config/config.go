package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	BotToken string
	PayToken string
	Port     string

	Currency      string
	LifetimePrice int64
	LifetimeYears int

	StoreDriver string
	PostgresDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	PreCheckoutTimeout time.Duration

	LogLevel  string
	LogPretty bool
}

// Load reads config.env and .env when present, without overriding variables
// already set in the process environment.
func Load() (*Config, error) {
	for _, path := range []string{"config.env", ".env"} {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	cfg := &Config{
		BotToken:           strings.TrimSpace(os.Getenv("BOT_TOKEN")),
		PayToken:           strings.TrimSpace(os.Getenv("PAY_TOKEN")),
		Port:               getEnv("PORT", "8080"),
		Currency:           strings.ToUpper(getEnv("CURRENCY", "RUB")),
		LifetimePrice:      int64(getEnvInt("LIFETIME_PRICE", 19900)),
		LifetimeYears:      getEnvInt("LIFETIME_YEARS", 100),
		StoreDriver:        strings.ToLower(getEnv("STORE_DRIVER", "postgres")),
		PostgresDSN:        strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
		RedisAddr:          strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		CacheTTL:           getEnvDuration("CACHE_TTL", 10*time.Minute),
		PreCheckoutTimeout: getEnvDuration("PRECHECKOUT_TIMEOUT", 5*time.Second),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogPretty:          getEnv("LOG_PRETTY", "") == "1",
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}
	if c.StoreDriver != "postgres" && c.StoreDriver != "memory" {
		return fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", c.StoreDriver)
	}
	if c.LifetimePrice <= 0 {
		return fmt.Errorf("LIFETIME_PRICE must be positive")
	}
	if c.LifetimeYears <= 0 {
		return fmt.Errorf("LIFETIME_YEARS must be positive")
	}
	// Telegram drops pre-checkout answers after 10 seconds.
	if c.PreCheckoutTimeout <= 0 || c.PreCheckoutTimeout >= 10*time.Second {
		return fmt.Errorf("PRECHECKOUT_TIMEOUT must be between 0 and 10s")
	}
	return nil
}

func getEnv(name, def string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}

func getEnvInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvDuration(name string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
