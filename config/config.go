package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime settings for both the reference server and the tail client
type Config struct {
	Port           string
	DatabaseDriver string
	DatabaseURL    string
	RedisURL       string
	LogLevel       string
	APIURL         string
	WSURL          string
	CompanyID      string
	PageSize       int
	Debounce       time.Duration
}

// Load reads an optional .env file and then the process environment
func Load() (*Config, error) {
	// A missing .env is fine; the environment alone is enough
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_DRIVER", "sqlite3")
	v.SetDefault("DATABASE_URL", "file:ticketchat.db?_foreign_keys=on")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("API_URL", "http://localhost:8080")
	v.SetDefault("WS_URL", "ws://localhost:8080/ws")
	v.SetDefault("COMPANY_ID", "1")
	v.SetDefault("PAGE_SIZE", 20)
	v.SetDefault("DEBOUNCE", "500ms")

	cfg := &Config{
		Port:           v.GetString("PORT"),
		DatabaseDriver: v.GetString("DATABASE_DRIVER"),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		RedisURL:       v.GetString("REDIS_URL"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		APIURL:         v.GetString("API_URL"),
		WSURL:          v.GetString("WS_URL"),
		CompanyID:      v.GetString("COMPANY_ID"),
		PageSize:       v.GetInt("PAGE_SIZE"),
		Debounce:       v.GetDuration("DEBOUNCE"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server or client cannot run with
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.PageSize <= 0 || c.PageSize > 100 {
		return fmt.Errorf("PAGE_SIZE must be between 1 and 100, got %d", c.PageSize)
	}
	if c.Debounce < 0 {
		return fmt.Errorf("DEBOUNCE must not be negative")
	}
	return nil
}
