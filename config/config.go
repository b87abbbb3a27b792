package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"kiteclient/logger"
)

type Config struct {
	Kite        KiteConfig
	Redis       RedisConfig
	SQLite      SQLiteConfig
	Instruments InstrumentsConfig
}

type KiteConfig struct {
	APIKey       string
	APISecret    string
	UserID       string
	UserPassword string
	TOTPKey      string
	Timeout      time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

type SQLiteConfig struct {
	Path string
}

type InstrumentsConfig struct {
	URL          string
	SnapshotPath string
}

const (
	defaultInstrumentsURL = "https://api.kite.trade/instruments"
	defaultSQLitePath     = "./data/kiteclient.db"
	defaultTimeout        = 7 * time.Second
)

// GetConfig loads configuration from the environment, reading a .env file first
// when one is present in the working directory.
func GetConfig() (*Config, error) {
	log := logger.GetLogger()

	if err := godotenv.Load(); err == nil {
		log.Debug("Loaded environment from .env file", nil)
	}

	cfg := &Config{
		Kite: KiteConfig{
			APIKey:       os.Getenv("KITE_API_KEY"),
			APISecret:    os.Getenv("KITE_API_SECRET"),
			UserID:       os.Getenv("KITE_USER_ID"),
			UserPassword: os.Getenv("KITE_PASSWORD"),
			TOTPKey:      os.Getenv("KITE_TOTP_SECRET"),
			Timeout:      defaultTimeout,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
			Enabled:  getEnvBool("REDIS_ENABLED", false),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", defaultSQLitePath),
		},
		Instruments: InstrumentsConfig{
			URL:          getEnv("INSTRUMENTS_URL", defaultInstrumentsURL),
			SnapshotPath: os.Getenv("INSTRUMENTS_SNAPSHOT"),
		},
	}

	if t := os.Getenv("KITE_TIMEOUT"); t != "" {
		d, err := time.ParseDuration(t)
		if err != nil {
			return nil, fmt.Errorf("invalid KITE_TIMEOUT duration: %w", err)
		}
		cfg.Kite.Timeout = d
	}

	if cfg.Kite.UserID == "" || cfg.Kite.UserPassword == "" {
		return nil, fmt.Errorf("KITE_USER_ID and KITE_PASSWORD are required")
	}
	if cfg.Kite.TOTPKey == "" {
		return nil, fmt.Errorf("KITE_TOTP_SECRET is required")
	}

	log.Info("Successfully loaded config", map[string]interface{}{
		"user_id":     cfg.Kite.UserID,
		"has_api_key": cfg.Kite.APIKey != "",
	})

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
