package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDriver  string
	DBDSN     string
	DBMigrate bool

	PlantID   string
	InboxDir  string
	OutputDir string

	ListenerIntervalSec int
	MetricsAddr         string

	LogLevel  string
	LogFormat string

	SuggestionLimit int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBDriver:  strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBDSN:     getEnv("DB_DSN", getEnv("DB_PATH", filepath.Join(cwd, "data", "reference.db"))),
		DBMigrate: getEnvBool("DB_MIGRATE", true),

		PlantID:   getEnv("ARKIK_PLANT_ID", ""),
		InboxDir:  getEnv("INBOX_DIR", filepath.Join(cwd, "data", "inbox")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		ListenerIntervalSec: getEnvInt("LISTENER_INTERVAL_SEC", 30),
		MetricsAddr:         getEnv("METRICS_ADDR", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		SuggestionLimit: getEnvInt("SUGGESTION_LIMIT", 3),
	}

	switch cfg.DBDriver {
	case "":
		cfg.DBDriver = "sqlite"
	case "sqlite", "pgx":
	default:
		return Config{}, fmt.Errorf("unsupported DB_DRIVER: %s", cfg.DBDriver)
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
