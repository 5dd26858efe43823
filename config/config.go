// Package config loads server configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Logger    LoggerConfig
	Database  DatabaseConfig
	Inventory InventoryConfig
	Report    ReportConfig
}

type ServerConfig struct {
	AppEnv             string
	HTTPPort           int
	CORSAllowedOrigins []string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
	IsDevelopment     bool
}

type DatabaseConfig struct {
	Path string
}

type InventoryConfig struct {
	ExpiryAlertDays int
	// ExpiryCheckMinutes is the expiry watcher interval; 0 disables it.
	ExpiryCheckMinutes int
}

type ReportConfig struct {
	Currency             string
	SlowMovingWindowDays int
}

// Load reads .env files (if present) and the environment.
// Variables already set in the environment win over .env values.
func Load(envFiles ...string) *Config {
	_ = godotenv.Load(envFiles...)
	return LoadEnv()
}

func LoadEnv() *Config {
	appEnv := getEnv("APP_ENV", "dev")
	return &Config{
		Server: ServerConfig{
			AppEnv:   appEnv,
			HTTPPort: getEnvInt("HTTP_PORT", 8080),
			CORSAllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{
				"http://localhost:3000", "http://localhost:5173", "http://localhost:8080",
			}),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "info"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
			IsDevelopment:     appEnv == "dev" || appEnv == "development",
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "stock.db"),
		},
		Inventory: InventoryConfig{
			ExpiryAlertDays:    getEnvInt("EXPIRY_ALERT_DAYS", 7),
			ExpiryCheckMinutes: getEnvInt("EXPIRY_CHECK_INTERVAL_MINUTES", 60),
		},
		Report: ReportConfig{
			Currency:             getEnv("REPORT_CURRENCY", "INR"),
			SlowMovingWindowDays: getEnvInt("SLOW_MOVING_WINDOW_DAYS", 30),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
