// Package config loads runtime configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// App holds runtime configuration derived from env vars.
type App struct {
	DatabaseURL  string
	KafkaBrokers string
	KafkaTopic   string
	APIPort      string
	Environment  string
	LogLevel     string
	LogEncoding  string
	CORSOrigins  []string

	GeneratorInterval time.Duration
	ProcessorInterval time.Duration
	CatalogRefresh    time.Duration
	DrainTimeout      time.Duration
}

// FromEnv loads the application configuration from environment variables,
// falling back to defaults for everything except DATABASE_URL.
func FromEnv() App {
	return App{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		KafkaBrokers: getEnv("KAFKA_BROKERS", "localhost:9092"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "scheduled-event-outcomes"),
		APIPort:      getEnv("API_PORT", "8080"),
		Environment:  getEnv("ENVIRONMENT", "production"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogEncoding:  getEnv("LOG_ENCODING", "json"),
		CORSOrigins:  getCORSOrigins(),

		GeneratorInterval: getEnvSeconds("GENERATOR_INTERVAL_SECONDS", 60),
		ProcessorInterval: getEnvSeconds("PROCESSOR_INTERVAL_SECONDS", 60),
		CatalogRefresh:    getEnvSeconds("CATALOG_REFRESH_SECONDS", 60),
		DrainTimeout:      getEnvSeconds("DRAIN_TIMEOUT_SECONDS", 30),
	}
}

// Brokers splits KafkaBrokers into individual addresses.
func (a App) Brokers() []string {
	parts := strings.Split(a.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// IsDevelopment reports whether the app runs in a development environment.
func (a App) IsDevelopment() bool {
	return a.Environment == "development"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvSeconds reads an integer number of seconds; non-positive or
// unparseable values fall back.
func getEnvSeconds(key string, fallback int) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return time.Duration(fallback) * time.Second
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return time.Duration(fallback) * time.Second
	}
	return time.Duration(secs) * time.Second
}

func getCORSOrigins() []string {
	raw := os.Getenv("CORS_ORIGINS")
	if raw == "" {
		return []string{"*"}
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
