package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Supported session store backends.
const (
	StoreBackendPostgres   = "postgres"
	StoreBackendFilesystem = "filesystem"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv            string
	Port              string
	PublicBaseURL     string
	SessionStore      string
	DatabaseURL       string
	StoragePath       string
	MistralAPIKey     string
	MistralModel      string
	MistralBaseURL    string
	BFLAPIKey         string
	BFLBaseURL        string
	IterationCount    int
	StaticPromptCount int
	PollInterval      time.Duration
	PollMaxAttempts   int
	MaxUploadBytes    int64
	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	HTTPIdleTimeout   time.Duration
	RateLimitPerMin   int
	AllowedOrigins    []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		PublicBaseURL:     getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		SessionStore:      getEnv("SESSION_STORE", StoreBackendFilesystem),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		StoragePath:       getEnv("STORAGE_PATH", "./storage"),
		MistralAPIKey:     os.Getenv("MISTRAL_API_KEY"),
		MistralModel:      getEnv("MISTRAL_MODEL", "pixtral-large-2411"),
		MistralBaseURL:    getEnv("MISTRAL_BASE_URL", "https://api.mistral.ai/v1"),
		BFLAPIKey:         os.Getenv("BFL_API_KEY"),
		BFLBaseURL:        getEnv("BFL_BASE_URL", "https://api.us1.bfl.ai"),
		IterationCount:    getEnvInt("ITERATION_COUNT", 8),
		StaticPromptCount: getEnvInt("STATIC_PROMPT_COUNT", 3),
		PollInterval:      time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 5)),
		PollMaxAttempts:   getEnvInt("POLL_MAX_ATTEMPTS", 60),
		MaxUploadBytes:    int64(getEnvInt("MAX_UPLOAD_MB", 50)) << 20,
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 60)),
		// The /process stream stays open for the whole run, which can take
		// several minutes. Zero disables the write deadline.
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 0)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 10),
		AllowedOrigins:   splitCSV(os.Getenv("ALLOWED_ORIGINS")),
	}

	switch cfg.SessionStore {
	case StoreBackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when SESSION_STORE=postgres")
		}
	case StoreBackendFilesystem:
		if cfg.StoragePath == "" {
			return nil, fmt.Errorf("STORAGE_PATH is required when SESSION_STORE=filesystem")
		}
	default:
		return nil, fmt.Errorf("unsupported SESSION_STORE %q", cfg.SessionStore)
	}

	if cfg.IterationCount <= 0 {
		return nil, fmt.Errorf("ITERATION_COUNT must be positive")
	}
	if cfg.StaticPromptCount < 0 || cfg.StaticPromptCount > cfg.IterationCount {
		return nil, fmt.Errorf("STATIC_PROMPT_COUNT must be between 0 and ITERATION_COUNT")
	}
	if cfg.PollMaxAttempts <= 0 {
		return nil, fmt.Errorf("POLL_MAX_ATTEMPTS must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
