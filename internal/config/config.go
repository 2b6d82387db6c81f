package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port            int           `yaml:"port"`
	LogLevel        string        `yaml:"log_level"`
	OpenAIAPIKey    string        `yaml:"openai_api_key"`
	OpenAIBaseURL   string        `yaml:"openai_base_url"`
	AssistantID     string        `yaml:"assistant_id"`
	PlacesAPIKey    string        `yaml:"places_api_key"`
	PlacesBaseURL   string        `yaml:"places_base_url"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	PollAttempts    int           `yaml:"poll_attempts"`
	SessionTTL      time.Duration `yaml:"session_ttl"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	NatsURL         string        `yaml:"nats_url"`
	NatsToken       string        `yaml:"nats_token"`
	DatabaseURL     string        `yaml:"database_url"`
}

func defaults() Config {
	return Config{
		Port:            5000,
		LogLevel:        "info",
		PollInterval:    2 * time.Second,
		PollAttempts:    10,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// AVA_CONFIG (if set), then environment variables.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("AVA_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.Port = envInt("PORT", cfg.Port)
	cfg.LogLevel = envStr("LOG_LEVEL", cfg.LogLevel)
	cfg.OpenAIAPIKey = envStr("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.OpenAIBaseURL = envStr("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.AssistantID = envStr("ASSISTANT_ID", cfg.AssistantID)
	cfg.PlacesAPIKey = envStr("GOOGLE_PLACES_API_KEY", cfg.PlacesAPIKey)
	cfg.PlacesBaseURL = envStr("PLACES_BASE_URL", cfg.PlacesBaseURL)
	cfg.PollInterval = envDuration("POLL_INTERVAL", cfg.PollInterval)
	cfg.PollAttempts = envInt("POLL_ATTEMPTS", cfg.PollAttempts)
	cfg.SessionTTL = envDuration("SESSION_TTL", cfg.SessionTTL)
	cfg.ShutdownTimeout = envDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.NatsURL = envStr("NATS_URL", cfg.NatsURL)
	cfg.NatsToken = envStr("NATS_TOKEN", cfg.NatsToken)
	cfg.DatabaseURL = envStr("DATABASE_URL", cfg.DatabaseURL)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.PollAttempts < 1 {
		return fmt.Errorf("poll attempts must be at least 1, got %d", c.PollAttempts)
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll interval must not be negative, got %s", c.PollInterval)
	}
	if c.SessionTTL < 0 {
		return fmt.Errorf("session ttl must not be negative, got %s", c.SessionTTL)
	}
	return nil
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// loadFile overlays a YAML file onto cfg. ${VAR} references are expanded from
// the environment before parsing.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	expanded := envPattern.ReplaceAllStringFunc(string(data), func(m string) string {
		return os.Getenv(envPattern.FindStringSubmatch(m)[1])
	})

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
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
