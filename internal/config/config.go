package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds everything the client needs to reach the backend and run its
// local ops surface. Values come from an optional YAML file, overridden by
// environment variables (a .env file is honoured when present).
type Config struct {
	BackendURL   string `yaml:"backend_url"`
	WebsocketURL string `yaml:"websocket_url"`
	StatePath    string `yaml:"state_path"`
	OpsAddr      string `yaml:"ops_addr"`

	AMQPURL      string `yaml:"amqp_url"`
	AMQPExchange string `yaml:"amqp_exchange"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Environment  string `yaml:"environment"`
	Debug        bool   `yaml:"debug"`

	ReconnectRetries int           `yaml:"reconnect_retries"`
	ReconnectBackoff time.Duration `yaml:"reconnect_backoff"`
}

// Load reads the config file named by CHAT_CONFIG (if any) and applies
// environment overrides on top of defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		BackendURL:       "http://localhost:8083",
		WebsocketURL:     "ws://localhost:8083/ws",
		StatePath:        defaultStatePath(),
		OpsAddr:          ":9183",
		AMQPExchange:     "client_events",
		Environment:      "dev",
		ReconnectRetries: 5,
		ReconnectBackoff: 2 * time.Second,
	}

	if path := os.Getenv("CHAT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.BackendURL = getEnv("CHAT_BACKEND_URL", cfg.BackendURL)
	cfg.WebsocketURL = getEnv("CHAT_WS_URL", cfg.WebsocketURL)
	cfg.StatePath = getEnv("CHAT_STATE_PATH", cfg.StatePath)
	cfg.OpsAddr = getEnv("CHAT_OPS_ADDR", cfg.OpsAddr)
	cfg.AMQPURL = getEnv("AMQP_URL", cfg.AMQPURL)
	cfg.AMQPExchange = getEnv("AMQP_EXCHANGE", cfg.AMQPExchange)
	cfg.OTLPEndpoint = getEnv("OTLP_ENDPOINT", cfg.OTLPEndpoint)
	cfg.Environment = getEnv("CHAT_ENV", cfg.Environment)
	cfg.Debug = getBool("CHAT_DEBUG", cfg.Debug)
	cfg.ReconnectRetries = getInt("CHAT_RECONNECT_RETRIES", cfg.ReconnectRetries)
	cfg.ReconnectBackoff = getDuration("CHAT_RECONNECT_BACKOFF", cfg.ReconnectBackoff)

	if cfg.ReconnectRetries < 0 {
		return Config{}, fmt.Errorf("reconnect_retries must not be negative")
	}
	return cfg, nil
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "chat-client.db"
	}
	return home + "/.config/chat-client/state.db"
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getInt(key string, fallback int) int {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
