package utils

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultConfigPath = "configs/sentinel.yaml"

// LoadConfig reads the YAML file at filename, applies .env and SENTINEL_*
// overrides and fills defaults. A missing default file falls back to
// GetDefaultConfig.
func LoadConfig(filename string) (*Config, error) {
	explicit := filename != ""
	if !explicit {
		filename = DefaultConfigPath
	}

	config := GetDefaultConfig()
	data, err := os.ReadFile(filename)
	switch {
	case err == nil:
		config = &Config{}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config file %s: %w", filename, err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	LoadDotEnv()
	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// LoadDotEnv loads the first .env file found; missing files are ignored.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env", "../.env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err == nil {
			return
		}
	}
}

// ApplyEnv overrides selected keys from SENTINEL_* environment variables.
func (c *Config) ApplyEnv() {
	setString(&c.Application.APIBaseURL, "SENTINEL_API_BASE_URL")
	setString(&c.Application.IDSStreamURL, "SENTINEL_IDS_STREAM_URL")
	setString(&c.Application.SessionFile, "SENTINEL_SESSION_FILE")
	setInt(&c.Stream.ReconnectIntervalSeconds, "SENTINEL_RECONNECT_INTERVAL_SECONDS")

	setString(&c.Server.ListenAddr, "SENTINEL_LISTEN_ADDR")
	setString(&c.Server.StreamAddr, "SENTINEL_STREAM_ADDR")
	setString(&c.Server.JWTSecret, "SENTINEL_JWT_SECRET")
	setString(&c.Server.CommandQueue.Backend, "SENTINEL_COMMAND_QUEUE")
	setString(&c.Server.CommandQueue.RedisAddr, "SENTINEL_REDIS_ADDR")
	setString(&c.Server.AI.URL, "SENTINEL_AI_URL")

	setString(&c.Prometheus.URL, "SENTINEL_PROMETHEUS_URL")
	setString(&c.Prometheus.ExportPort, "SENTINEL_PROMETHEUS_EXPORT_PORT")

	setString(&c.Alerting.Telegram.BotToken, "SENTINEL_TELEGRAM_BOT_TOKEN")
	setString(&c.Alerting.Telegram.ChatID, "SENTINEL_TELEGRAM_CHAT_ID")
	setString(&c.Alerting.NATS.URL, "SENTINEL_NATS_URL")

	setString(&c.Logging.Level, "SENTINEL_LOG_LEVEL")
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setInt(dst *int, key string) {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			*dst = n
		}
	}
}

func (c *Config) Validate() error {
	if c.Application.APIBaseURL == "" {
		c.Application.APIBaseURL = "http://localhost:8080/api"
	}
	c.Application.APIBaseURL = strings.TrimRight(c.Application.APIBaseURL, "/")
	if _, err := url.Parse(c.Application.APIBaseURL); err != nil {
		return fmt.Errorf("invalid api_base_url: %w", err)
	}
	if c.Application.IDSStreamURL == "" {
		c.Application.IDSStreamURL = "ws://localhost:8081/ids/stream"
	}
	if u, err := url.Parse(c.Application.IDSStreamURL); err != nil {
		return fmt.Errorf("invalid ids_stream_url: %w", err)
	} else if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("ids_stream_url must use ws or wss, got %q", u.Scheme)
	}
	if c.Application.ClientID == "" {
		c.Application.ClientID = "SentinelGuard-Pro-Web"
	}
	if c.Application.RequestTimeoutSeconds <= 0 {
		c.Application.RequestTimeoutSeconds = 15
	}

	if c.Stream.ReconnectIntervalSeconds <= 0 {
		c.Stream.ReconnectIntervalSeconds = 3
	}
	if c.Stream.HandshakeTimeoutSeconds <= 0 {
		c.Stream.HandshakeTimeoutSeconds = 10
	}
	if c.Stream.PingIntervalSeconds < 0 {
		c.Stream.PingIntervalSeconds = 0
	}

	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.StreamPath == "" {
		c.Server.StreamPath = "/ids/stream"
	}
	if c.Server.JWTSecret == "" {
		return fmt.Errorf("server jwt_secret cannot be empty")
	}
	if c.Server.TokenTTLMinutes <= 0 {
		c.Server.TokenTTLMinutes = 720
	}
	if c.Server.MockIntervalSeconds < 0 {
		c.Server.MockIntervalSeconds = 0
	}
	switch c.Server.CommandQueue.Backend {
	case "":
		c.Server.CommandQueue.Backend = "memory"
	case "memory":
	case "redis":
		if c.Server.CommandQueue.RedisAddr == "" {
			c.Server.CommandQueue.RedisAddr = "localhost:6379"
		}
	default:
		return fmt.Errorf("unknown command_queue backend %q", c.Server.CommandQueue.Backend)
	}
	if c.Server.AI.TimeoutSeconds <= 0 {
		c.Server.AI.TimeoutSeconds = 30
	}

	if c.Prometheus.ExportPort == "" {
		c.Prometheus.ExportPort = "9101"
	}
	if c.Prometheus.TimeoutSeconds <= 0 {
		c.Prometheus.TimeoutSeconds = 10
	}

	for i := range c.Rules {
		if c.Rules[i].Name == "" {
			return fmt.Errorf("rule %d has no name", i)
		}
		if c.Rules[i].Severity == "" {
			c.Rules[i].Severity = "MEDIUM"
		}
	}

	if c.Alerting.Channels.Telegram && (c.Alerting.Telegram.BotToken == "" || c.Alerting.Telegram.ChatID == "") {
		return fmt.Errorf("telegram channel enabled without bot_token and chat_id")
	}
	if c.Alerting.NATS.URL == "" {
		c.Alerting.NATS.URL = "nats://localhost:4222"
	}
	if c.Alerting.NATS.Subject == "" {
		c.Alerting.NATS.Subject = "sentinel.alerts"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	return nil
}

// SaveConfig writes the configuration as YAML.
func (c *Config) SaveConfig(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", filename, err)
	}

	return nil
}
