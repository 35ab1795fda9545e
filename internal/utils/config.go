package utils

import (
	"time"

	"sentinel-guard/internal/model"
)

// Config is the shared configuration for the console, the watcher and the
// mock backend.
type Config struct {
	Application ApplicationConfig `yaml:"application"`
	Stream      StreamConfig      `yaml:"stream"`
	Server      ServerConfig      `yaml:"server"`
	Prometheus  PrometheusConfig  `yaml:"prometheus"`
	Rules       []model.Rule      `yaml:"rules"`
	Alerting    AlertingConfig    `yaml:"alerting"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type ApplicationConfig struct {
	APIBaseURL            string `yaml:"api_base_url"`
	IDSStreamURL          string `yaml:"ids_stream_url"`
	ClientID              string `yaml:"client_id"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	SessionFile           string `yaml:"session_file"`
}

type StreamConfig struct {
	ReconnectIntervalSeconds int `yaml:"reconnect_interval_seconds"`
	HandshakeTimeoutSeconds  int `yaml:"handshake_timeout_seconds"`
	// Zero disables keepalive pings.
	PingIntervalSeconds int `yaml:"ping_interval_seconds"`
}

type UserConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

type CommandQueueConfig struct {
	// "memory" or "redis"
	Backend   string `yaml:"backend"`
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`
}

type AIConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// StreamAddr serves the IDS stream on its own listener; empty mounts it
	// on ListenAddr.
	StreamAddr          string             `yaml:"stream_addr"`
	StreamPath          string             `yaml:"stream_path"`
	JWTSecret           string             `yaml:"jwt_secret"`
	TokenTTLMinutes     int                `yaml:"token_ttl_minutes"`
	Users               []UserConfig       `yaml:"users"`
	MockIntervalSeconds int                `yaml:"mock_interval_seconds"`
	CommandQueue        CommandQueueConfig `yaml:"command_queue"`
	AI                  AIConfig           `yaml:"ai"`
}

type PrometheusConfig struct {
	URL            string `yaml:"url"`
	ExportPort     string `yaml:"export_port"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type AlertChannels struct {
	Log      bool `yaml:"log"`
	Telegram bool `yaml:"telegram"`
	NATS     bool `yaml:"nats"`
}

type TelegramConfig struct {
	BotToken        string `yaml:"bot_token"`
	ChatID          string `yaml:"chat_id"`
	ParseMode       string `yaml:"parse_mode"`
	Enabled         bool   `yaml:"enabled"`
	MessageTemplate string `yaml:"message_template,omitempty"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type AlertingConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Channels AlertChannels  `yaml:"channels"`
	Telegram TelegramConfig `yaml:"telegram"`
	NATS     NATSConfig     `yaml:"nats"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	FilePath string `yaml:"file_path"`
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Application.RequestTimeoutSeconds) * time.Second
}

func (c *Config) ReconnectInterval() time.Duration {
	return time.Duration(c.Stream.ReconnectIntervalSeconds) * time.Second
}

func (c *Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.Stream.HandshakeTimeoutSeconds) * time.Second
}

func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.Stream.PingIntervalSeconds) * time.Second
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Server.TokenTTLMinutes) * time.Minute
}

func (c *Config) MockInterval() time.Duration {
	return time.Duration(c.Server.MockIntervalSeconds) * time.Second
}

func (c *Config) GetRuleConfigByName(name string) (*model.Rule, bool) {
	for i := range c.Rules {
		if c.Rules[i].Name == name {
			return &c.Rules[i], true
		}
	}
	return nil, false
}

func (c *Config) IsRuleEnabled(name string) bool {
	rule, exists := c.GetRuleConfigByName(name)
	return exists && rule.Enabled
}

// GetDefaultConfig returns the configuration used when no file is given.
func GetDefaultConfig() *Config {
	return &Config{
		Application: ApplicationConfig{
			APIBaseURL:            "http://localhost:8080/api",
			IDSStreamURL:          "ws://localhost:8081/ids/stream",
			ClientID:              "SentinelGuard-Pro-Web",
			RequestTimeoutSeconds: 15,
		},
		Stream: StreamConfig{
			ReconnectIntervalSeconds: 3,
			HandshakeTimeoutSeconds:  10,
			PingIntervalSeconds:      30,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			StreamAddr:      ":8081",
			StreamPath:      "/ids/stream",
			JWTSecret:       "sentinel-guard-dev-secret",
			TokenTTLMinutes: 720,
			Users: []UserConfig{
				{Username: "admin", Password: "admin123", Role: "admin"},
			},
			MockIntervalSeconds: 2,
			CommandQueue: CommandQueueConfig{
				Backend: "memory",
			},
			AI: AIConfig{
				TimeoutSeconds: 30,
			},
		},
		Prometheus: PrometheusConfig{
			ExportPort:     "9101",
			TimeoutSeconds: 10,
		},
		Rules: []model.Rule{
			{Name: "high_risk", Enabled: true, Severity: "HIGH", Thresholds: map[string]interface{}{"min_risk": "High"}},
			{Name: "source_burst", Enabled: true, Severity: "MEDIUM", Thresholds: map[string]interface{}{"count": 5, "window_seconds": 60}},
		},
		Alerting: AlertingConfig{
			Enabled: true,
			Channels: AlertChannels{
				Log: true,
			},
			Telegram: TelegramConfig{
				ParseMode: "Markdown",
			},
			NATS: NATSConfig{
				URL:     "nats://localhost:4222",
				Subject: "sentinel.alerts",
			},
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}
