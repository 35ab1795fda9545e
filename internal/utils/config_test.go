package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_FillsDefaults(t *testing.T) {
	path := writeConfig(t, `
application:
  api_base_url: http://backend:8080/api/
server:
  jwt_secret: s3cret
rules:
  - name: source_burst
    enabled: true
    thresholds:
      count: 3
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://backend:8080/api", cfg.Application.APIBaseURL)
	assert.Equal(t, "ws://localhost:8081/ids/stream", cfg.Application.IDSStreamURL)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 3*time.Second, cfg.ReconnectInterval())
	assert.Equal(t, "memory", cfg.Server.CommandQueue.Backend)
	assert.Equal(t, "sentinel.alerts", cfg.Alerting.NATS.Subject)

	rule, ok := cfg.GetRuleConfigByName("source_burst")
	require.True(t, ok)
	assert.Equal(t, "MEDIUM", rule.Severity)
	assert.Equal(t, 3, rule.Thresholds["count"])
	assert.True(t, cfg.IsRuleEnabled("source_burst"))
	assert.False(t, cfg.IsRuleEnabled("high_risk"))
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad yaml":     "application: [",
		"no secret":    "server:\n  jwt_secret: \"\"\n",
		"bad scheme":   "server:\n  jwt_secret: x\napplication:\n  ids_stream_url: http://x/ids\n",
		"bad queue":    "server:\n  jwt_secret: x\n  command_queue:\n    backend: kafka\n",
		"telegram":     "server:\n  jwt_secret: x\nalerting:\n  channels:\n    telegram: true\n",
		"unnamed rule": "server:\n  jwt_secret: x\nrules:\n  - enabled: true\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SENTINEL_API_BASE_URL", "http://env:9000/api")
	t.Setenv("SENTINEL_RECONNECT_INTERVAL_SECONDS", "7")
	t.Setenv("SENTINEL_COMMAND_QUEUE", "redis")

	cfg, err := LoadConfig(writeConfig(t, "server:\n  jwt_secret: x\n"))
	require.NoError(t, err)

	assert.Equal(t, "http://env:9000/api", cfg.Application.APIBaseURL)
	assert.Equal(t, 7*time.Second, cfg.ReconnectInterval())
	assert.Equal(t, "redis", cfg.Server.CommandQueue.Backend)
	assert.Equal(t, "localhost:6379", cfg.Server.CommandQueue.RedisAddr)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("SENTINEL_AI_URL=http://ai:5000/ask\n"), 0o644))
	t.Setenv("SENTINEL_AI_URL", "")
	os.Unsetenv("SENTINEL_AI_URL")

	LoadDotEnv(envFile)
	t.Cleanup(func() { os.Unsetenv("SENTINEL_AI_URL") })

	cfg := GetDefaultConfig()
	cfg.ApplyEnv()
	assert.Equal(t, "http://ai:5000/ask", cfg.Server.AI.URL)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := GetDefaultConfig()
	require.NoError(t, cfg.SaveConfig(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Server.Users, loaded.Server.Users)
	assert.Len(t, loaded.Rules, 2)
}

func TestNewLogger(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "sentinel.log")
	logger := NewLogger("debug", "json", logFile)

	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	logger.Info("hello")
	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)

	assert.Equal(t, logrus.WarnLevel, NewLogger("WARN", "text", "").GetLevel())
	assert.Equal(t, logrus.InfoLevel, NewLogger("", "", "").GetLevel())
}
