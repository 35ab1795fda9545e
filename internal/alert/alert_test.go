package alert

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"sentinel-guard/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func sampleAlert() model.Alert {
	return model.Alert{
		Type:      "high_risk",
		Severity:  "HIGH",
		SourceIP:  "6.6.6.6",
		Message:   "High risk DDoS attack",
		Timestamp: time.Date(2025, 4, 1, 9, 30, 0, 0, time.UTC),
		Event:     &model.ThreatEvent{ID: "T-1", TargetIP: "10.0.0.5", Type: "DDoS", RiskLevel: model.RiskHigh},
	}
}

func TestLogAlertNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	require.NoError(t, NewLogAlertNotifier(logger).SendAlert(sampleAlert()))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "T-1", entry["threat_id"])
	assert.Equal(t, "6.6.6.6", entry["source_ip"])
}

func TestTelegramNotifier_DefaultFormat(t *testing.T) {
	var got TelegramMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("TOKEN", "42", "Markdown", true, quietLogger())
	tn.SetAPIURL(srv.URL, time.Millisecond)

	require.NoError(t, tn.SendAlert(sampleAlert()))
	assert.Equal(t, "42", got.ChatID)
	assert.Empty(t, got.ParseMode)
	assert.Contains(t, got.Text, "alert_name: high_risk")
	assert.Contains(t, got.Text, "target: 10.0.0.5")
	assert.Contains(t, got.Text, "time: 2025-04-01 09:30:00")
}

func TestTelegramNotifier_Template(t *testing.T) {
	var got TelegramMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tn := NewTelegramNotifierWithTemplate("T", "1", "", true, `{{.Severity}} {{.SourceIP}} {{formatTime .Timestamp "15:04"}}`, quietLogger())
	tn.SetAPIURL(srv.URL, time.Millisecond)

	require.NoError(t, tn.SendAlert(sampleAlert()))
	assert.Equal(t, "HIGH 6.6.6.6 09:30", got.Text)
}

func TestTelegramNotifier_RetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	tn := NewTelegramNotifier("T", "1", "", true, quietLogger())
	tn.SetAPIURL(srv.URL, time.Millisecond)

	err := tn.SendAlert(sampleAlert())
	require.Error(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestTelegramNotifier_Disabled(t *testing.T) {
	tn := NewTelegramNotifier("T", "1", "", false, quietLogger())
	assert.NoError(t, tn.SendAlert(sampleAlert()))
	assert.Error(t, tn.SendTestMessage())
}

type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.subject = subject
	f.data = data
	return f.err
}

func TestNATSNotifier(t *testing.T) {
	pub := &fakePublisher{}
	n := newNATSNotifier(pub, "", quietLogger())

	require.NoError(t, n.SendAlert(sampleAlert()))
	assert.Equal(t, DefaultNATSSubject, pub.subject)

	var decoded model.Alert
	require.NoError(t, json.Unmarshal(pub.data, &decoded))
	assert.Equal(t, "high_risk", decoded.Type)
	assert.Equal(t, "T-1", decoded.Event.ID)
	assert.False(t, n.IsConnected())

	pub.err = errors.New("no responders")
	assert.Error(t, n.SendAlert(sampleAlert()))
}

func TestMultiNotifier(t *testing.T) {
	ok := &fakePublisher{}
	bad := &fakePublisher{err: errors.New("down")}
	multi := MultiNotifier{newNATSNotifier(ok, "a", quietLogger()), newNATSNotifier(bad, "b", quietLogger())}

	err := multi.SendAlert(sampleAlert())
	require.Error(t, err)
	assert.Equal(t, "a", ok.subject)
}

func TestPrometheusExporter_Handler(t *testing.T) {
	exporter := NewPrometheusExporter("0", prometheus.NewRegistry(), quietLogger())
	exporter.GetMetrics().RecordAlert("HIGH", "high_risk")

	srv := httptest.NewServer(exporter.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.True(t, strings.Contains(string(body), `sentinel_alerts_total{severity="HIGH",type="high_risk"} 1`))

	health, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestTelegramNotifier_RenderFallbacks(t *testing.T) {
	tn := NewTelegramNotifier("T", "1", "", true, quietLogger())

	text := tn.render(model.Alert{Type: "new_source", Message: "first sighting"})
	assert.Contains(t, text, "source: unknown")
	assert.Contains(t, text, "attack: unknown")

	long := tn.render(model.Alert{Type: "x", Message: strings.Repeat("a", 5000)})
	assert.Len(t, long, telegramMaxLength)
	assert.True(t, strings.HasSuffix(long, "..."))
}
