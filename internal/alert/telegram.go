package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"text/template"
	"time"

	"sentinel-guard/internal/model"

	"github.com/sirupsen/logrus"
)

const (
	telegramAPIURL     = "https://api.telegram.org"
	telegramMaxRetries = 3
	// Bot API rejects longer texts.
	telegramMaxLength = 4096
)

const defaultTelegramTemplate = `ALERT FIRING: SentinelGuard

alert_name: {{.Type}}
time: {{formatTime .Timestamp "2006-01-02 15:04:05"}}
severity: {{.Severity}}
source: {{.Source}}
target: {{.Target}}
attack: {{.Attack}}
risk: {{.Risk}}
description: {{.Message}}`

var telegramFuncs = template.FuncMap{
	"formatTime": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
	"upper": strings.ToUpper,
}

var defaultTelegramTmpl = template.Must(template.New("telegram_default").Funcs(telegramFuncs).Parse(defaultTelegramTemplate))

type TelegramNotifier struct {
	botToken        string
	chatID          string
	parseMode       string
	enabled         bool
	messageTemplate *template.Template
	client          *http.Client
	logger          *logrus.Logger
	apiURL          string
	retryDelay      time.Duration
}

type TelegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type TelegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// alertView is what message templates see: the alert's own fields plus the
// event details flattened, with "unknown" for anything missing.
type alertView struct {
	model.Alert
	Source string
	Target string
	Attack string
	Risk   string
}

func newAlertView(alert model.Alert) alertView {
	v := alertView{Alert: alert, Source: alert.SourceIP, Target: "unknown", Attack: "unknown", Risk: "unknown"}
	if e := alert.Event; e != nil {
		if v.Source == "" {
			v.Source = e.SourceIP
		}
		v.Target = orUnknown(e.TargetIP)
		v.Attack = orUnknown(e.Type)
		v.Risk = orUnknown(string(e.RiskLevel))
	}
	v.Source = orUnknown(v.Source)
	return v
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func NewTelegramNotifier(botToken, chatID, parseMode string, enabled bool, logger *logrus.Logger) *TelegramNotifier {
	return NewTelegramNotifierWithTemplate(botToken, chatID, parseMode, enabled, "", logger)
}

// NewTelegramNotifierWithTemplate uses messageTemplate for alert texts. A
// blank or unparsable template falls back to the built-in format.
func NewTelegramNotifierWithTemplate(botToken, chatID, parseMode string, enabled bool, messageTemplate string, logger *logrus.Logger) *TelegramNotifier {
	tn := &TelegramNotifier{
		botToken:        botToken,
		chatID:          chatID,
		parseMode:       parseMode,
		enabled:         enabled,
		messageTemplate: defaultTelegramTmpl,
		client:          &http.Client{Timeout: 30 * time.Second},
		logger:          logger,
		apiURL:          telegramAPIURL,
		retryDelay:      time.Second,
	}

	if strings.TrimSpace(messageTemplate) != "" {
		tmpl, err := template.New("telegram_message").Funcs(telegramFuncs).Parse(messageTemplate)
		if err != nil {
			logger.Warnf("Failed to parse Telegram message template: %v, using default format", err)
		} else {
			tn.messageTemplate = tmpl
		}
	}

	return tn
}

// SendAlert delivers the alert, retrying with a linearly growing delay.
func (tn *TelegramNotifier) SendAlert(alert model.Alert) error {
	if !tn.enabled {
		tn.logger.Debug("Telegram notifier is disabled, skipping alert")
		return nil
	}

	text := tn.render(alert)

	var lastErr error
	for attempt := 1; attempt <= telegramMaxRetries; attempt++ {
		if lastErr = tn.sendMessage(context.Background(), text); lastErr == nil {
			tn.logger.Debugf("Alert %s sent to Telegram", alert.Type)
			return nil
		}
		tn.logger.Warnf("Telegram delivery of %s failed (attempt %d/%d): %v", alert.Type, attempt, telegramMaxRetries, lastErr)
		if attempt < telegramMaxRetries {
			time.Sleep(time.Duration(attempt) * tn.retryDelay)
		}
	}
	return fmt.Errorf("telegram: giving up after %d attempts: %w", telegramMaxRetries, lastErr)
}

func (tn *TelegramNotifier) render(alert model.Alert) string {
	var buf bytes.Buffer
	if err := tn.messageTemplate.Execute(&buf, newAlertView(alert)); err != nil {
		tn.logger.Warnf("Failed to execute message template: %v, using default format", err)
		buf.Reset()
		if err := defaultTelegramTmpl.Execute(&buf, newAlertView(alert)); err != nil {
			return alert.Message
		}
	}
	text := buf.String()
	if len(text) > telegramMaxLength {
		text = text[:telegramMaxLength-3] + "..."
	}
	return text
}

func (tn *TelegramNotifier) sendMessage(ctx context.Context, text string) error {
	// Markdown modes choke on IPs and attack names with underscores, so
	// only HTML is forwarded.
	parseMode := ""
	if tn.parseMode != "" && tn.parseMode != "Markdown" && tn.parseMode != "MarkdownV2" {
		parseMode = tn.parseMode
	}

	body, err := json.Marshal(TelegramMessage{ChatID: tn.chatID, Text: text, ParseMode: parseMode})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", tn.apiURL, tn.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := tn.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var tr TelegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	if !tr.OK {
		return fmt.Errorf("telegram API error (status %d): %s", resp.StatusCode, tr.Description)
	}
	return nil
}

func (tn *TelegramNotifier) SendTestMessage() error {
	if !tn.enabled {
		return fmt.Errorf("telegram notifier is disabled")
	}
	return tn.sendMessage(context.Background(), "Test Message\n\nSentinelGuard watcher is working correctly!")
}

func (tn *TelegramNotifier) IsEnabled() bool {
	return tn.enabled
}

// SetAPIURL points the notifier at another Bot API endpoint.
func (tn *TelegramNotifier) SetAPIURL(apiURL string, retryDelay time.Duration) {
	tn.apiURL = strings.TrimRight(apiURL, "/")
	tn.retryDelay = retryDelay
}
