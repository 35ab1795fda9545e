package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sentinel-guard/internal/alert"
	"sentinel-guard/internal/client"
	"sentinel-guard/internal/model"
	"sentinel-guard/internal/pipeline"
	"sentinel-guard/internal/rules"
	"sentinel-guard/internal/session"
	"sentinel-guard/internal/utils"

	"github.com/sirupsen/logrus"
)

const statsInterval = time.Minute

func main() {
	var (
		configFile   = flag.String("config", utils.DefaultConfigPath, "Configuration file path (YAML)")
		username     = flag.String("username", "", "Log in with this user before subscribing")
		password     = flag.String("password", "", "Password for -username")
		showVersion  = flag.Bool("version", false, "Show version information")
		testTelegram = flag.Bool("test-telegram", false, "Send test message to Telegram")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("Sentinel Guard stream watcher v1.0.0")
		return
	}

	config, err := utils.LoadConfig(*configFile)
	if err != nil {
		fmt.Printf("Failed to load YAML config %s: %v\n", *configFile, err)
		os.Exit(1)
	}

	logger := utils.NewLogger(config.Logging.Level, config.Logging.Format, config.Logging.FilePath)

	if *testTelegram {
		testTelegramNotification(config, logger)
		return
	}

	sess, err := session.Open(config.Application.SessionFile)
	if err != nil {
		logger.Warnf("Ignoring saved session: %v", err)
	}

	if *username != "" {
		api := client.NewAPIClient(client.APIConfig{
			BaseURL:  config.Application.APIBaseURL,
			ClientID: config.Application.ClientID,
			Timeout:  config.RequestTimeout(),
		}, sess, logger)
		ctx, cancel := context.WithTimeout(context.Background(), config.RequestTimeout())
		_, err := api.Login(ctx, *username, *password)
		cancel()
		if err != nil {
			logger.Fatalf("Login failed: %v", err)
		}
	}
	if !sess.Authenticated() {
		logger.Warn("No saved session; the stream will not deliver alerts until authenticated (use -username)")
	}

	exporter := alert.NewPrometheusExporter(config.Prometheus.ExportPort, alert.CreateCustomRegistry(), logger)
	metrics := exporter.GetMetrics()

	var promClient *client.PrometheusClient
	if config.Prometheus.URL != "" {
		promClient, err = client.NewPrometheusClient(config.Prometheus.URL)
		if err != nil {
			logger.Warnf("Failed to create Prometheus client: %v", err)
			promClient = nil
		}
	}

	engine := rules.NewEngine(logger)
	registerBuiltinRules(engine, config, logger, promClient)
	closeNotifiers := registerAlertNotifiers(engine, config, logger)
	defer closeNotifiers()
	engine.OnAlert(func(a model.Alert) {
		metrics.RecordAlert(a.Severity, a.Type)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := exporter.Start(ctx); err != nil {
			logger.Errorf("Prometheus exporter error: %v", err)
		}
	}()

	engine.StartPeriodic(ctx)

	watchStream(ctx, config, sess, engine, metrics, logger)
}

// registerAlertNotifiers wires the configured channels into the engine and
// returns a function releasing their connections.
func registerAlertNotifiers(engine *rules.Engine, config *utils.Config, logger *logrus.Logger) func() {
	if !config.Alerting.Enabled {
		logger.Info("Alerting disabled; alerts are only printed")
		return func() {}
	}

	var notifiers alert.MultiNotifier
	closers := []func(){}

	if config.Alerting.Channels.Log {
		notifiers = append(notifiers, alert.NewLogAlertNotifier(logger))
	}

	if config.Alerting.Channels.Telegram && config.Alerting.Telegram.Enabled {
		notifiers = append(notifiers, alert.NewTelegramNotifierWithTemplate(
			config.Alerting.Telegram.BotToken,
			config.Alerting.Telegram.ChatID,
			config.Alerting.Telegram.ParseMode,
			config.Alerting.Telegram.Enabled,
			config.Alerting.Telegram.MessageTemplate,
			logger,
		))
	}

	if config.Alerting.Channels.NATS {
		natsNotifier, err := alert.NewNATSNotifier(config.Alerting.NATS.URL, config.Alerting.NATS.Subject, logger)
		if err != nil {
			logger.Errorf("NATS notifier disabled: %v", err)
		} else {
			notifiers = append(notifiers, natsNotifier)
			closers = append(closers, natsNotifier.Close)
		}
	}

	if len(notifiers) > 0 {
		engine.RegisterNotifier(notifiers)
	}
	return func() {
		for _, c := range closers {
			c()
		}
	}
}

func watchStream(ctx context.Context, config *utils.Config, sess *session.Session, engine *rules.Engine, metrics *client.StreamMetrics, logger *logrus.Logger) {
	fmt.Println("\n =============================================== IDS STREAM WATCH ===============================================")

	processor := pipeline.NewProcessor(engine)

	stream := client.NewStreamClient(client.StreamConfig{
		URL:               config.Application.IDSStreamURL,
		ReconnectInterval: config.ReconnectInterval(),
		HandshakeTimeout:  config.HandshakeTimeout(),
		PingInterval:      config.PingInterval(),
	}, sess, logger, metrics)
	stream.OnDecodeError(func(err error) {
		processor.RecordDecodeFailure()
		logger.Debugf("Dropped stream frame: %v", err)
	})
	stream.OnReconnect(processor.RecordReconnect)

	go printAlerts(ctx, engine)

	err := stream.Connect(ctx, func(event model.ThreatEvent) {
		processor.Process(ctx, &event)
	}, func(connected bool) {
		if connected {
			logger.Info("IDS stream connected")
		} else {
			logger.Warn("IDS stream connection lost")
		}
	})
	if err != nil {
		logger.Fatalf("Failed to start stream: %v", err)
	}

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nStopping stream watch...")
			stream.Disconnect()
			logStats(processor.Stats(), logger)
			return
		case <-ticker.C:
			logStats(processor.Stats(), logger)
		}
	}
}

func printAlerts(ctx context.Context, engine *rules.Engine) {
	alerts := engine.GetAlertChannel()
	for {
		select {
		case a := <-alerts:
			severityEmoji := "⚠️"
			switch a.Severity {
			case "CRITICAL", "HIGH":
				severityEmoji = "🔴"
			case "MEDIUM":
				severityEmoji = "🟡"
			case "LOW":
				severityEmoji = "🟢"
			}
			fmt.Printf("\n%s [%s] %s - %s\n", severityEmoji, a.Timestamp.Format(model.TimeLayout), a.Severity, a.Message)
		case <-ctx.Done():
			return
		}
	}
}

func logStats(stats model.StreamStats, logger *logrus.Logger) {
	logger.WithFields(logrus.Fields{
		"events":          stats.TotalEvents,
		"high":            stats.ByRisk[model.RiskHigh],
		"medium":          stats.ByRisk[model.RiskMedium],
		"low":             stats.ByRisk[model.RiskLow],
		"decode_failures": stats.DecodeFailures,
		"reconnects":      stats.Reconnects,
	}).Info("Stream statistics")
}

func testTelegramNotification(config *utils.Config, logger *logrus.Logger) {
	telegramNotifier := alert.NewTelegramNotifier(
		config.Alerting.Telegram.BotToken,
		config.Alerting.Telegram.ChatID,
		config.Alerting.Telegram.ParseMode,
		config.Alerting.Telegram.Enabled,
		logger,
	)

	if !telegramNotifier.IsEnabled() {
		fmt.Println("❌ Telegram notifier is disabled in configuration")
		return
	}

	fmt.Println("Sending test message to Telegram...")
	if err := telegramNotifier.SendTestMessage(); err != nil {
		fmt.Printf("❌ Failed to send test message: %v\n", err)
		return
	}

	fmt.Println("✅ Test message sent successfully to Telegram!")
}
