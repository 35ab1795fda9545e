package alert

import (
	"sentinel-guard/internal/model"

	"github.com/sirupsen/logrus"
)

// LogAlertNotifier sends alerts to local logs
type LogAlertNotifier struct {
	logger *logrus.Logger
}

// NewLogAlertNotifier creates a new log alert notifier
func NewLogAlertNotifier(logger *logrus.Logger) *LogAlertNotifier {
	return &LogAlertNotifier{
		logger: logger,
	}
}

// SendAlert implements Notifier interface - sends alert to logs
func (ln *LogAlertNotifier) SendAlert(alert model.Alert) error {
	fields := logrus.Fields{
		"alert_type": alert.Type,
		"severity":   alert.Severity,
	}
	if alert.SourceIP != "" {
		fields["source_ip"] = alert.SourceIP
	}
	if alert.Event != nil {
		fields["threat_id"] = alert.Event.ID
		fields["target_ip"] = alert.Event.TargetIP
		fields["risk_level"] = alert.Event.RiskLevel
	}
	ln.logger.WithFields(fields).Warnf("ALERT [%s] %s: %s", alert.Severity, alert.Type, alert.Message)
	return nil
}
