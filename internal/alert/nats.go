package alert

import (
	"encoding/json"
	"fmt"
	"time"

	"sentinel-guard/internal/model"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const DefaultNATSSubject = "sentinel.alerts"

// publisher is the part of *nats.Conn the notifier uses.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes alerts as JSON on a NATS subject.
type NATSNotifier struct {
	conn    *nats.Conn
	pub     publisher
	subject string
	logger  *logrus.Logger
}

func NewNATSNotifier(natsURL, subject string, logger *logrus.Logger) (*NATSNotifier, error) {
	conn, err := nats.Connect(natsURL,
		nats.Name("sentinel-watch"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", natsURL, err)
	}

	logger.Infof("Alert notifier connected to NATS at %s", natsURL)

	n := newNATSNotifier(conn, subject, logger)
	n.conn = conn
	return n, nil
}

func newNATSNotifier(pub publisher, subject string, logger *logrus.Logger) *NATSNotifier {
	if subject == "" {
		subject = DefaultNATSSubject
	}
	return &NATSNotifier{
		pub:     pub,
		subject: subject,
		logger:  logger,
	}
}

func (n *NATSNotifier) SendAlert(alert model.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		return fmt.Errorf("failed to publish alert to %s: %w", n.subject, err)
	}
	n.logger.Debugf("Published alert %s to NATS [%s]", alert.Type, n.subject)
	return nil
}

func (n *NATSNotifier) IsConnected() bool {
	return n.conn != nil && n.conn.IsConnected()
}

func (n *NATSNotifier) Close() {
	if n.conn != nil {
		n.conn.Close()
		n.logger.Info("Alert notifier disconnected from NATS")
	}
}
