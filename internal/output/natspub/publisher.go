// Package natspub publishes enriched events and alerts to NATS subjects.
package natspub

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"seclog/internal/logger"
	"seclog/pkg/models"
)

// Config configures the publisher.
type Config struct {
	URL          string
	EventSubject string
	AlertSubject string
}

// Conn is the subset of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Publisher forwards events and alerts as JSON messages.
type Publisher struct {
	conn         Conn
	eventSubject string
	alertSubject string
}

// Connect dials NATS and returns a publisher.
func Connect(cfg Config) (*Publisher, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("seclog"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warnf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Infof("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	logger.Infof("NATS publisher connected: %s", cfg.URL)
	return New(nc, cfg), nil
}

// New wraps an existing connection.
func New(conn Conn, cfg Config) *Publisher {
	if cfg.EventSubject == "" {
		cfg.EventSubject = "seclog.events"
	}
	if cfg.AlertSubject == "" {
		cfg.AlertSubject = "seclog.alerts"
	}
	return &Publisher{conn: conn, eventSubject: cfg.EventSubject, alertSubject: cfg.AlertSubject}
}

// OnEvent publishes an enriched event.
func (p *Publisher) OnEvent(event *models.Event) error {
	return p.publish(p.eventSubject, event)
}

// OnAlert publishes an alert.
func (p *Publisher) OnAlert(alert *models.Alert) error {
	return p.publish(p.alertSubject, alert)
}

func (p *Publisher) publish(subject string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", subject, err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}
