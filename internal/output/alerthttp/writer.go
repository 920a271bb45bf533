package alerthttp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"seclog/internal/logger"
	"seclog/internal/metrics"
	"seclog/pkg/models"
)

// Writer posts alerts to a webhook. A circuit breaker stops calling an
// endpoint that keeps failing until the open timeout elapses.
type Writer struct {
	url     string
	headers map[string]string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// Config configures the HTTP writer.
type Config struct {
	URL              string
	Timeout          time.Duration
	Headers          map[string]string
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// NewWriter creates an HTTP writer.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("http alert URL is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "alert-webhook",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.WebhookBreakerState.Set(float64(to))
			logger.Warnf("Circuit breaker %s: %s -> %s", name, from, to)
		},
	}

	return &Writer{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
	}, nil
}

// OnAlert posts one alert.
func (w *Writer) OnAlert(alert *models.Alert) error {
	return w.WriteAlerts(context.Background(), []*models.Alert{alert})
}

// WriteAlerts posts a batch of alerts as a JSON array.
func (w *Writer) WriteAlerts(ctx context.Context, alerts []*models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	body, err := json.Marshal(alerts)
	if err != nil {
		return fmt.Errorf("failed to marshal alerts: %w", err)
	}

	_, err = w.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, w.post(ctx, body)
	})
	return err
}

// State reports the circuit breaker state.
func (w *Writer) State() gobreaker.State {
	return w.breaker.State()
}

func (w *Writer) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("http request failed with status %s", resp.Status)
	}
	return nil
}

// Close releases HTTP resources.
func (w *Writer) Close() error {
	w.client.CloseIdleConnections()
	return nil
}
