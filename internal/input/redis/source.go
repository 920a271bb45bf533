package redis

import (
	"context"
	"time"

	"seclog/internal/logger"
	"seclog/internal/transform/submission"
	"seclog/pkg/models"
)

// Popper yields raw submissions.
type Popper interface {
	Pop(ctx context.Context) ([]byte, error)
}

// SubmitFunc hands a parsed event to the ingest gateway.
type SubmitFunc func(event *models.Event) bool

// Source turns a Redis list into a sensor: each payload is parsed and
// submitted to the gateway.
type Source struct {
	popper     Popper
	submit     SubmitFunc
	retryDelay time.Duration
}

// NewSource creates a queue-backed sensor.
func NewSource(popper Popper, submit SubmitFunc) *Source {
	return &Source{popper: popper, submit: submit, retryDelay: 500 * time.Millisecond}
}

// Run reads until ctx is cancelled.
func (s *Source) Run(ctx context.Context) error {
	logger.Infof("Redis event source started")
	for {
		payload, err := s.popper.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Errorf("Failed to pop redis message: %v", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.retryDelay):
			}
			continue
		}
		if payload == nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		event, err := submission.Parse(payload)
		if err != nil {
			logger.Warnf("Failed to parse submission: %v", err)
			continue
		}
		s.submit(event)
	}
}
