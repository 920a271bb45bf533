// Package api serves read-mostly HTTP queries over the event store.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"seclog/internal/logger"
	"seclog/internal/store"
	"seclog/pkg/models"
)

// Store is the query surface used by the handlers.
type Store interface {
	ListEvents(ctx context.Context, f store.EventFilter) ([]*models.Event, error)
	GetEvent(ctx context.Context, id int64) (*models.Event, error)
	RecentEvents(ctx context.Context, minutes, limit int) ([]*models.Event, error)
	SearchEvents(ctx context.Context, keyword string, limit int) ([]*models.Event, error)
	CountEvents(ctx context.Context) (int64, error)
	CountCriticalEvents(ctx context.Context) (int64, error)
	CountBySeverity(ctx context.Context) (map[models.Severity]int64, error)
	CountByType(ctx context.Context, limit int) ([]models.TypeCount, error)
	Timeline(ctx context.Context, window, bucket time.Duration) ([]models.TimelineBucket, error)
	ListAlerts(ctx context.Context, acknowledged *bool, limit int) ([]*models.Alert, error)
	AcknowledgeAlert(ctx context.Context, id int64) error
	LatestSystemStats(ctx context.Context, limit int) ([]*models.SystemStat, error)
}

// Server exposes the query API.
type Server struct {
	store  Store
	srv    *http.Server
	health func() error
}

// NewServer creates a server. health may be nil.
func NewServer(listen string, st Store, health func() error) *Server {
	s := &Server{store: st, health: health}
	s.srv = &http.Server{
		Addr:              listen,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/events", func(r chi.Router) {
			r.Get("/", s.ListEvents)
			r.Get("/recent", s.RecentEvents)
			r.Get("/search", s.SearchEvents)
			r.Get("/{id}", s.GetEvent)
		})
		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", s.ListAlerts)
			r.Post("/{id}/acknowledge", s.AcknowledgeAlert)
		})
		r.Route("/stats", func(r chi.Router) {
			r.Get("/summary", s.Summary)
			r.Get("/severity", s.SeverityCounts)
			r.Get("/types", s.TypeCounts)
			r.Get("/timeline", s.Timeline)
		})
		r.Get("/system", s.SystemStats)
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Query API listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("Query API shutdown: %v", err)
	}
	return nil
}
