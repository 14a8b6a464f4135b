package domain

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs SyncAll once on start and then on every interval tick.
type Scheduler struct {
	service          *Service
	interval         time.Duration
	logger           *zap.Logger
	shutdownComplete chan struct{}
}

// NewScheduler constructs a Scheduler. A non-positive interval disables the periodic runs.
func NewScheduler(service *Service, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		service:          service,
		interval:         interval,
		logger:           logger.Named("scheduler"),
		shutdownComplete: make(chan struct{}),
	}
}

// Start launches the loop. It should be called in a goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	defer close(s.shutdownComplete)

	s.runOnce(ctx)
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// Wait blocks until the loop has stopped.
func (s *Scheduler) Wait() {
	<-s.shutdownComplete
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	results := s.service.SyncAll(ctx)
	failed := 0
	for _, r := range results {
		if r.Status != SyncStatusSuccess {
			failed++
		}
	}
	s.logger.Info("sync pass finished", zap.Int("collections", len(results)), zap.Int("failed", failed))
}
