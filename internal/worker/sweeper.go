package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically reclaims expired state: seat holds that lapsed
// without a commit, and finished booking attempts past their retention
// window. It is the backstop for ungraceful abandonment; graceful cancels
// release their seat immediately.
type Sweeper struct {
	targets  []Target
	interval time.Duration
	log      *zap.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Target is one expiry domain the sweeper drives. Sweep reports how many
// entries it reclaimed.
type Target struct {
	Name  string
	Sweep func() int
}

func NewSweeper(interval time.Duration, log *zap.Logger, targets ...Target) *Sweeper {
	return &Sweeper{
		targets:  targets,
		interval: interval,
		log:      log,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	s.log.Info("sweeper started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.doneCh)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		case <-s.stopCh:
			s.log.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	for _, target := range s.targets {
		if reclaimed := target.Sweep(); reclaimed > 0 {
			s.log.Info("reclaimed expired entries",
				zap.String("target", target.Name),
				zap.Int("count", reclaimed))
		}
	}
}

func (s *Sweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
}
