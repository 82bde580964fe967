package scheduler

import (
	"context"
	"sync"
	"time"

	"blogpost-backend/internal/auth/repository"
	"blogpost-backend/pkg/logger"

	"go.uber.org/zap"
)

// TokenPruner periodically deletes expired tokens. Expired rows are already
// rejected by the validator; pruning only keeps the table small.
type TokenPruner struct {
	tokenRepo repository.TokenRepository
	interval  time.Duration
	now       func() time.Time
	stopChan  chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
	done      chan struct{}
	log       *zap.Logger
}

// NewTokenPruner creates a new scheduler
func NewTokenPruner(tokenRepo repository.TokenRepository, interval time.Duration) *TokenPruner {
	if interval <= 0 {
		interval = time.Hour
	}
	return &TokenPruner{
		tokenRepo: tokenRepo,
		interval:  interval,
		now:       time.Now,
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
		log:       logger.Named("TokenPruner"),
	}
}

// Start begins the scheduler loop
func (s *TokenPruner) Start() {
	s.startOnce.Do(s.run)
}

func (s *TokenPruner) run() {
	s.started = true
	s.log.Info("starting token pruner", zap.Duration("interval", s.interval))

	go func() {
		defer close(s.done)

		// Run immediately on start
		s.prune()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.prune()
			case <-s.stopChan:
				s.log.Info("token pruner stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the scheduler and waits for the loop to exit.
// A pruner that was never started returns immediately.
func (s *TokenPruner) Stop() {
	s.startOnce.Do(func() {})
	s.stopOnce.Do(func() { close(s.stopChan) })
	if s.started {
		<-s.done
	}
}

func (s *TokenPruner) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.tokenRepo.DeleteExpired(ctx, s.now())
	if err != nil {
		s.log.Error("error deleting expired tokens", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("deleted expired tokens", zap.Int64("count", n))
	}
}
