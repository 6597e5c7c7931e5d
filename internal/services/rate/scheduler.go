package rate

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vadiminshakov/p2prate/internal/domain"
	"github.com/vadiminshakov/p2prate/pkg/retrier"
)

// DefaultRefreshInterval between timer-driven refreshes.
const DefaultRefreshInterval = 15 * time.Minute

type refresher interface {
	Refresh(ctx context.Context) (*domain.RateSnapshot, error)
}

// Scheduler refreshes the cache once at start and then on every interval.
type Scheduler struct {
	cache    refresher
	interval time.Duration
	warmup   *retrier.Retrier
	logger   *zap.Logger
}

// NewScheduler creates a scheduler. warmupRetries extra attempts are made
// for the initial load only; zero means a single attempt.
func NewScheduler(cache refresher, interval time.Duration, warmupRetries int, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}

	return &Scheduler{
		cache:    cache,
		interval: interval,
		warmup: retrier.New(
			retrier.WithMaxRetries(warmupRetries),
			retrier.WithInitialInterval(5*time.Second),
			retrier.WithMaxInterval(time.Minute),
			retrier.WithOnRetry(func(attempt int, err error, wait time.Duration) {
				logger.Warn("initial load failed, retrying",
					zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
			}),
		),
		logger: logger,
	}
}

// Run blocks until ctx is done. Failed refreshes are logged and the loop continues.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("loading initial rate", zap.Int("attempts", s.warmup.Attempts()))
	snap, err := retrier.DoWithData(s.warmup, ctx, s.cache.Refresh)
	if err != nil {
		s.logger.Error("initial rate load failed", zap.Error(err))
	} else {
		s.logger.Info("initial rate loaded", zap.String("final_rate", snap.FinalRate.StringFixed(domain.RatePlaces)))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("starting refresh loop", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("context done, stopping refresh loop")
			return ctx.Err()
		case <-ticker.C:
			s.logger.Debug("scheduled refresh tick")
			if _, err := s.cache.Refresh(ctx); err != nil {
				s.logger.Error("scheduled refresh failed", zap.Error(err))
			}
		}
	}
}
