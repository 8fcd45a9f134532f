package service

import (
	"context"
	"fmt"
	"time"

	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/domain"
	"github.com/anthanhphan/gosdk/logger"
)

// sweeper periodically demotes servers that stopped heartbeating.
type sweeper struct {
	core *CoordinatorImpl
}

func newSweeper(core *CoordinatorImpl) *sweeper {
	return &sweeper{core: core}
}

func (s *sweeper) start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Infow("Liveness sweeper started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("Liveness sweeper stopped")
			return
		case <-ticker.C:
			if s.core.IsLeader() {
				s.sweep(ctx)
			}
		}
	}
}

func (s *sweeper) sweep(ctx context.Context) {
	s.core.reportPool()
	gone := s.core.membership.sweepAt(s.core.now())
	if len(gone) == 0 {
		return
	}
	for _, id := range gone {
		s.core.migrations.abandon(ctx, id, fmt.Errorf("%w: %s stopped heartbeating", domain.ErrServerGone, id))
	}
	s.core.persist(ctx)
}
