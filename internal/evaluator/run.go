package evaluator

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cryptosignal/config"
)

// Run polls every instrument on its own interval until ctx is cancelled.
// A failed evaluation is logged and the loop goes on.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, market := range s.order {
		inst := s.instruments[market]
		g.Go(func() error {
			s.loop(ctx, inst)
			return nil
		})
	}
	s.log.Info("evaluation loops started", zap.Int("instruments", len(s.order)))
	return g.Wait()
}

func (s *Service) loop(ctx context.Context, inst config.Instrument) {
	interval := inst.PollInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.runOnce(ctx, inst.Market)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, inst.Market)
		}
	}
}

func (s *Service) runOnce(ctx context.Context, market string) {
	_, err := s.Evaluate(ctx, market)
	switch {
	case err == nil:
	case ctx.Err() != nil:
	case Skipped(err):
		s.log.Info("evaluation skipped", zap.String("market", market), zap.Error(err))
	default:
		s.log.Error("evaluation failed", zap.String("market", market), zap.Error(err))
	}
}
