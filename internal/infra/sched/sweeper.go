package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ai-image-studio/internal/domain/ports/repository"
	"ai-image-studio/internal/infra/metrics"
)

// PastDueSweeper periodically downgrades active subscriptions whose billing
// period ended longer than the grace window ago. The processor's own events
// remain authoritative; the sweeper only catches deliveries that never
// arrived. It never touches usage counters.
type PastDueSweeper struct {
	interval time.Duration
	grace    time.Duration
	subs     repository.SubscriptionRepository
	log      *zerolog.Logger
}

func NewPastDueSweeper(interval, grace time.Duration, subs repository.SubscriptionRepository, logger *zerolog.Logger) *PastDueSweeper {
	l := logger.With().Str("component", "past_due_sweeper").Logger()
	return &PastDueSweeper{
		interval: interval,
		grace:    grace,
		subs:     subs,
		log:      &l,
	}
}

func (w *PastDueSweeper) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("grace", w.grace).Msg("starting past-due sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping past-due sweeper")
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().Add(-w.grace)
			n, err := w.subs.MarkPastDue(ctx, repository.NoTX, cutoff)
			if err != nil {
				w.log.Error().Err(err).Msg("sweep failed")
				continue
			}
			if n > 0 {
				metrics.AddSubscriptionsPastDue(n)
				w.log.Info().Int("count", n).Msg("subscriptions marked past_due")
			}
		}
	}
}
