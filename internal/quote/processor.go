package quote

import (
	"context"
	"time"

	"github.com/ksred/klear-trade/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Sweeper periodically expires quotes so their reservations are released
// even when nobody tries to commit them.
type Sweeper struct {
	store    *Store
	interval time.Duration
}

// NewSweeper caps the interval at the store TTL so no reservation outlives
// its quote by more than one TTL window.
func NewSweeper(store *Store, interval time.Duration) *Sweeper {
	if interval <= 0 || interval > store.TTL() {
		interval = store.TTL()
	}
	return &Sweeper{store: store, interval: interval}
}

// Start runs the sweep loop until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	logger := log.With().Str("component", "quote_sweeper").Logger()
	logger.Info().Dur("interval", s.interval).Msg("starting quote sweeper")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down quote sweeper")
			return
		case <-ticker.C:
			if n := s.store.SweepExpired(); n > 0 {
				metrics.QuotesTotal.WithLabelValues("expired").Add(float64(n))
				logger.Info().Int("expired", n).Msg("swept expired quotes")
			}
		}
	}
}
