package trading

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Processor periodically executes resting LIMIT orders whose limit has been crossed.
type Processor struct {
	service  *Service
	interval time.Duration
}

func NewProcessor(service *Service, interval time.Duration) *Processor {
	return &Processor{
		service:  service,
		interval: interval,
	}
}

// Start begins the pending order loop
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "pending_order_processor").Logger()
	logger.Info().Dur("interval", p.interval).Msg("starting pending order processor")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down pending order processor")
			return
		case <-ticker.C:
			executed, err := p.service.ProcessPendingOrders(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("failed to process pending orders")
				continue
			}
			if executed > 0 {
				logger.Info().Int("executed", executed).Msg("pending orders executed")
			}
		}
	}
}
