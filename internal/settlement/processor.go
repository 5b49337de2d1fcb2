package settlement

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Processor advances the simulated day on a fixed interval, for unattended
// demos.
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

// Start begins the day advance loop
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "settlement_processor").Logger()
	logger.Info().Dur("interval", p.interval).Msg("starting settlement processor")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down settlement processor")
			return
		case <-ticker.C:
			if _, err := p.service.AdvanceDay(ctx, "auto-advance"); err != nil {
				logger.Error().Err(err).Msg("failed to advance simulated day")
			}
		}
	}
}
