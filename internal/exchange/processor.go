package exchange

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// maxVariance bounds a single drift step to +/-2% of the current price.
var maxVariance = decimal.RequireFromString("0.02")

// Drifter moves every reference price by a small random step on each tick
// so that resting LIMIT orders get a chance to cross.
type Drifter struct {
	service  *Service
	interval time.Duration
	rnd      *rand.Rand
}

func NewDrifter(service *Service, interval time.Duration) *Drifter {
	return &Drifter{
		service:  service,
		interval: interval,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (d *Drifter) Start(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Step(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to drift reference prices")
			}
		}
	}
}

// Step applies one random variance to all active stocks.
func (d *Drifter) Step(ctx context.Context) error {
	stocks, err := d.service.ListStocks(ctx)
	if err != nil {
		return err
	}

	for _, stock := range stocks {
		// uniform in [-maxVariance, +maxVariance]
		factor := decimal.NewFromFloat(d.rnd.Float64()*2 - 1).Mul(maxVariance)
		price := stock.CurrentPrice.Mul(decimal.NewFromInt(1).Add(factor)).Round(2)
		if !price.IsPositive() {
			continue
		}
		if _, err := d.service.SetPrice(ctx, stock.StockID, price); err != nil {
			return err
		}
	}
	return nil
}
