// Package settlement walks executed orders through T+0, T+1, T+2 and
// COMPLETED, one step per simulated business day.
package settlement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ksred/klear-trade/internal/metrics"
	"github.com/ksred/klear-trade/internal/notify"
	"github.com/ksred/klear-trade/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service is the settlement scheduler. The walk is bookkeeping only and
// never touches account balances.
type Service struct {
	db        *Database
	calendar  *Calendar
	publisher notify.Publisher
	mu        sync.Mutex
}

func NewService(gormDB *gorm.DB, calendar *Calendar, publisher notify.Publisher) *Service {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	return &Service{
		db:        NewDatabase(gormDB),
		calendar:  calendar,
		publisher: publisher,
	}
}

func (s *Service) Calendar() *Calendar {
	return s.calendar
}

// AdvanceDay moves the calendar one business day and then advances every
// order in settlement by one step.
func (s *Service) AdvanceDay(ctx context.Context, actor string) (*AdvanceResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, sim, err := s.calendar.Advance(ctx, actor)
	if err != nil {
		return nil, err
	}

	walk, err := s.walk(ctx)
	if err != nil {
		return nil, err
	}

	return &AdvanceResponse{
		PreviousDate: previous,
		CurrentDate:  sim.CurrentDate,
		DaysAdvanced: sim.DaysAdvanced,
		Settlement:   walk,
	}, nil
}

// AdvanceSettlement runs the walk without moving the calendar. Orders
// already COMPLETED or CANCELLED are left alone, so repeated calls end in a
// no-op.
func (s *Service) AdvanceSettlement(ctx context.Context) (WalkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.walk(ctx)
}

func (s *Service) walk(ctx context.Context) (WalkResult, error) {
	logger := log.With().Str("service", "settlement").Logger()
	result := WalkResult{Advanced: make(map[types.SettlementStatus]int)}

	orders, err := s.db.GetOrdersInSettlement(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to load orders in settlement: %w", err)
	}

	for i := range orders {
		order := &orders[i]
		from := order.SettlementStatus
		to := from.Next()
		if !from.CanTransition(to) {
			result.Skipped++
			continue
		}

		var settledAt *time.Time
		if to == types.SettlementCompleted {
			now := time.Now()
			settledAt = &now
		}

		moved, err := s.db.AdvanceSettlement(ctx, order.OrderID, from, to, settledAt)
		if err != nil {
			return result, fmt.Errorf("failed to advance settlement of %s: %w", order.OrderID, err)
		}
		if !moved {
			result.Skipped++
			continue
		}

		result.Advanced[to]++
		metrics.SettlementAdvancesTotal.WithLabelValues(string(to)).Inc()
		logger.Debug().
			Str("order_id", order.OrderID).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("settlement advanced")

		if to == types.SettlementCompleted {
			order.SettlementStatus = to
			order.SettledAt = settledAt
			result.Completed = append(result.Completed, order.OrderID)
			if err := s.publisher.Publish(ctx, notify.NewOrderEvent(notify.EventSettled, order)); err != nil {
				logger.Warn().Err(err).Str("order_id", order.OrderID).Msg("failed to publish settled event")
			}
		}
	}

	logger.Info().
		Int("advanced", result.Total()).
		Int("completed", len(result.Completed)).
		Int("skipped", result.Skipped).
		Msg("settlement walk finished")
	return result, nil
}
