package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ksred/klear-trade/internal/metrics"
	"github.com/ksred/klear-trade/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func IsBusinessDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// NextBusinessDay returns the first weekday strictly after t.
func NextBusinessDay(t time.Time) time.Time {
	next := DateOnly(t).AddDate(0, 0, 1)
	for !IsBusinessDay(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// AddBusinessDays moves n weekdays forward from t.
func AddBusinessDays(t time.Time, n int) time.Time {
	d := DateOnly(t)
	for i := 0; i < n; i++ {
		d = NextBusinessDay(d)
	}
	return d
}

// ValueDate is the date an order traded on tradeDate settles.
func ValueDate(tradeDate time.Time) time.Time {
	return AddBusinessDays(tradeDate, types.SettlementCycle)
}

// Calendar is the simulated business date. It is stored as a single row and
// only moves when Advance is called.
type Calendar struct {
	db  *Database
	mu  sync.Mutex
	now func() time.Time
}

func NewCalendar(gormDB *gorm.DB) *Calendar {
	return &Calendar{
		db:  NewDatabase(gormDB),
		now: time.Now,
	}
}

// Current returns the calendar row, creating it on first use at today's
// date (or the next weekday when today is a weekend).
func (c *Calendar) Current(ctx context.Context) (*types.SimulationDate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current(ctx)
}

// Today returns the current simulated business date.
func (c *Calendar) Today(ctx context.Context) (time.Time, error) {
	sim, err := c.Current(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return DateOnly(sim.CurrentDate), nil
}

// Advance moves the calendar to the next business day.
func (c *Calendar) Advance(ctx context.Context, actor string) (previous time.Time, sim *types.SimulationDate, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sim, err = c.current(ctx)
	if err != nil {
		return time.Time{}, nil, err
	}

	previous = DateOnly(sim.CurrentDate)
	sim.CurrentDate = NextBusinessDay(previous)
	sim.DaysAdvanced++
	sim.UpdatedBy = actor
	sim.LastUpdatedAt = c.now()
	if err := c.db.SaveSimulationDate(ctx, sim); err != nil {
		return time.Time{}, nil, fmt.Errorf("failed to save simulation date: %w", err)
	}

	metrics.SimulationDaysAdvanced.Set(float64(sim.DaysAdvanced))
	log.Info().
		Str("component", "calendar").
		Time("previous_date", previous).
		Time("current_date", sim.CurrentDate).
		Int("days_advanced", sim.DaysAdvanced).
		Str("updated_by", actor).
		Msg("simulation date advanced")
	return previous, sim, nil
}

func (c *Calendar) current(ctx context.Context) (*types.SimulationDate, error) {
	sim, err := c.db.GetSimulationDate(ctx)
	if err == nil {
		return sim, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load simulation date: %w", err)
	}

	today := DateOnly(c.now())
	if !IsBusinessDay(today) {
		today = NextBusinessDay(today)
	}
	sim = &types.SimulationDate{
		CurrentDate:   today,
		InitialDate:   today,
		UpdatedBy:     "system",
		LastUpdatedAt: c.now(),
	}
	if err := c.db.SaveSimulationDate(ctx, sim); err != nil {
		return nil, fmt.Errorf("failed to initialise simulation date: %w", err)
	}
	return sim, nil
}
