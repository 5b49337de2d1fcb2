package settlement

import (
	"context"
	"time"

	"github.com/ksred/klear-trade/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) GetSimulationDate(ctx context.Context) (*types.SimulationDate, error) {
	var sim types.SimulationDate
	if err := d.db.WithContext(ctx).Order("id ASC").First(&sim).Error; err != nil {
		return nil, err
	}
	return &sim, nil
}

func (d *Database) SaveSimulationDate(ctx context.Context, sim *types.SimulationDate) error {
	return d.db.WithContext(ctx).Save(sim).Error
}

// GetOrdersInSettlement returns executed orders whose settlement has not
// completed yet.
func (d *Database) GetOrdersInSettlement(ctx context.Context) ([]types.Order, error) {
	var orders []types.Order
	err := d.db.WithContext(ctx).
		Where("status = ?", types.OrderStatusExecuted).
		Where("settlement_status IN ?", []types.SettlementStatus{
			types.SettlementPending, types.SettlementT1, types.SettlementT2,
		}).
		Order("id ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// AdvanceSettlement moves one order from -> to. It reports false when the
// order was no longer at from, leaving it untouched.
func (d *Database) AdvanceSettlement(ctx context.Context, orderID string, from, to types.SettlementStatus, settledAt *time.Time) (bool, error) {
	updates := map[string]interface{}{
		"settlement_status": to,
		"updated_at":        time.Now(),
	}
	if settledAt != nil {
		updates["settled_at"] = *settledAt
	}

	result := d.db.WithContext(ctx).Model(&types.Order{}).
		Where("order_id = ? AND status = ? AND settlement_status = ?", orderID, types.OrderStatusExecuted, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
