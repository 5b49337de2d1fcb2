package migrations

import (
	"github.com/ksred/klear-trade/internal/types"
	"gorm.io/gorm"
)

// CreateOrders creates the order, stock and simulation calendar tables and
// the indexes used by the settlement walk and the pending order scan
func CreateOrders(db *gorm.DB) error {
	if err := db.AutoMigrate(&types.Stock{}, &types.Order{}, &types.SimulationDate{}); err != nil {
		return err
	}

	indexes := []string{
		// Settlement walk selects executed orders by settlement status
		`CREATE INDEX IF NOT EXISTS idx_orders_status_settlement
		 ON orders(status, settlement_status)`,

		// Pending LIMIT scan
		`CREATE INDEX IF NOT EXISTS idx_orders_status_execution_type
		 ON orders(status, execution_type)`,

		// Order listing per client, newest first
		`CREATE INDEX IF NOT EXISTS idx_orders_client_created_at
		 ON orders(client_id, created_at)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
