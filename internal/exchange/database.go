package exchange

import (
	"context"
	"errors"
	"time"

	"github.com/ksred/klear-trade/internal/types"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateStock(ctx context.Context, stock *types.Stock) error {
	return d.db.WithContext(ctx).Create(stock).Error
}

func (d *Database) GetStock(ctx context.Context, stockID string) (*types.Stock, error) {
	var stock types.Stock
	if err := d.db.WithContext(ctx).Where("stock_id = ?", stockID).First(&stock).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrStockNotFound
		}
		return nil, err
	}
	return &stock, nil
}

func (d *Database) ListStocks(ctx context.Context, activeOnly bool) ([]types.Stock, error) {
	var stocks []types.Stock
	query := d.db.WithContext(ctx).Order("symbol ASC")
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	if err := query.Find(&stocks).Error; err != nil {
		return nil, err
	}
	return stocks, nil
}

func (d *Database) UpdatePrice(ctx context.Context, stockID string, price decimal.Decimal) error {
	result := d.db.WithContext(ctx).Model(&types.Stock{}).
		Where("stock_id = ?", stockID).
		Updates(map[string]interface{}{
			"current_price": price,
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return types.ErrStockNotFound
	}
	return nil
}
