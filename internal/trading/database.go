package trading

import (
	"context"
	"errors"
	"time"

	"github.com/ksred/klear-trade/internal/types"
	"gorm.io/gorm"
)

// OrderRepository is the durable record of committed orders.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *types.Order) error
	GetOrder(ctx context.Context, orderID string) (*types.Order, error)
	GetOrderByPreviewID(ctx context.Context, previewID string) (*types.Order, error)
	ListOrders(ctx context.Context, filter types.OrderFilter) ([]types.Order, error)
	ListPendingOrders(ctx context.Context, limit int) ([]types.Order, error)
	UpdateOrderState(ctx context.Context, order *types.Order, from types.OrderStatus) (bool, error)
}

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateOrder(ctx context.Context, order *types.Order) error {
	return d.db.WithContext(ctx).Create(order).Error
}

func (d *Database) GetOrder(ctx context.Context, orderID string) (*types.Order, error) {
	var order types.Order
	if err := d.db.WithContext(ctx).Where("order_id = ?", orderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (d *Database) GetOrderByPreviewID(ctx context.Context, previewID string) (*types.Order, error) {
	var order types.Order
	if err := d.db.WithContext(ctx).Where("preview_id = ?", previewID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (d *Database) ListOrders(ctx context.Context, filter types.OrderFilter) ([]types.Order, error) {
	query := d.db.WithContext(ctx).Model(&types.Order{})
	if filter.ClientID != "" {
		query = query.Where("client_id = ?", filter.ClientID)
	}
	if filter.AccountID != "" {
		query = query.Where("account_id = ?", filter.AccountID)
	}
	if filter.StockID != "" {
		query = query.Where("stock_id = ?", filter.StockID)
	}
	if filter.Side != "" {
		query = query.Where("side = ?", filter.Side)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.SettlementStatus != "" {
		query = query.Where("settlement_status = ?", filter.SettlementStatus)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var orders []types.Order
	err := query.Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ListPendingOrders returns resting LIMIT orders, oldest first.
func (d *Database) ListPendingOrders(ctx context.Context, limit int) ([]types.Order, error) {
	var orders []types.Order
	err := d.db.WithContext(ctx).
		Where("status = ? AND execution_type = ?", types.OrderStatusPending, types.ExecutionLimit).
		Order("id ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateOrderState writes the lifecycle fields of order, but only while the
// stored status is still from. It reports whether the row was updated.
func (d *Database) UpdateOrderState(ctx context.Context, order *types.Order, from types.OrderStatus) (bool, error) {
	order.UpdatedAt = time.Now()
	result := d.db.WithContext(ctx).Model(&types.Order{}).
		Where("order_id = ? AND status = ?", order.OrderID, from).
		Updates(map[string]interface{}{
			"status":            order.Status,
			"settlement_status": order.SettlementStatus,
			"reject_reason":     order.RejectReason,
			"trade_date":        order.TradeDate,
			"value_date":        order.ValueDate,
			"executed_at":       order.ExecutedAt,
			"cancelled_at":      order.CancelledAt,
			"updated_at":        order.UpdatedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
