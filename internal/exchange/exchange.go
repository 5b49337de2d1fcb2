// Package exchange is the market data side of the system: listed stocks and
// their current reference prices.
package exchange

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ksred/klear-trade/internal/types"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// Stock returns an active listed stock.
func (s *Service) Stock(ctx context.Context, stockID string) (*types.Stock, error) {
	stock, err := s.db.GetStock(ctx, stockID)
	if err != nil {
		return nil, err
	}
	if !stock.Active {
		return nil, fmt.Errorf("%w: %s is not trading", types.ErrStockNotFound, stockID)
	}
	return stock, nil
}

// CurrentPrice returns the reference price MARKET orders are quoted at.
func (s *Service) CurrentPrice(ctx context.Context, stockID string) (decimal.Decimal, error) {
	stock, err := s.Stock(ctx, stockID)
	if err != nil {
		return decimal.Zero, err
	}
	return stock.CurrentPrice, nil
}

func (s *Service) ListStocks(ctx context.Context) ([]types.Stock, error) {
	return s.db.ListStocks(ctx, true)
}

// ListStock adds a new instrument to the listing.
func (s *Service) ListStock(ctx context.Context, stockID, symbol, name string, price decimal.Decimal) (*types.Stock, error) {
	stockID = strings.TrimSpace(stockID)
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if stockID == "" || symbol == "" {
		return nil, fmt.Errorf("%w: stock_id and symbol are required", types.ErrValidation)
	}
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: price must be positive", types.ErrValidation)
	}

	stock := &types.Stock{
		StockID:      stockID,
		Symbol:       symbol,
		Name:         name,
		CurrentPrice: price,
		Active:       true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := s.db.CreateStock(ctx, stock); err != nil {
		return nil, fmt.Errorf("failed to list stock: %w", err)
	}
	return stock, nil
}

// SetPrice moves the reference price of a stock.
func (s *Service) SetPrice(ctx context.Context, stockID string, price decimal.Decimal) (*types.Stock, error) {
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: price must be positive", types.ErrValidation)
	}
	price = price.Round(4)

	if err := s.db.UpdatePrice(ctx, stockID, price); err != nil {
		return nil, err
	}

	log.Debug().
		Str("component", "exchange").
		Str("stock_id", stockID).
		Stringer("price", price).
		Msg("reference price updated")
	return s.db.GetStock(ctx, stockID)
}
