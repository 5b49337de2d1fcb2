package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ksred/klear-trade/internal/config"
	"github.com/ksred/klear-trade/internal/types"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Seed inserts the configured stocks and accounts that do not exist yet.
// Existing rows are left alone so restarts keep their balances.
func Seed(ctx context.Context, db *gorm.DB, seed config.Seed) error {
	logger := log.With().Str("component", "seed").Logger()
	now := time.Now()

	for _, s := range seed.Stocks {
		price, err := decimal.NewFromString(s.Price)
		if err != nil {
			return fmt.Errorf("invalid price for stock %s: %w", s.StockID, err)
		}
		stock := types.Stock{
			StockID:      s.StockID,
			Symbol:       s.Symbol,
			Name:         s.Name,
			CurrentPrice: price,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		result := db.WithContext(ctx).Where("stock_id = ?", s.StockID).FirstOrCreate(&stock)
		if result.Error != nil {
			return fmt.Errorf("failed to seed stock %s: %w", s.StockID, result.Error)
		}
		if result.RowsAffected > 0 {
			logger.Info().Str("stock_id", s.StockID).Str("symbol", s.Symbol).Msg("stock seeded")
		}
	}

	for _, a := range seed.Accounts {
		balance, err := decimal.NewFromString(a.Balance)
		if err != nil {
			return fmt.Errorf("invalid balance for account %s: %w", a.AccountID, err)
		}
		currency := a.Currency
		if currency == "" {
			currency = "TRY"
		}
		account := types.Account{
			AccountID:        a.AccountID,
			ClientID:         a.ClientID,
			Currency:         currency,
			Balance:          balance,
			AvailableBalance: balance,
			Active:           true,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		result := db.WithContext(ctx).Where("account_id = ?", a.AccountID).FirstOrCreate(&account)
		if result.Error != nil {
			return fmt.Errorf("failed to seed account %s: %w", a.AccountID, result.Error)
		}
		if result.RowsAffected > 0 {
			logger.Info().Str("account_id", a.AccountID).Str("client_id", a.ClientID).Msg("account seeded")
		}
	}

	return nil
}
