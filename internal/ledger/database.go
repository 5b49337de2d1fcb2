package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
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

func (d *Database) CreateAccount(ctx context.Context, account *types.Account) error {
	return d.db.WithContext(ctx).Create(account).Error
}

func (d *Database) GetAccount(ctx context.Context, accountID string) (*types.Account, error) {
	var account types.Account
	if err := d.db.WithContext(ctx).Where("account_id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (d *Database) UpdateActive(ctx context.Context, accountID string, active bool) error {
	result := d.db.WithContext(ctx).Model(&types.Account{}).
		Where("account_id = ?", accountID).
		Updates(map[string]interface{}{
			"active":     active,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return types.ErrAccountNotFound
	}
	return nil
}

func (d *Database) GetEntries(ctx context.Context, accountID string) ([]types.LedgerEntry, error) {
	var entries []types.LedgerEntry
	if err := d.db.WithContext(ctx).Where("account_id = ?", accountID).
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ApplyMutation loads the account, lets mutate change it and then saves the
// account together with one journal entry in a single transaction.
func (d *Database) ApplyMutation(
	ctx context.Context,
	accountID string,
	kind types.LedgerEntryKind,
	amount decimal.Decimal,
	reference string,
	mutate func(account *types.Account) error,
) (*types.Account, error) {
	tx := d.db.WithContext(ctx).Begin()
	if err := tx.Error; err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var account types.Account
	if err := tx.Where("account_id = ?", accountID).First(&account).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if err := mutate(&account); err != nil {
		tx.Rollback()
		return nil, err
	}

	now := time.Now()
	account.UpdatedAt = now
	if err := tx.Save(&account).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to save account: %w", err)
	}

	entry := types.LedgerEntry{
		EntryID:        "LED_" + uuid.New().String(),
		AccountID:      accountID,
		Kind:           kind,
		Amount:         amount,
		Reference:      reference,
		BalanceAfter:   account.Balance,
		AvailableAfter: account.AvailableBalance,
		CreatedAt:      now,
	}
	if err := tx.Create(&entry).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to write ledger entry: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit ledger transaction: %w", err)
	}
	return &account, nil
}
