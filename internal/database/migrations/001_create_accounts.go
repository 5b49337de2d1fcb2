package migrations

import (
	"github.com/ksred/klear-trade/internal/types"
	"gorm.io/gorm"
)

// CreateAccounts creates the account and ledger journal tables
func CreateAccounts(db *gorm.DB) error {
	if err := db.AutoMigrate(&types.Account{}, &types.LedgerEntry{}); err != nil {
		return err
	}

	indexes := []string{
		// Journal reads are always per account in insertion order
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_account_id_id
		 ON ledger_entries(account_id, id)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
