package types

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Account holds the booked balance and the balance still available after
// outstanding reservations. Only the ledger mutates the amounts.
type Account struct {
	gorm.Model       `json:"-"`
	AccountID        string          `gorm:"uniqueIndex" json:"account_id"`
	ClientID         string          `gorm:"index" json:"client_id"`
	Currency         string          `json:"currency"`
	Balance          decimal.Decimal `gorm:"type:decimal(20,4)" json:"balance"`
	AvailableBalance decimal.Decimal `gorm:"type:decimal(20,4)" json:"available_balance"`
	Active           bool            `json:"active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type LedgerEntryKind string

const (
	EntryReserve  LedgerEntryKind = "RESERVE"
	EntryRelease  LedgerEntryKind = "RELEASE"
	EntryDebit    LedgerEntryKind = "DEBIT"
	EntryCredit   LedgerEntryKind = "CREDIT"
	EntryReversal LedgerEntryKind = "REVERSAL"
)

// LedgerEntry is an append-only journal line written with every balance mutation.
type LedgerEntry struct {
	gorm.Model     `json:"-"`
	EntryID        string          `gorm:"uniqueIndex" json:"entry_id"`
	AccountID      string          `gorm:"index" json:"account_id"`
	Kind           LedgerEntryKind `json:"kind"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,4)" json:"amount"`
	Reference      string          `gorm:"index" json:"reference"`
	BalanceAfter   decimal.Decimal `gorm:"type:decimal(20,4)" json:"balance_after"`
	AvailableAfter decimal.Decimal `gorm:"type:decimal(20,4)" json:"available_after"`
	CreatedAt      time.Time       `json:"created_at"`
}
