package types

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

type ExecutionType string

const (
	ExecutionMarket ExecutionType = "MARKET"
	ExecutionLimit  ExecutionType = "LIMIT"
)

func (e ExecutionType) Valid() bool {
	return e == ExecutionMarket || e == ExecutionLimit
}

// Order is the durable record of a committed (or rejected) preview.
// OrderID is assigned on commit and never before.
type Order struct {
	gorm.Model       `json:"-"`
	OrderID          string           `gorm:"uniqueIndex" json:"order_id"`
	OrderNumber      string           `gorm:"index" json:"order_number"`
	PreviewID        string           `gorm:"uniqueIndex" json:"preview_id"`
	AccountID        string           `gorm:"index" json:"account_id"`
	ClientID         string           `gorm:"index" json:"client_id"`
	StockID          string           `gorm:"index" json:"stock_id"`
	Symbol           string           `json:"symbol"`
	Side             Side             `json:"side"`           // BUY or SELL
	ExecutionType    ExecutionType    `json:"execution_type"` // MARKET or LIMIT
	Quantity         int64            `json:"quantity"`
	Price            decimal.Decimal  `gorm:"type:decimal(20,4)" json:"price"`
	GrossAmount      decimal.Decimal  `gorm:"type:decimal(20,4)" json:"gross_amount"`
	Commission       decimal.Decimal  `gorm:"type:decimal(20,4)" json:"commission"`
	Tax              decimal.Decimal  `gorm:"type:decimal(20,4)" json:"tax"`
	NetAmount        decimal.Decimal  `gorm:"type:decimal(20,4)" json:"net_amount"`
	Status           OrderStatus      `gorm:"index" json:"status"`
	SettlementStatus SettlementStatus `gorm:"index" json:"settlement_status,omitempty"`
	RejectReason     string           `json:"reject_reason,omitempty"`
	TradeDate        *time.Time       `json:"trade_date,omitempty"`
	ValueDate        *time.Time       `json:"value_date,omitempty"`
	SubmittedAt      time.Time        `json:"submitted_at"`
	ExecutedAt       *time.Time       `json:"executed_at,omitempty"`
	CancelledAt      *time.Time       `json:"cancelled_at,omitempty"`
	SettledAt        *time.Time       `json:"settled_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// OrderFilter narrows order listings. Zero values are ignored.
type OrderFilter struct {
	ClientID         string
	AccountID        string
	StockID          string
	Side             Side
	Status           OrderStatus
	SettlementStatus SettlementStatus
	Limit            int
	Offset           int
}
