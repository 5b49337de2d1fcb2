package trading

import (
	"github.com/ksred/klear-trade/internal/types"
	"github.com/shopspring/decimal"
)

// PreviewRequest is an order intent. Price is the limit price for LIMIT
// orders and is ignored for MARKET orders.
type PreviewRequest struct {
	AccountID     string              `json:"account_id" binding:"required"`
	StockID       string              `json:"stock_id" binding:"required"`
	Side          types.Side          `json:"side" binding:"required"`
	ExecutionType types.ExecutionType `json:"execution_type" binding:"required"`
	Quantity      int64               `json:"quantity"`
	Price         decimal.Decimal     `json:"price"`
}

type CommitRequest struct {
	PreviewID string `json:"preview_id" binding:"required"`
}
