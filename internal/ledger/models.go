package ledger

import "github.com/shopspring/decimal"

type OpenAccountRequest struct {
	AccountID      string          `json:"account_id" binding:"required"`
	ClientID       string          `json:"client_id" binding:"required"`
	Currency       string          `json:"currency"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

type DepositRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}

type StatusRequest struct {
	Active *bool `json:"active" binding:"required"`
}
