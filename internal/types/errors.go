package types

import "errors"

var (
	ErrValidation             = errors.New("validation failed")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrQuoteNotFound          = errors.New("quote not found")
	ErrQuoteExpired           = errors.New("quote expired")
	ErrIllegalStateTransition = errors.New("illegal state transition")
	ErrPersistenceFailure     = errors.New("persistence failure")
	ErrOrderRejected          = errors.New("order rejected")
	ErrOrderNotFound          = errors.New("order not found")
	ErrAccountNotFound        = errors.New("account not found")
	ErrAccountInactive        = errors.New("account inactive")
	ErrStockNotFound          = errors.New("stock not found")
)
