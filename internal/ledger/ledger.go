// Package ledger guards account balances. Every mutation of an account is
// serialised behind a per-account lock and journalled; different accounts
// proceed in parallel.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ksred/klear-trade/internal/metrics"
	"github.com/ksred/klear-trade/internal/types"
	"github.com/ksred/klear-trade/pkg/keylock"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Direction says whether a commit takes money out of or puts money into an account.
type Direction string

const (
	Debit  Direction = "DEBIT"
	Credit Direction = "CREDIT"
)

// DirectionFor maps an order side to its ledger direction.
func DirectionFor(side types.Side) Direction {
	if side == types.SideBuy {
		return Debit
	}
	return Credit
}

// Service exposes reserve, release and commit on account balances.
type Service struct {
	db    *Database
	locks *keylock.Locker
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db:    NewDatabase(gormDB),
		locks: keylock.New(),
	}
}

// Account returns a snapshot of the account.
func (s *Service) Account(ctx context.Context, accountID string) (*types.Account, error) {
	return s.db.GetAccount(ctx, accountID)
}

// Entries returns the account journal in insertion order.
func (s *Service) Entries(ctx context.Context, accountID string) ([]types.LedgerEntry, error) {
	return s.db.GetEntries(ctx, accountID)
}

// OpenAccount creates an active account whose balance equals its available balance.
func (s *Service) OpenAccount(ctx context.Context, req OpenAccountRequest) (*types.Account, error) {
	req.AccountID = strings.TrimSpace(req.AccountID)
	req.ClientID = strings.TrimSpace(req.ClientID)
	if req.AccountID == "" || req.ClientID == "" {
		return nil, fmt.Errorf("%w: account_id and client_id are required", types.ErrValidation)
	}
	if req.InitialBalance.IsNegative() {
		return nil, fmt.Errorf("%w: initial balance must not be negative", types.ErrValidation)
	}
	if req.Currency == "" {
		req.Currency = "TRY"
	}

	account := &types.Account{
		AccountID:        req.AccountID,
		ClientID:         req.ClientID,
		Currency:         req.Currency,
		Balance:          req.InitialBalance,
		AvailableBalance: req.InitialBalance,
		Active:           true,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	if err := s.db.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	log.Info().
		Str("account_id", account.AccountID).
		Str("client_id", account.ClientID).
		Stringer("balance", account.Balance).
		Msg("account opened")
	return account, nil
}

// SetActive flips the account's active flag.
func (s *Service) SetActive(ctx context.Context, accountID string, active bool) (*types.Account, error) {
	unlock := s.locks.Lock(accountID)
	defer unlock()

	if err := s.db.UpdateActive(ctx, accountID, active); err != nil {
		return nil, err
	}
	return s.db.GetAccount(ctx, accountID)
}

// Deposit books external money onto the account.
func (s *Service) Deposit(ctx context.Context, accountID string, amount decimal.Decimal, reference string) (*types.Account, error) {
	return s.apply(ctx, accountID, types.EntryCredit, amount, reference, func(a *types.Account) error {
		if !a.Active {
			return types.ErrAccountInactive
		}
		a.Balance = a.Balance.Add(amount)
		a.AvailableBalance = a.AvailableBalance.Add(amount)
		return nil
	})
}

// Reserve removes amount from the available balance, failing with
// ErrInsufficientFunds when it is not fully covered. Balance is untouched.
func (s *Service) Reserve(ctx context.Context, accountID string, amount decimal.Decimal, reference string) error {
	_, err := s.apply(ctx, accountID, types.EntryReserve, amount, reference, func(a *types.Account) error {
		if !a.Active {
			return types.ErrAccountInactive
		}
		if amount.GreaterThan(a.AvailableBalance) {
			metrics.InsufficientFundsTotal.Inc()
			return fmt.Errorf("%w: need %s, available %s", types.ErrInsufficientFunds,
				amount.StringFixed(2), a.AvailableBalance.StringFixed(2))
		}
		a.AvailableBalance = a.AvailableBalance.Sub(amount)
		return nil
	})
	return err
}

// Release gives a reservation back to the available balance.
func (s *Service) Release(ctx context.Context, accountID string, amount decimal.Decimal, reference string) error {
	_, err := s.apply(ctx, accountID, types.EntryRelease, amount, reference, func(a *types.Account) error {
		released := a.AvailableBalance.Add(amount)
		if released.GreaterThan(a.Balance) {
			return fmt.Errorf("%w: release of %s exceeds outstanding reservations",
				types.ErrIllegalStateTransition, amount.StringFixed(2))
		}
		a.AvailableBalance = released
		return nil
	})
	return err
}

// Commit books a reserved debit or an unreserved credit. A debit lowers the
// balance only, because the reservation already lowered the available
// balance. A credit raises both.
func (s *Service) Commit(ctx context.Context, accountID string, amount decimal.Decimal, direction Direction, reference string) error {
	kind := types.EntryDebit
	if direction == Credit {
		kind = types.EntryCredit
	}
	_, err := s.apply(ctx, accountID, kind, amount, reference, func(a *types.Account) error {
		if !a.Active {
			return types.ErrAccountInactive
		}
		switch direction {
		case Debit:
			reserved := a.Balance.Sub(a.AvailableBalance)
			if amount.GreaterThan(reserved) {
				return fmt.Errorf("%w: debit of %s is not covered by a reservation",
					types.ErrIllegalStateTransition, amount.StringFixed(2))
			}
			a.Balance = a.Balance.Sub(amount)
		case Credit:
			a.Balance = a.Balance.Add(amount)
			a.AvailableBalance = a.AvailableBalance.Add(amount)
		default:
			return fmt.Errorf("%w: unknown direction %q", types.ErrValidation, direction)
		}
		return nil
	})
	return err
}

// Reverse undoes a committed debit or credit. Undoing a debit returns the
// money to both balance and available balance; the original reservation is
// not restored.
func (s *Service) Reverse(ctx context.Context, accountID string, amount decimal.Decimal, direction Direction, reference string) error {
	_, err := s.apply(ctx, accountID, types.EntryReversal, amount, reference, func(a *types.Account) error {
		switch direction {
		case Debit:
			a.Balance = a.Balance.Add(amount)
			a.AvailableBalance = a.AvailableBalance.Add(amount)
		case Credit:
			if amount.GreaterThan(a.AvailableBalance) {
				return fmt.Errorf("%w: cannot reverse credit of %s", types.ErrInsufficientFunds, amount.StringFixed(2))
			}
			a.Balance = a.Balance.Sub(amount)
			a.AvailableBalance = a.AvailableBalance.Sub(amount)
		default:
			return fmt.Errorf("%w: unknown direction %q", types.ErrValidation, direction)
		}
		return nil
	})
	return err
}

func (s *Service) apply(
	ctx context.Context,
	accountID string,
	kind types.LedgerEntryKind,
	amount decimal.Decimal,
	reference string,
	mutate func(*types.Account) error,
) (*types.Account, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", types.ErrValidation)
	}

	logger := log.With().
		Str("component", "ledger").
		Str("account_id", accountID).
		Str("kind", string(kind)).
		Stringer("amount", amount).
		Str("reference", reference).
		Logger()

	unlock := s.locks.Lock(accountID)
	defer unlock()

	account, err := s.db.ApplyMutation(ctx, accountID, kind, amount, reference, mutate)
	if err != nil {
		logger.Debug().Err(err).Msg("ledger operation refused")
		return nil, err
	}

	metrics.LedgerOperationsTotal.WithLabelValues(string(kind)).Inc()
	logger.Debug().
		Stringer("balance", account.Balance).
		Stringer("available_balance", account.AvailableBalance).
		Msg("ledger operation applied")
	return account, nil
}
