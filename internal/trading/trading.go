// Package trading turns previews into orders: quotes are priced and funded
// on preview, redeemed exactly once on commit and booked on the ledger
// before the order is written.
package trading

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ksred/klear-trade/internal/fees"
	"github.com/ksred/klear-trade/internal/ledger"
	"github.com/ksred/klear-trade/internal/metrics"
	"github.com/ksred/klear-trade/internal/notify"
	"github.com/ksred/klear-trade/internal/quote"
	"github.com/ksred/klear-trade/internal/settlement"
	"github.com/ksred/klear-trade/internal/types"
	"github.com/ksred/klear-trade/pkg/keylock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PriceSource supplies listed stocks and their reference prices.
type PriceSource interface {
	Stock(ctx context.Context, stockID string) (*types.Stock, error)
}

// Calendar supplies the business date orders trade on.
type Calendar interface {
	Today(ctx context.Context) (time.Time, error)
}

type Dependencies struct {
	Ledger    *ledger.Service
	Prices    PriceSource
	Calendar  Calendar
	Quotes    *quote.Store
	Fees      fees.Calculator
	Publisher notify.Publisher
}

// Service is the order execution engine.
type Service struct {
	orders    OrderRepository
	ledger    *ledger.Service
	prices    PriceSource
	calendar  Calendar
	quotes    *quote.Store
	fees      fees.Calculator
	publisher notify.Publisher
	locks     *keylock.Locker
}

// NewService wires the engine and registers it as the quote store's expiry
// handler so that abandoned previews give their reservation back.
func NewService(gormDB *gorm.DB, deps Dependencies) *Service {
	if deps.Publisher == nil {
		deps.Publisher = notify.Nop{}
	}
	if deps.Quotes == nil {
		deps.Quotes = quote.NewStore(quote.DefaultTTL)
	}

	s := &Service{
		orders:    NewDatabase(gormDB),
		ledger:    deps.Ledger,
		prices:    deps.Prices,
		calendar:  deps.Calendar,
		quotes:    deps.Quotes,
		fees:      deps.Fees,
		publisher: deps.Publisher,
		locks:     keylock.New(),
	}
	s.quotes.SetExpiredHandler(s.releaseExpired)
	return s
}

func (s *Service) Quotes() *quote.Store {
	return s.quotes
}

// Preview prices an order intent, reserves the BUY cost and stores the
// resulting quote. Nothing is stored when the reservation fails.
func (s *Service) Preview(ctx context.Context, clientID string, req PreviewRequest) (*quote.Quote, error) {
	logger := log.With().
		Str("service", "trading").
		Str("operation", "preview").
		Str("client_id", clientID).
		Str("account_id", req.AccountID).
		Str("stock_id", req.StockID).
		Logger()

	req.Side = types.Side(strings.ToUpper(string(req.Side)))
	req.ExecutionType = types.ExecutionType(strings.ToUpper(string(req.ExecutionType)))
	if !req.Side.Valid() {
		return nil, fmt.Errorf("%w: side must be BUY or SELL", types.ErrValidation)
	}
	if !req.ExecutionType.Valid() {
		return nil, fmt.Errorf("%w: execution type must be MARKET or LIMIT", types.ErrValidation)
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", types.ErrValidation)
	}

	account, err := s.ledger.Account(ctx, req.AccountID)
	if err != nil {
		if errors.Is(err, types.ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: %w", types.ErrValidation, err)
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if clientID != "" && account.ClientID != clientID {
		return nil, fmt.Errorf("%w: account %s does not belong to the caller", types.ErrValidation, req.AccountID)
	}
	if !account.Active {
		return nil, fmt.Errorf("%w: %w", types.ErrValidation, types.ErrAccountInactive)
	}

	stock, err := s.prices.Stock(ctx, req.StockID)
	if err != nil {
		if errors.Is(err, types.ErrStockNotFound) {
			return nil, fmt.Errorf("%w: %w", types.ErrValidation, err)
		}
		return nil, fmt.Errorf("failed to load stock: %w", err)
	}

	// MARKET orders always take the reference price, never the caller's hint
	unitPrice := req.Price
	if req.ExecutionType == types.ExecutionMarket {
		unitPrice = stock.CurrentPrice
	}

	breakdown, err := s.fees.Compute(req.Side, req.Quantity, unitPrice)
	if err != nil {
		return nil, err
	}

	q := quote.Quote{
		PreviewID:     quote.NewPreviewID(),
		AccountID:     account.AccountID,
		ClientID:      account.ClientID,
		StockID:       stock.StockID,
		Symbol:        stock.Symbol,
		Side:          req.Side,
		ExecutionType: req.ExecutionType,
		Quantity:      req.Quantity,
		UnitPrice:     unitPrice,
		Breakdown:     breakdown,
		Reserved:      decimal.Zero,
	}

	if req.Side == types.SideBuy {
		if err := s.ledger.Reserve(ctx, q.AccountID, breakdown.Net, q.PreviewID); err != nil {
			logger.Info().Err(err).Stringer("net_amount", breakdown.Net).Msg("preview refused")
			return nil, err
		}
		q.Reserved = breakdown.Net
	}

	stored := s.quotes.Create(q)
	metrics.QuotesTotal.WithLabelValues("created").Inc()
	metrics.OrdersTotal.WithLabelValues("previewed", string(stored.Side)).Inc()

	logger.Info().
		Str("preview_id", stored.PreviewID).
		Str("side", string(stored.Side)).
		Int64("quantity", stored.Quantity).
		Stringer("unit_price", stored.UnitPrice).
		Stringer("net_amount", stored.Net).
		Time("expires_at", stored.ExpiresAt).
		Msg("preview created")
	return &stored, nil
}

// Commit redeems a preview. MARKET orders are booked on the ledger and
// written EXECUTED; LIMIT orders are written PENDING with their
// reservation still held. A consumed preview that fails its checks is
// written REJECTED and returned together with an ErrOrderRejected error.
func (s *Service) Commit(ctx context.Context, clientID, previewID string) (*types.Order, error) {
	logger := log.With().
		Str("service", "trading").
		Str("operation", "commit").
		Str("client_id", clientID).
		Str("preview_id", previewID).
		Logger()

	// read before Consume: a failure here must leave the preview redeemable
	today, err := s.calendar.Today(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to read business date")
		return nil, fmt.Errorf("%w: failed to read business date: %w", types.ErrPersistenceFailure, err)
	}

	q, err := s.quotes.Consume(previewID, clientID)
	if err != nil {
		outcome := "not_found"
		if errors.Is(err, types.ErrQuoteExpired) {
			outcome = "expired"
		}
		metrics.QuotesTotal.WithLabelValues(outcome).Inc()
		logger.Info().Err(err).Msg("commit refused")
		return nil, err
	}
	metrics.QuotesTotal.WithLabelValues("committed").Inc()

	order := newOrder(q, today)
	logger = logger.With().Str("order_id", order.OrderID).Logger()

	account, err := s.ledger.Account(ctx, q.AccountID)
	if err != nil {
		return s.rejectNew(ctx, order, q.Reserved, err, logger)
	}
	if !account.Active {
		return s.rejectNew(ctx, order, q.Reserved, types.ErrAccountInactive, logger)
	}

	if q.ExecutionType == types.ExecutionLimit {
		order.Status = types.OrderStatusPending
		if err := s.persist(ctx, order); err != nil {
			s.releaseReservation(ctx, order.AccountID, q.Reserved, order.OrderID, logger)
			logger.Error().Err(err).Msg("failed to persist pending order")
			return nil, fmt.Errorf("%w: %w", types.ErrPersistenceFailure, err)
		}
		metrics.OrdersTotal.WithLabelValues("pending", string(order.Side)).Inc()
		logger.Info().Stringer("limit_price", order.Price).Msg("limit order resting")
		return order, nil
	}

	direction := ledger.DirectionFor(order.Side)
	if err := s.ledger.Commit(ctx, order.AccountID, order.NetAmount, direction, order.OrderID); err != nil {
		return s.rejectNew(ctx, order, q.Reserved, err, logger)
	}

	markExecuted(order, today)
	if err := s.persist(ctx, order); err != nil {
		// Money is booked but there is no order: undo the booking
		if rerr := s.ledger.Reverse(ctx, order.AccountID, order.NetAmount, direction, order.OrderID); rerr != nil {
			logger.Error().Err(rerr).Msg("failed to reverse ledger commit after persistence failure")
		}
		logger.Error().Err(err).Msg("failed to persist executed order")
		return nil, fmt.Errorf("%w: %w", types.ErrPersistenceFailure, err)
	}

	s.executed(ctx, order, logger)
	return order, nil
}

// Cancel withdraws a PENDING order and releases its reservation. Any other
// status fails with ErrIllegalStateTransition and leaves the order as it was.
func (s *Service) Cancel(ctx context.Context, clientID, orderID string) (*types.Order, error) {
	logger := log.With().
		Str("service", "trading").
		Str("operation", "cancel").
		Str("client_id", clientID).
		Str("order_id", orderID).
		Logger()

	unlock := s.locks.Lock(orderID)
	defer unlock()

	order, err := s.GetOrder(ctx, clientID, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransition(types.OrderStatusCancelled) {
		return nil, fmt.Errorf("%w: order %s is %s", types.ErrIllegalStateTransition, orderID, order.Status)
	}

	if order.Side == types.SideBuy {
		if err := s.ledger.Release(ctx, order.AccountID, order.NetAmount, order.OrderID); err != nil {
			return nil, fmt.Errorf("failed to release reservation: %w", err)
		}
	}

	now := time.Now()
	order.Status = types.OrderStatusCancelled
	order.SettlementStatus = types.SettlementCancelled
	order.CancelledAt = &now

	updated, err := s.orders.UpdateOrderState(ctx, order, types.OrderStatusPending)
	if err != nil || !updated {
		if order.Side == types.SideBuy {
			if rerr := s.ledger.Reserve(ctx, order.AccountID, order.NetAmount, order.OrderID); rerr != nil {
				logger.Error().Err(rerr).Msg("failed to restore reservation after cancel failure")
			}
		}
		if err == nil {
			err = errors.New("order changed concurrently")
		}
		logger.Error().Err(err).Msg("failed to persist cancellation")
		return nil, fmt.Errorf("%w: %w", types.ErrPersistenceFailure, err)
	}

	metrics.OrdersTotal.WithLabelValues("cancelled", string(order.Side)).Inc()
	s.publish(ctx, notify.EventCancelled, order, logger)
	logger.Info().Msg("order cancelled")
	return order, nil
}

// GetOrder returns one of the caller's orders. An empty clientID skips the
// ownership check.
func (s *Service) GetOrder(ctx context.Context, clientID, orderID string) (*types.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if clientID != "" && order.ClientID != clientID {
		return nil, types.ErrOrderNotFound
	}
	return order, nil
}

func (s *Service) ListOrders(ctx context.Context, filter types.OrderFilter) ([]types.Order, error) {
	if filter.Side != "" && !filter.Side.Valid() {
		return nil, fmt.Errorf("%w: unknown side %q", types.ErrValidation, filter.Side)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", types.ErrValidation, filter.Status)
	}
	if filter.SettlementStatus != "" && !filter.SettlementStatus.Valid() {
		return nil, fmt.Errorf("%w: unknown settlement status %q", types.ErrValidation, filter.SettlementStatus)
	}
	return s.orders.ListOrders(ctx, filter)
}

// ProcessPendingOrders executes every resting LIMIT order whose limit the
// reference price has crossed. It returns how many orders were executed.
func (s *Service) ProcessPendingOrders(ctx context.Context) (int, error) {
	orders, err := s.orders.ListPendingOrders(ctx, 500)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending orders: %w", err)
	}

	executed := 0
	for _, order := range orders {
		stock, err := s.prices.Stock(ctx, order.StockID)
		if err != nil {
			log.Warn().Err(err).Str("order_id", order.OrderID).Msg("no reference price for pending order")
			continue
		}
		if !crossed(order.Side, stock.CurrentPrice, order.Price) {
			continue
		}

		ok, err := s.executePending(ctx, order.OrderID)
		if err != nil {
			log.Error().Err(err).Str("order_id", order.OrderID).Msg("failed to execute pending order")
			continue
		}
		if ok {
			executed++
		}
	}
	return executed, nil
}

// crossed reports whether a limit order is marketable at price.
func crossed(side types.Side, price, limit decimal.Decimal) bool {
	if side == types.SideBuy {
		return price.LessThanOrEqual(limit)
	}
	return price.GreaterThanOrEqual(limit)
}

// executePending books a resting order at its frozen quote amounts.
func (s *Service) executePending(ctx context.Context, orderID string) (bool, error) {
	logger := log.With().
		Str("service", "trading").
		Str("operation", "execute_pending").
		Str("order_id", orderID).
		Logger()

	unlock := s.locks.Lock(orderID)
	defer unlock()

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	if order.Status != types.OrderStatusPending {
		return false, nil
	}

	today, err := s.calendar.Today(ctx)
	if err != nil {
		return false, err
	}

	direction := ledger.DirectionFor(order.Side)
	if err := s.ledger.Commit(ctx, order.AccountID, order.NetAmount, direction, order.OrderID); err != nil {
		if order.Side == types.SideBuy {
			s.releaseReservation(ctx, order.AccountID, order.NetAmount, order.OrderID, logger)
		}
		order.Status = types.OrderStatusRejected
		order.RejectReason = err.Error()
		if _, uerr := s.orders.UpdateOrderState(ctx, order, types.OrderStatusPending); uerr != nil {
			return false, fmt.Errorf("%w: %w", types.ErrPersistenceFailure, uerr)
		}
		metrics.OrdersTotal.WithLabelValues("rejected", string(order.Side)).Inc()
		s.publish(ctx, notify.EventRejected, order, logger)
		logger.Warn().Err(err).Msg("pending order rejected")
		return false, nil
	}

	markExecuted(order, today)
	updated, err := s.orders.UpdateOrderState(ctx, order, types.OrderStatusPending)
	if err != nil || !updated {
		if rerr := s.ledger.Reverse(ctx, order.AccountID, order.NetAmount, direction, order.OrderID); rerr != nil {
			logger.Error().Err(rerr).Msg("failed to reverse ledger commit after persistence failure")
		}
		if err == nil {
			err = errors.New("order changed concurrently")
		}
		return false, fmt.Errorf("%w: %w", types.ErrPersistenceFailure, err)
	}

	s.executed(ctx, order, logger)
	return true, nil
}

// rejectNew gives back the reservation and writes a REJECTED order for a
// consumed preview.
func (s *Service) rejectNew(ctx context.Context, order *types.Order, reserved decimal.Decimal, cause error, logger zerolog.Logger) (*types.Order, error) {
	s.releaseReservation(ctx, order.AccountID, reserved, order.OrderID, logger)

	order.Status = types.OrderStatusRejected
	order.SettlementStatus = types.SettlementNone
	order.RejectReason = cause.Error()
	if err := s.persist(ctx, order); err != nil {
		logger.Error().Err(err).Msg("failed to persist rejected order")
		return nil, fmt.Errorf("%w: %w", types.ErrPersistenceFailure, err)
	}

	metrics.OrdersTotal.WithLabelValues("rejected", string(order.Side)).Inc()
	s.publish(ctx, notify.EventRejected, order, logger)
	logger.Warn().Err(cause).Msg("order rejected")
	return order, fmt.Errorf("%w: %w", types.ErrOrderRejected, cause)
}

// persist writes a new order, retrying once. PreviewID is unique, so a
// retry after a write that did land finds the stored row instead of
// writing a second one.
func (s *Service) persist(ctx context.Context, order *types.Order) error {
	err := s.orders.CreateOrder(ctx, order)
	if err == nil {
		return nil
	}

	if existing, gerr := s.orders.GetOrderByPreviewID(ctx, order.PreviewID); gerr == nil {
		*order = *existing
		return nil
	}
	return s.orders.CreateOrder(ctx, order)
}

func (s *Service) executed(ctx context.Context, order *types.Order, logger zerolog.Logger) {
	metrics.OrdersTotal.WithLabelValues("executed", string(order.Side)).Inc()
	s.publish(ctx, notify.EventExecuted, order, logger)
	logger.Info().
		Str("order_number", order.OrderNumber).
		Str("side", string(order.Side)).
		Int64("quantity", order.Quantity).
		Stringer("net_amount", order.NetAmount).
		Msg("order executed")
}

func (s *Service) releaseReservation(ctx context.Context, accountID string, amount decimal.Decimal, reference string, logger zerolog.Logger) {
	if !amount.IsPositive() {
		return
	}
	if err := s.ledger.Release(ctx, accountID, amount, reference); err != nil {
		logger.Error().Err(err).Stringer("amount", amount).Msg("failed to release reservation")
	}
}

// releaseExpired runs for every quote that expired without a commit.
func (s *Service) releaseExpired(q quote.Quote) {
	logger := log.With().
		Str("service", "trading").
		Str("operation", "expire").
		Str("preview_id", q.PreviewID).
		Str("account_id", q.AccountID).
		Logger()

	s.releaseReservation(context.Background(), q.AccountID, q.Reserved, q.PreviewID, logger)
	metrics.OrdersTotal.WithLabelValues("expired", string(q.Side)).Inc()
	logger.Info().Stringer("released", q.Reserved).Msg("preview expired")
}

func (s *Service) publish(ctx context.Context, eventType notify.EventType, order *types.Order, logger zerolog.Logger) {
	if err := s.publisher.Publish(ctx, notify.NewOrderEvent(eventType, order)); err != nil {
		logger.Warn().Err(err).Str("event", string(eventType)).Msg("failed to publish order event")
	}
}

func newOrder(q quote.Quote, today time.Time) *types.Order {
	orderID := uuid.New().String()
	now := time.Now()
	return &types.Order{
		OrderID:       orderID,
		OrderNumber:   fmt.Sprintf("ORD-%s-%s", today.Format("20060102"), strings.ToUpper(orderID[:8])),
		PreviewID:     q.PreviewID,
		AccountID:     q.AccountID,
		ClientID:      q.ClientID,
		StockID:       q.StockID,
		Symbol:        q.Symbol,
		Side:          q.Side,
		ExecutionType: q.ExecutionType,
		Quantity:      q.Quantity,
		Price:         q.UnitPrice,
		GrossAmount:   q.Gross,
		Commission:    q.Commission,
		Tax:           q.Tax,
		NetAmount:     q.Net,
		SubmittedAt:   now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func markExecuted(order *types.Order, today time.Time) {
	now := time.Now()
	tradeDate := settlement.DateOnly(today)
	valueDate := settlement.ValueDate(tradeDate)

	order.Status = types.OrderStatusExecuted
	order.SettlementStatus = types.SettlementPending
	order.ExecutedAt = &now
	order.TradeDate = &tradeDate
	order.ValueDate = &valueDate
}
