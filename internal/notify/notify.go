// Package notify publishes order lifecycle events.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ksred/klear-trade/internal/types"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventExecuted  EventType = "executed"
	EventCancelled EventType = "cancelled"
	EventRejected  EventType = "rejected"
	EventSettled   EventType = "settled"
)

// OrderEvent is the JSON payload published for every lifecycle change.
type OrderEvent struct {
	Type             EventType              `json:"type"`
	OrderID          string                 `json:"order_id"`
	OrderNumber      string                 `json:"order_number"`
	AccountID        string                 `json:"account_id"`
	ClientID         string                 `json:"client_id"`
	StockID          string                 `json:"stock_id"`
	Side             types.Side             `json:"side"`
	Quantity         int64                  `json:"quantity"`
	NetAmount        decimal.Decimal        `json:"net_amount"`
	Status           types.OrderStatus      `json:"status"`
	SettlementStatus types.SettlementStatus `json:"settlement_status,omitempty"`
	Reason           string                 `json:"reason,omitempty"`
	OccurredAt       time.Time              `json:"occurred_at"`
}

func NewOrderEvent(eventType EventType, order *types.Order) OrderEvent {
	return OrderEvent{
		Type:             eventType,
		OrderID:          order.OrderID,
		OrderNumber:      order.OrderNumber,
		AccountID:        order.AccountID,
		ClientID:         order.ClientID,
		StockID:          order.StockID,
		Side:             order.Side,
		Quantity:         order.Quantity,
		NetAmount:        order.NetAmount,
		Status:           order.Status,
		SettlementStatus: order.SettlementStatus,
		Reason:           order.RejectReason,
		OccurredAt:       time.Now().UTC(),
	}
}

// Publisher delivers lifecycle events. Callers log failures and carry on;
// a lost notification never undoes a booked order.
type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
	Close()
}

type natsConn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes each event on <prefix>.<event type>.
type NATSPublisher struct {
	conn   natsConn
	nc     *nats.Conn
	prefix string
}

func NewNATSPublisher(url, prefix string) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("klear-trade"),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{conn: nc, nc: nc, prefix: prefix}, nil
}

func (p *NATSPublisher) Subject(eventType EventType) string {
	if p.prefix == "" {
		return string(eventType)
	}
	return p.prefix + "." + string(eventType)
}

func (p *NATSPublisher) Publish(ctx context.Context, event OrderEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.conn.Publish(p.Subject(event.Type), data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// Nop drops every event. Used when no NATS URL is configured.
type Nop struct{}

func (Nop) Publish(context.Context, OrderEvent) error { return nil }
func (Nop) Close()                                    {}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []OrderEvent
}

func (r *Recorder) Publish(_ context.Context, event OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() {}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []OrderEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]OrderEvent, len(r.events))
	copy(out, r.events)
	return out
}

// OfType filters the recorded events.
func (r *Recorder) OfType(eventType EventType) []OrderEvent {
	var out []OrderEvent
	for _, e := range r.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
