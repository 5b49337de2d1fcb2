package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ksred/klear-trade/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func testOrder() *types.Order {
	return &types.Order{
		OrderID:          "ORD_1",
		OrderNumber:      "ORD-20240102-ABCDEF12",
		AccountID:        "ACC_1",
		ClientID:         "alice",
		StockID:          "STK_A",
		Side:             types.SideBuy,
		Quantity:         100,
		NetAmount:        decimal.RequireFromString("1002.10"),
		Status:           types.OrderStatusExecuted,
		SettlementStatus: types.SettlementPending,
	}
}

func TestNATSPublisherSubjectsAndPayload(t *testing.T) {
	conn := &fakeConn{}
	p := &NATSPublisher{conn: conn, prefix: "orders"}

	require.NoError(t, p.Publish(context.Background(), NewOrderEvent(EventExecuted, testOrder())))
	require.NoError(t, p.Publish(context.Background(), NewOrderEvent(EventSettled, testOrder())))

	assert.Equal(t, []string{"orders.executed", "orders.settled"}, conn.subjects)

	var event OrderEvent
	require.NoError(t, json.Unmarshal(conn.payloads[0], &event))
	assert.Equal(t, "ORD_1", event.OrderID)
	assert.Equal(t, "1002.10", event.NetAmount.StringFixed(2))
	assert.Equal(t, types.SettlementPending, event.SettlementStatus)
}

func TestNATSPublisherErrors(t *testing.T) {
	p := &NATSPublisher{conn: &fakeConn{err: errors.New("connection closed")}}
	assert.Equal(t, "cancelled", p.Subject(EventCancelled))
	assert.Error(t, p.Publish(context.Background(), NewOrderEvent(EventCancelled, testOrder())))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok := &NATSPublisher{conn: &fakeConn{}}
	assert.ErrorIs(t, ok.Publish(ctx, NewOrderEvent(EventCancelled, testOrder())), context.Canceled)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	var p Publisher = r
	require.NoError(t, p.Publish(context.Background(), NewOrderEvent(EventExecuted, testOrder())))
	require.NoError(t, p.Publish(context.Background(), NewOrderEvent(EventRejected, testOrder())))

	assert.Len(t, r.Events(), 2)
	assert.Len(t, r.OfType(EventRejected), 1)
	assert.Empty(t, r.OfType(EventSettled))

	assert.NoError(t, Nop{}.Publish(context.Background(), OrderEvent{}))
}
