package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusPending, OrderStatusExecuted, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusRejected, true},
		{OrderStatusExecuted, OrderStatusCancelled, false},
		{OrderStatusExecuted, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusCancelled, false},
		{OrderStatusRejected, OrderStatusExecuted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}

	assert.False(t, OrderStatusPending.Terminal())
	assert.True(t, OrderStatusExecuted.Terminal())
	assert.True(t, OrderStatusCancelled.Terminal())
	assert.True(t, OrderStatusRejected.Terminal())
}

func TestSettlementNext(t *testing.T) {
	assert.Equal(t, SettlementT1, SettlementPending.Next())
	assert.Equal(t, SettlementT2, SettlementT1.Next())
	assert.Equal(t, SettlementCompleted, SettlementT2.Next())
	assert.Equal(t, SettlementCompleted, SettlementCompleted.Next())
	assert.Equal(t, SettlementCancelled, SettlementCancelled.Next())
	assert.Equal(t, SettlementNone, SettlementNone.Next())
}

func TestSettlementNextIsAlwaysLegal(t *testing.T) {
	for _, s := range []SettlementStatus{SettlementPending, SettlementT1, SettlementT2} {
		assert.True(t, s.InProgress())
		assert.True(t, s.CanTransition(s.Next()), "%s -> %s", s, s.Next())
	}
	assert.False(t, SettlementCompleted.InProgress())
	assert.False(t, SettlementCompleted.CanTransition(SettlementPending))
	assert.True(t, SettlementNone.CanTransition(SettlementCancelled))
	assert.False(t, SettlementT1.CanTransition(SettlementCancelled))
}
