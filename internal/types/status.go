package types

import "fmt"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusExecuted  OrderStatus = "EXECUTED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
)

// SettlementStatus tracks the T+0..T+N walk of an executed order.
// The empty value means the order has not entered settlement.
type SettlementStatus string

const (
	SettlementNone      SettlementStatus = ""
	SettlementPending   SettlementStatus = "PENDING" // T+0
	SettlementT1        SettlementStatus = "T1"
	SettlementT2        SettlementStatus = "T2"
	SettlementCompleted SettlementStatus = "COMPLETED"
	SettlementCancelled SettlementStatus = "CANCELLED"
)

// SettlementCycle is the number of business days between trade date and value date.
const SettlementCycle = 2

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusExecuted, OrderStatusCancelled, OrderStatusRejected},
}

var settlementTransitions = map[SettlementStatus][]SettlementStatus{
	SettlementNone:    {SettlementPending, SettlementCancelled},
	SettlementPending: {SettlementT1},
	SettlementT1:      {SettlementT2},
	SettlementT2:      {SettlementCompleted},
}

// CanTransition reports whether an order may move from one status to another.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusExecuted, OrderStatusCancelled, OrderStatusRejected:
		return true
	}
	return false
}

func (s SettlementStatus) CanTransition(to SettlementStatus) bool {
	for _, next := range settlementTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// InProgress reports whether the day-advance walk still has work to do for this status.
func (s SettlementStatus) InProgress() bool {
	return s == SettlementPending || s == SettlementT1 || s == SettlementT2
}

// Next returns the status one business day later. Terminal and unsettled
// statuses return themselves.
func (s SettlementStatus) Next() SettlementStatus {
	day, ok := s.day()
	if !ok {
		return s
	}
	if day >= SettlementCycle {
		return SettlementCompleted
	}
	return settlementForDay(day + 1)
}

func (s SettlementStatus) day() (int, bool) {
	switch s {
	case SettlementPending:
		return 0, true
	case SettlementT1:
		return 1, true
	case SettlementT2:
		return 2, true
	}
	return 0, false
}

func settlementForDay(day int) SettlementStatus {
	switch day {
	case 0:
		return SettlementPending
	case 1:
		return SettlementT1
	case 2:
		return SettlementT2
	}
	panic(fmt.Sprintf("no settlement status for T+%d", day))
}

func (s SettlementStatus) Valid() bool {
	switch s {
	case SettlementPending, SettlementT1, SettlementT2, SettlementCompleted, SettlementCancelled:
		return true
	}
	return false
}
