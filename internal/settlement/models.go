package settlement

import (
	"time"

	"github.com/ksred/klear-trade/internal/types"
)

// WalkResult counts the orders moved by one settlement walk, keyed by the
// status they moved to.
type WalkResult struct {
	Advanced  map[types.SettlementStatus]int `json:"advanced"`
	Completed []string                       `json:"completed_order_ids"`
	Skipped   int                            `json:"skipped"`
}

func (r WalkResult) Total() int {
	total := 0
	for _, n := range r.Advanced {
		total += n
	}
	return total
}

type AdvanceResponse struct {
	PreviousDate time.Time  `json:"previous_date"`
	CurrentDate  time.Time  `json:"current_date"`
	DaysAdvanced int        `json:"days_advanced"`
	Settlement   WalkResult `json:"settlement"`
}
