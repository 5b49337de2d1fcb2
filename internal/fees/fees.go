// Package fees computes the commission and BSMV tax applied to every trade.
package fees

import (
	"fmt"

	"github.com/ksred/klear-trade/internal/types"
	"github.com/shopspring/decimal"
)

const decimalPlaces = 2

var (
	DefaultCommissionRate = decimal.RequireFromString("0.002")
	DefaultTaxRate        = decimal.RequireFromString("0.05")
)

// Breakdown is the priced result for one order.
type Breakdown struct {
	Gross      decimal.Decimal `json:"gross_amount"`
	Commission decimal.Decimal `json:"commission"`
	Tax        decimal.Decimal `json:"tax"`
	Net        decimal.Decimal `json:"net_amount"`
}

// TotalFees is commission plus tax.
func (b Breakdown) TotalFees() decimal.Decimal {
	return b.Commission.Add(b.Tax)
}

// Calculator holds the rates. The zero value is not usable; use New or Default.
type Calculator struct {
	commissionRate decimal.Decimal
	taxRate        decimal.Decimal
}

func New(commissionRate, taxRate decimal.Decimal) (Calculator, error) {
	if commissionRate.IsNegative() || taxRate.IsNegative() {
		return Calculator{}, fmt.Errorf("%w: fee rates must not be negative", types.ErrValidation)
	}
	return Calculator{commissionRate: commissionRate, taxRate: taxRate}, nil
}

func Default() Calculator {
	return Calculator{commissionRate: DefaultCommissionRate, taxRate: DefaultTaxRate}
}

func (c Calculator) CommissionRate() decimal.Decimal { return c.commissionRate }
func (c Calculator) TaxRate() decimal.Decimal        { return c.taxRate }

// Compute prices an order. Gross and commission are both taken from the
// unrounded price x quantity, each derived field is rounded half-up to two
// places exactly once, and net is summed from the rounded parts.
func (c Calculator) Compute(side types.Side, quantity int64, unitPrice decimal.Decimal) (Breakdown, error) {
	if !side.Valid() {
		return Breakdown{}, fmt.Errorf("%w: unknown side %q", types.ErrValidation, side)
	}
	if quantity <= 0 {
		return Breakdown{}, fmt.Errorf("%w: quantity must be positive", types.ErrValidation)
	}
	if !unitPrice.IsPositive() {
		return Breakdown{}, fmt.Errorf("%w: unit price must be positive", types.ErrValidation)
	}

	amount := unitPrice.Mul(decimal.NewFromInt(quantity))
	gross := amount.Round(decimalPlaces)
	commission := amount.Mul(c.commissionRate).Round(decimalPlaces)
	tax := commission.Mul(c.taxRate).Round(decimalPlaces)

	var net decimal.Decimal
	if side == types.SideBuy {
		net = gross.Add(commission).Add(tax)
	} else {
		net = gross.Sub(commission).Sub(tax)
	}

	return Breakdown{
		Gross:      gross,
		Commission: commission,
		Tax:        tax,
		Net:        net,
	}, nil
}

// Compute prices an order with the default rates.
func Compute(side types.Side, quantity int64, unitPrice decimal.Decimal) (Breakdown, error) {
	return Default().Compute(side, quantity, unitPrice)
}
