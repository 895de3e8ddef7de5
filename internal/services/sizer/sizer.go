// Package sizer turns balance and risk settings into an exchange-valid order quantity.
package sizer

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/trendbot/internal/domain"
)

// RejectReason explains why no order should be placed. RejectNone means accepted.
type RejectReason string

const (
	RejectNone                 RejectReason = ""
	RejectBelowMinimumNotional RejectReason = "below_minimum_notional"
	RejectQuantityRoundsToZero RejectReason = "quantity_rounds_to_zero"
)

// Outcome is either an order intent or a rejection. Both carry the budget that was computed.
type Outcome struct {
	Intent         domain.OrderIntent
	Rejected       RejectReason
	TargetNotional decimal.Decimal
	RawQuantity    decimal.Decimal
}

// Accepted reports whether Intent is valid for submission.
func (o Outcome) Accepted() bool {
	return o.Rejected == RejectNone
}

// Size computes a buy intent worth at most balance.Free * risk.RiskFraction.
// Quantity is floored to whole lot steps so the notional never exceeds the budget.
// An error means the inputs themselves are unusable; policy outcomes are reported in Outcome.
func Size(balance domain.AccountBalance, price decimal.Decimal, risk domain.RiskParameters, lot domain.LotConstraint) (Outcome, error) {
	if !price.IsPositive() {
		return Outcome{}, errors.Errorf("price must be positive, got %s", price)
	}
	if !lot.StepSize.IsPositive() {
		return Outcome{}, errors.Errorf("lot step size must be positive, got %s", lot.StepSize)
	}
	if err := risk.Validate(); err != nil {
		return Outcome{}, errors.Wrap(err, "invalid risk parameters")
	}

	free := balance.Free
	if free.IsNegative() {
		free = decimal.Zero
	}

	outcome := Outcome{TargetNotional: free.Mul(risk.RiskFraction)}

	if outcome.TargetNotional.LessThan(risk.MinOrderNotional) {
		outcome.Rejected = RejectBelowMinimumNotional
		return outcome, nil
	}

	outcome.RawQuantity = outcome.TargetNotional.Div(price)

	// steps = floor(notional / (price*step)), exact, so steps*step*price <= notional
	steps, _ := outcome.TargetNotional.QuoRem(price.Mul(lot.StepSize), 0)
	quantity := steps.Mul(lot.StepSize)
	if !quantity.IsPositive() {
		outcome.Rejected = RejectQuantityRoundsToZero
		return outcome, nil
	}

	outcome.Intent = domain.OrderIntent{
		Side:           domain.SideBuy,
		Quantity:       quantity,
		ReferencePrice: price,
		Lot:            lot,
	}
	return outcome, nil
}
