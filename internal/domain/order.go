package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderIntent is a sized order ready for submission.
type OrderIntent struct {
	Side Side
	// Quantity is already quantized to Lot.StepSize.
	Quantity decimal.Decimal
	// ReferencePrice is the ticker price the intent was sized against.
	ReferencePrice decimal.Decimal
	Lot            LotConstraint
}

// Notional returns quantity times reference price.
func (i OrderIntent) Notional() decimal.Decimal {
	return i.Quantity.Mul(i.ReferencePrice)
}

// PlacedOrder is the exchange acknowledgement of a submitted order.
type PlacedOrder struct {
	ID            string
	ClientOrderID string
	Side          Side
	// Quantity is the executed quantity; for a resting stop it is the order quantity.
	Quantity decimal.Decimal
	// Price is the average fill price, or the trigger price for a resting stop.
	Price decimal.Decimal
	Time  time.Time
}
