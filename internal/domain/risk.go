package domain

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// maxScale bounds the decimal places derived from an exchange increment.
const maxScale = 18

// RiskParameters is process-wide risk configuration.
type RiskParameters struct {
	// RiskFraction is the share of free quote balance committed per entry, in (0,1].
	RiskFraction decimal.Decimal
	// StopLossFraction is the distance of the protective stop below entry, in (0,1).
	StopLossFraction decimal.Decimal
	// MinOrderNotional is the exchange-imposed floor for order value in quote currency.
	MinOrderNotional decimal.Decimal
}

// Validate checks parameter ranges.
func (r RiskParameters) Validate() error {
	one := decimal.NewFromInt(1)
	if r.RiskFraction.LessThanOrEqual(decimal.Zero) || r.RiskFraction.GreaterThan(one) {
		return errors.Errorf("risk fraction must be in (0,1], got %s", r.RiskFraction)
	}
	if r.StopLossFraction.LessThanOrEqual(decimal.Zero) || r.StopLossFraction.GreaterThanOrEqual(one) {
		return errors.Errorf("stop loss fraction must be in (0,1), got %s", r.StopLossFraction)
	}
	if r.MinOrderNotional.IsNegative() {
		return errors.Errorf("min order notional must not be negative, got %s", r.MinOrderNotional)
	}
	return nil
}

// LotConstraint describes the tradable increments of an instrument.
type LotConstraint struct {
	// StepSize is the smallest quantity increment, always > 0.
	StepSize decimal.Decimal
	// TickSize is the smallest price increment; zero when the exchange imposes none.
	TickSize decimal.Decimal
}

// NewLotConstraint parses exchange-provided increments. Empty tick means no price filter.
func NewLotConstraint(stepSize, tickSize string) (LotConstraint, error) {
	step, err := decimal.NewFromString(stepSize)
	if err != nil {
		return LotConstraint{}, errors.Wrapf(err, "parse step size %q", stepSize)
	}
	if !step.IsPositive() {
		return LotConstraint{}, errors.Errorf("step size must be positive, got %s", stepSize)
	}

	tick := decimal.Zero
	if tickSize != "" {
		tick, err = decimal.NewFromString(tickSize)
		if err != nil {
			return LotConstraint{}, errors.Wrapf(err, "parse tick size %q", tickSize)
		}
		if tick.IsNegative() {
			return LotConstraint{}, errors.Errorf("tick size must not be negative, got %s", tickSize)
		}
	}

	return LotConstraint{StepSize: step, TickSize: tick}, nil
}

// QuantityDecimals is the number of decimal places implied by StepSize,
// so 0.001 and "0.00100000" both give 3.
func (l LotConstraint) QuantityDecimals() int32 {
	return scaleOf(l.StepSize)
}

// PriceDecimals is the number of decimal places implied by TickSize.
func (l LotConstraint) PriceDecimals() int32 {
	return scaleOf(l.TickSize)
}

// FloorQuantity rounds qty toward zero to a whole number of steps.
func (l LotConstraint) FloorQuantity(qty decimal.Decimal) decimal.Decimal {
	if !l.StepSize.IsPositive() || !qty.IsPositive() {
		return decimal.Zero
	}
	steps, _ := qty.QuoRem(l.StepSize, 0)
	return steps.Mul(l.StepSize)
}

// FormatQuantity renders qty with exactly QuantityDecimals places.
func (l LotConstraint) FormatQuantity(qty decimal.Decimal) string {
	return qty.StringFixed(l.QuantityDecimals())
}

// CeilPrice rounds price up to the tick grid so the stop never sits further from entry
// than requested. Prices are returned unchanged when there is no tick.
func (l LotConstraint) CeilPrice(price decimal.Decimal) decimal.Decimal {
	if !l.TickSize.IsPositive() {
		return price
	}
	ticks, rem := price.QuoRem(l.TickSize, 0)
	if !rem.IsZero() {
		ticks = ticks.Add(decimal.NewFromInt(1))
	}
	return ticks.Mul(l.TickSize)
}

// FormatPrice renders price on the tick grid, or in its shortest exact form without one.
func (l LotConstraint) FormatPrice(price decimal.Decimal) string {
	if !l.TickSize.IsPositive() {
		return price.String()
	}
	return price.StringFixed(l.PriceDecimals())
}

func scaleOf(d decimal.Decimal) int32 {
	if d.IsZero() {
		return 0
	}
	for places := int32(0); places < maxScale; places++ {
		if d.Shift(places).IsInteger() {
			return places
		}
	}
	return maxScale
}
