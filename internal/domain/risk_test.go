package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLotConstraint_QuantityDecimals(t *testing.T) {
	tests := []struct {
		step     string
		expected int32
	}{
		{"1", 0},
		{"0.1", 1},
		{"0.001", 3},
		{"0.00100000", 3},
		{"0.0001", 4},
		{"0.00000001", 8},
		{"10", 0},
	}

	for _, tt := range tests {
		t.Run(tt.step, func(t *testing.T) {
			lot, err := NewLotConstraint(tt.step, "")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, lot.QuantityDecimals())
		})
	}
}

func TestLotConstraint_FloorQuantity(t *testing.T) {
	lot, err := NewLotConstraint("0.001", "")
	require.NoError(t, err)

	assert.Equal(t, "0.123", lot.FormatQuantity(lot.FloorQuantity(decimal.RequireFromString("0.12399"))))
	assert.Equal(t, "0.000", lot.FormatQuantity(lot.FloorQuantity(decimal.RequireFromString("0.0009"))))
	assert.Equal(t, "5.000", lot.FormatQuantity(lot.FloorQuantity(decimal.NewFromInt(5))))
	assert.True(t, lot.FloorQuantity(decimal.NewFromInt(-1)).IsZero())
}

func TestLotConstraint_Price(t *testing.T) {
	lot, err := NewLotConstraint("0.0001", "0.01000000")
	require.NoError(t, err)

	assert.Equal(t, "47500.00", lot.FormatPrice(lot.CeilPrice(decimal.NewFromInt(47500))))
	assert.Equal(t, "47500.13", lot.FormatPrice(lot.CeilPrice(decimal.RequireFromString("47500.1234"))))

	noTick, err := NewLotConstraint("0.0001", "")
	require.NoError(t, err)
	assert.Equal(t, "47500.1234", noTick.FormatPrice(noTick.CeilPrice(decimal.RequireFromString("47500.1234"))))
}

func TestNewLotConstraint_Invalid(t *testing.T) {
	_, err := NewLotConstraint("0", "")
	assert.Error(t, err)

	_, err = NewLotConstraint("abc", "")
	assert.Error(t, err)

	_, err = NewLotConstraint("0.1", "-1")
	assert.Error(t, err)
}

func TestRiskParameters_Validate(t *testing.T) {
	valid := RiskParameters{
		RiskFraction:     decimal.RequireFromString("0.02"),
		StopLossFraction: decimal.RequireFromString("0.05"),
		MinOrderNotional: decimal.NewFromInt(10),
	}
	require.NoError(t, valid.Validate())

	full := valid
	full.RiskFraction = decimal.NewFromInt(1)
	assert.NoError(t, full.Validate())

	zeroRisk := valid
	zeroRisk.RiskFraction = decimal.Zero
	assert.Error(t, zeroRisk.Validate())

	wholeStop := valid
	wholeStop.StopLossFraction = decimal.NewFromInt(1)
	assert.Error(t, wholeStop.Validate())

	negativeFloor := valid
	negativeFloor.MinOrderNotional = decimal.NewFromInt(-1)
	assert.Error(t, negativeFloor.Validate())
}
