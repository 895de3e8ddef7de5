package sizer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/trendbot/internal/domain"
)

func riskParams(risk, stop, floor string) domain.RiskParameters {
	return domain.RiskParameters{
		RiskFraction:     decimal.RequireFromString(risk),
		StopLossFraction: decimal.RequireFromString(stop),
		MinOrderNotional: decimal.RequireFromString(floor),
	}
}

func lot(t *testing.T, step string) domain.LotConstraint {
	t.Helper()
	l, err := domain.NewLotConstraint(step, "0.01")
	require.NoError(t, err)
	return l
}

func usdt(amount string) domain.AccountBalance {
	return domain.AccountBalance{Asset: "USDT", Free: decimal.RequireFromString(amount)}
}

func TestSize_EndToEndExample(t *testing.T) {
	outcome, err := Size(usdt("1000"), decimal.NewFromInt(50000), riskParams("0.02", "0.05", "10"), lot(t, "0.0001"))
	require.NoError(t, err)
	require.True(t, outcome.Accepted())

	assert.True(t, outcome.TargetNotional.Equal(decimal.NewFromInt(20)))
	assert.True(t, outcome.RawQuantity.Equal(decimal.RequireFromString("0.0004")))
	assert.True(t, outcome.Intent.Quantity.Equal(decimal.RequireFromString("0.0004")))
	assert.Equal(t, domain.SideBuy, outcome.Intent.Side)
	assert.Equal(t, "0.0004", outcome.Intent.Lot.FormatQuantity(outcome.Intent.Quantity))
	assert.True(t, outcome.Intent.Notional().Equal(decimal.NewFromInt(20)))
}

func TestSize_RoundsDown(t *testing.T) {
	// 20 / 30000 = 0.000666.. -> 0.0006 with step 0.0001
	outcome, err := Size(usdt("1000"), decimal.NewFromInt(30000), riskParams("0.02", "0.05", "10"), lot(t, "0.0001"))
	require.NoError(t, err)
	require.True(t, outcome.Accepted())
	assert.Equal(t, "0.0006", outcome.Intent.Lot.FormatQuantity(outcome.Intent.Quantity))
}

func TestSize_NeverExceedsBudget(t *testing.T) {
	balances := []string{"10", "55.5", "999.99", "1000", "12345.678", "250000"}
	prices := []string{"0.0731", "1", "3.3333", "1999.99", "27000.01", "50000", "68123.45"}
	steps := []string{"1", "0.1", "0.01", "0.001", "0.0001", "0.00001", "0.00000001"}
	risk := riskParams("0.37", "0.05", "0")

	for _, b := range balances {
		for _, p := range prices {
			for _, s := range steps {
				price := decimal.RequireFromString(p)
				outcome, err := Size(usdt(b), price, risk, lot(t, s))
				require.NoError(t, err)

				budget := decimal.RequireFromString(b).Mul(risk.RiskFraction)
				if !outcome.Accepted() {
					assert.Equal(t, RejectQuantityRoundsToZero, outcome.Rejected, "b=%s p=%s s=%s", b, p, s)
					continue
				}
				notional := outcome.Intent.Quantity.Mul(price)
				assert.True(t, notional.LessThanOrEqual(budget),
					"b=%s p=%s s=%s: notional %s > budget %s", b, p, s, notional, budget)

				// quantity is a whole number of steps
				_, rem := outcome.Intent.Quantity.QuoRem(decimal.RequireFromString(s), 0)
				assert.True(t, rem.IsZero(), "b=%s p=%s s=%s: %s not on step grid", b, p, s, outcome.Intent.Quantity)

				// one more step would break the budget
				next := outcome.Intent.Quantity.Add(decimal.RequireFromString(s)).Mul(price)
				assert.True(t, next.GreaterThan(budget), "b=%s p=%s s=%s: quantity not maximal", b, p, s)
			}
		}
	}
}

func TestSize_BelowMinimumNotional(t *testing.T) {
	// 400 * 0.02 = 8 < 10
	outcome, err := Size(usdt("400"), decimal.NewFromInt(50000), riskParams("0.02", "0.05", "10"), lot(t, "0.0001"))
	require.NoError(t, err)
	assert.False(t, outcome.Accepted())
	assert.Equal(t, RejectBelowMinimumNotional, outcome.Rejected)
	assert.True(t, outcome.Intent.Quantity.IsZero())
}

func TestSize_ZeroBalance(t *testing.T) {
	outcome, err := Size(usdt("0"), decimal.NewFromInt(50000), riskParams("0.02", "0.05", "10"), lot(t, "0.0001"))
	require.NoError(t, err)
	assert.Equal(t, RejectBelowMinimumNotional, outcome.Rejected)
}

func TestSize_QuantityRoundsToZero(t *testing.T) {
	// 20 USDT buys 0.0004 BTC, lot step is 0.001
	outcome, err := Size(usdt("1000"), decimal.NewFromInt(50000), riskParams("0.02", "0.05", "10"), lot(t, "0.001"))
	require.NoError(t, err)
	assert.Equal(t, RejectQuantityRoundsToZero, outcome.Rejected)
	assert.True(t, outcome.RawQuantity.Equal(decimal.RequireFromString("0.0004")))
}

func TestSize_InvalidInputs(t *testing.T) {
	_, err := Size(usdt("1000"), decimal.Zero, riskParams("0.02", "0.05", "10"), lot(t, "0.0001"))
	assert.Error(t, err)

	_, err = Size(usdt("1000"), decimal.NewFromInt(50000), riskParams("0.02", "0.05", "10"), domain.LotConstraint{})
	assert.Error(t, err)

	_, err = Size(usdt("1000"), decimal.NewFromInt(50000), riskParams("1.5", "0.05", "10"), lot(t, "0.0001"))
	assert.Error(t, err)
}
