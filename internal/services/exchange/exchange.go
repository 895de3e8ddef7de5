// Package exchange adapts exchange SDKs to the read and order operations the bot needs.
package exchange

import (
	"context"
	"net"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/trendbot/internal/domain"
)

// Client is the capability the trading core consumes. Quantities and prices
// cross this boundary as exact decimal strings.
type Client interface {
	GetTicker(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
	// GetHistoricalCandles returns up to limit candles, oldest first.
	GetHistoricalCandles(ctx context.Context, pair domain.Pair, interval string, limit int) ([]domain.Candle, error)
	GetAccountBalance(ctx context.Context, asset string) (domain.AccountBalance, error)
	GetLotConstraint(ctx context.Context, pair domain.Pair) (domain.LotConstraint, error)
	SubmitMarketOrder(ctx context.Context, pair domain.Pair, side domain.Side, quantity string, clientOrderID string) (domain.PlacedOrder, error)
	SubmitStopLossOrder(ctx context.Context, pair domain.Pair, side domain.Side, quantity, stopPrice string, clientOrderID string) (domain.PlacedOrder, error)
	// LookupOrder reads an order back by client order id. It returns an error
	// matching domain.ErrOrderNotFound when the exchange has no such order.
	LookupOrder(ctx context.Context, pair domain.Pair, clientOrderID string) (domain.PlacedOrder, error)
}

func notFound(op, clientOrderID string) error {
	return errors.Wrapf(domain.ErrOrderNotFound, "%s: client id %s", op, clientOrderID)
}

// fillUnknown marks an order the exchange acknowledged whose execution could not be read.
func fillUnknown(op, orderID string, err error) error {
	return errors.Wrapf(domain.ErrFillUnknown, "%s: order %s: %v", op, orderID, err)
}

func parseCandle(ts int64, open, high, low, closePrice, volume string) (domain.Candle, error) {
	values := [5]decimal.Decimal{}
	for i, raw := range [5]string{open, high, low, closePrice, volume} {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return domain.Candle{}, errors.Wrapf(err, "parse candle field %q", raw)
		}
		values[i] = d
	}

	return domain.Candle{
		Timestamp: ts,
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
	}, nil
}

// averagePrice is quote spent divided by base executed; zero when nothing executed.
func averagePrice(quote, executed decimal.Decimal) decimal.Decimal {
	if !executed.IsPositive() {
		return decimal.Zero
	}
	return quote.Div(executed)
}

func parseOrderInputs(quantity, stopPrice string) (decimal.Decimal, decimal.Decimal, error) {
	qty, err := decimal.NewFromString(quantity)
	if err != nil {
		return decimal.Zero, decimal.Zero, errors.Wrapf(err, "parse quantity %q", quantity)
	}
	if !qty.IsPositive() {
		return decimal.Zero, decimal.Zero, errors.Errorf("quantity must be positive, got %s", quantity)
	}
	if stopPrice == "" {
		return qty, decimal.Zero, nil
	}
	stop, err := decimal.NewFromString(stopPrice)
	if err != nil {
		return decimal.Zero, decimal.Zero, errors.Wrapf(err, "parse stop price %q", stopPrice)
	}
	if !stop.IsPositive() {
		return decimal.Zero, decimal.Zero, errors.Errorf("stop price must be positive, got %s", stopPrice)
	}
	return qty, stop, nil
}

// classifyHTTP treats network and deadline failures as transport errors and
// any answer the exchange gave as a rejection. Used for SDKs without typed API errors.
func classifyHTTP(op string, err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.NewTransportError(op, err)
	}
	return domain.NewRejectedError(op, err)
}
