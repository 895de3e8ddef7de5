package exchange

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/trendbot/internal/domain"
	"github.com/vadiminshakov/trendbot/pkg/retrier"
)

const readRetryInterval = 500 * time.Millisecond

// Guarded bounds every call with a timeout and retries reads on transport errors.
// A call that outlives its timeout is reported as a transport error even when the
// underlying SDK does not honour ctx.
// Order submissions are attempted exactly once.
type Guarded struct {
	next    Client
	timeout time.Duration
	reads   *retrier.Retrier
}

// ReadRetrier builds a retrier that only retries transport errors.
func ReadRetrier(maxRetries int) *retrier.Retrier {
	return retrier.New(
		retrier.WithMaxRetries(maxRetries),
		retrier.WithInitialInterval(readRetryInterval),
		retrier.WithMaxInterval(5*time.Second),
		retrier.WithRetryIf(func(err error) bool {
			return errors.Is(err, domain.ErrTransport)
		}),
	)
}

// Guard wraps next. A nil reads retrier means a single attempt per read.
func Guard(next Client, timeout time.Duration, reads *retrier.Retrier) *Guarded {
	if reads == nil {
		reads = ReadRetrier(0)
	}
	return &Guarded{next: next, timeout: timeout, reads: reads}
}

func (g *Guarded) GetTicker(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	return guardRead(ctx, g, "get ticker", func(ctx context.Context) (decimal.Decimal, error) {
		return g.next.GetTicker(ctx, pair)
	})
}

func (g *Guarded) GetHistoricalCandles(ctx context.Context, pair domain.Pair, interval string, limit int) ([]domain.Candle, error) {
	return guardRead(ctx, g, "get candles", func(ctx context.Context) ([]domain.Candle, error) {
		return g.next.GetHistoricalCandles(ctx, pair, interval, limit)
	})
}

func (g *Guarded) GetAccountBalance(ctx context.Context, asset string) (domain.AccountBalance, error) {
	return guardRead(ctx, g, "get balance", func(ctx context.Context) (domain.AccountBalance, error) {
		return g.next.GetAccountBalance(ctx, asset)
	})
}

func (g *Guarded) GetLotConstraint(ctx context.Context, pair domain.Pair) (domain.LotConstraint, error) {
	return guardRead(ctx, g, "get lot constraint", func(ctx context.Context) (domain.LotConstraint, error) {
		return g.next.GetLotConstraint(ctx, pair)
	})
}

func (g *Guarded) SubmitMarketOrder(ctx context.Context, pair domain.Pair, side domain.Side, quantity string, clientOrderID string) (domain.PlacedOrder, error) {
	return guardOnce(ctx, g, "submit market order", func(ctx context.Context) (domain.PlacedOrder, error) {
		return g.next.SubmitMarketOrder(ctx, pair, side, quantity, clientOrderID)
	})
}

func (g *Guarded) SubmitStopLossOrder(ctx context.Context, pair domain.Pair, side domain.Side, quantity, stopPrice string, clientOrderID string) (domain.PlacedOrder, error) {
	return guardOnce(ctx, g, "submit stop order", func(ctx context.Context) (domain.PlacedOrder, error) {
		return g.next.SubmitStopLossOrder(ctx, pair, side, quantity, stopPrice, clientOrderID)
	})
}

func (g *Guarded) LookupOrder(ctx context.Context, pair domain.Pair, clientOrderID string) (domain.PlacedOrder, error) {
	return guardRead(ctx, g, "lookup order", func(ctx context.Context) (domain.PlacedOrder, error) {
		return g.next.LookupOrder(ctx, pair, clientOrderID)
	})
}

func guardRead[T any](ctx context.Context, g *Guarded, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	return retrier.DoWithData(g.reads, ctx, func(ctx context.Context) (T, error) {
		return guardOnce(ctx, g, op, fn)
	})
}

type callResult[T any] struct {
	v   T
	err error
}

// guardOnce returns when fn does or when the deadline passes, whichever is first.
// SDKs that ignore ctx keep running in the background until their own HTTP timeout.
func guardOnce[T any](ctx context.Context, g *Guarded, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	done := make(chan callResult[T], 1)
	go func() {
		v, err := fn(ctx)
		done <- callResult[T]{v: v, err: err}
	}()

	var res callResult[T]
	select {
	case res = <-done:
	case <-ctx.Done():
		var zero T
		return zero, domain.NewTransportError(op, errors.Wrapf(ctx.Err(), "no answer after %s", g.timeout))
	}
	if res.err == nil {
		return res.v, nil
	}

	var exErr *domain.ExchangeError
	if errors.As(res.err, &exErr) {
		return res.v, res.err
	}
	if ctx.Err() != nil {
		return res.v, domain.NewTransportError(op, errors.Wrapf(res.err, "after %s", g.timeout))
	}
	return res.v, res.err
}
