// Package signal derives Buy/Hold decisions from a short/long EMA crossover.
package signal

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/trendbot/internal/domain"
	"github.com/vadiminshakov/trendbot/internal/services/market/indicators"
)

// Evaluation is the signal together with the values it was derived from.
type Evaluation struct {
	Signal   domain.Signal
	ShortEMA decimal.Decimal
	LongEMA  decimal.Decimal
	Price    decimal.Decimal
}

// Generator computes EMA crossover signals. The zero value is ready to use.
type Generator struct {
	ShortWindow int
	LongWindow  int
}

// NewGenerator validates windows and returns a generator.
func NewGenerator(shortWindow, longWindow int) (*Generator, error) {
	if shortWindow < 1 || longWindow < 1 {
		return nil, errors.Errorf("EMA windows must be >= 1, got short=%d long=%d", shortWindow, longWindow)
	}
	return &Generator{ShortWindow: shortWindow, LongWindow: longWindow}, nil
}

// Decide returns SignalBuy iff EMA(short) > EMA(long) and currentPrice > EMA(short).
func (g *Generator) Decide(history domain.PriceHistory, currentPrice decimal.Decimal) (domain.Signal, error) {
	eval, err := g.Evaluate(history, currentPrice)
	if err != nil {
		return domain.SignalHold, err
	}
	return eval.Signal, nil
}

// Evaluate is Decide that also reports both EMAs.
// It fails with domain.ErrInsufficientData when history is shorter than the long window.
func (g *Generator) Evaluate(history domain.PriceHistory, currentPrice decimal.Decimal) (Evaluation, error) {
	if g.ShortWindow < 1 || g.LongWindow < 1 {
		return Evaluation{Signal: domain.SignalHold}, errors.Errorf("EMA windows must be >= 1, got short=%d long=%d", g.ShortWindow, g.LongWindow)
	}
	if history.Len() < g.LongWindow {
		return Evaluation{Signal: domain.SignalHold, Price: currentPrice}, errors.Wrapf(domain.ErrInsufficientData,
			"have %d candles, long window needs %d", history.Len(), g.LongWindow)
	}

	closes := history.Closes()

	shortEMA, err := indicators.LastEMA(closes, g.ShortWindow)
	if err != nil {
		return Evaluation{Signal: domain.SignalHold}, errors.Wrap(err, "short EMA")
	}
	longEMA, err := indicators.LastEMA(closes, g.LongWindow)
	if err != nil {
		return Evaluation{Signal: domain.SignalHold}, errors.Wrap(err, "long EMA")
	}

	eval := Evaluation{
		Signal:   domain.SignalHold,
		ShortEMA: shortEMA,
		LongEMA:  longEMA,
		Price:    currentPrice,
	}
	if shortEMA.GreaterThan(longEMA) && currentPrice.GreaterThan(shortEMA) {
		eval.Signal = domain.SignalBuy
	}

	return eval, nil
}
