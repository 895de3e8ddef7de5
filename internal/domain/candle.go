package domain

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Candle is a single OHLCV bar. Timestamp is the open time in ms since epoch.
type Candle struct {
	Timestamp int64
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// OpenTime returns the candle open time.
func (c Candle) OpenTime() time.Time {
	return time.UnixMilli(c.Timestamp)
}

// PriceHistory is an ascending, duplicate-free run of candles for one instrument.
type PriceHistory struct {
	candles []Candle
}

// NewPriceHistory validates ordering and wraps candles.
func NewPriceHistory(candles []Candle) (PriceHistory, error) {
	for i := 1; i < len(candles); i++ {
		if candles[i].Timestamp <= candles[i-1].Timestamp {
			return PriceHistory{}, errors.Wrapf(ErrUnorderedHistory,
				"candle %d at %d does not follow %d", i, candles[i].Timestamp, candles[i-1].Timestamp)
		}
	}
	out := make([]Candle, len(candles))
	copy(out, candles)
	return PriceHistory{candles: out}, nil
}

// Len returns the number of candles.
func (h PriceHistory) Len() int {
	return len(h.candles)
}

// Candles returns a copy of the candles, oldest first.
func (h PriceHistory) Candles() []Candle {
	out := make([]Candle, len(h.candles))
	copy(out, h.candles)
	return out
}

// Closes returns closing prices, oldest first.
func (h PriceHistory) Closes() []decimal.Decimal {
	closes := make([]decimal.Decimal, len(h.candles))
	for i, c := range h.candles {
		closes[i] = c.Close
	}
	return closes
}

// Last returns the most recent candle.
func (h PriceHistory) Last() (Candle, bool) {
	if len(h.candles) == 0 {
		return Candle{}, false
	}
	return h.candles[len(h.candles)-1], true
}
