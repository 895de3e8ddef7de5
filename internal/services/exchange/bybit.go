package exchange

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/trendbot/internal/domain"
)

const (
	bybitMaxKlines = 200
	// spot market buys are quoted in the quote coin, so entries go out as
	// IOC limits this far above the ticker to keep quantities in base units
	bybitSlippage = "0.005"
)

// BybitExchange trades V5 spot on Bybit. The SDK takes no context, so
// cancellation only applies between calls; the client's http timeout bounds
// each request.
type BybitExchange struct {
	client *bybit.Client
}

func NewBybitExchange(client *bybit.Client) (*BybitExchange, error) {
	if client == nil {
		return nil, errors.New("bybit client is nil")
	}
	return &BybitExchange{client: client}, nil
}

func (e *BybitExchange) GetTicker(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, domain.NewTransportError("get ticker", err)
	}

	symbol := bybit.SymbolV5(pair.Symbol())
	result, err := e.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   &symbol,
	})
	if err != nil {
		return decimal.Zero, classifyBybit("get ticker", err)
	}
	if result.Result.Spot == nil || len(result.Result.Spot.List) == 0 {
		return decimal.Zero, domain.NewTransportError("get ticker",
			errors.Errorf("bybit returned empty prices for %s", pair.String()))
	}

	price, err := decimal.NewFromString(result.Result.Spot.List[0].LastPrice)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "parse bybit price")
	}
	return price, nil
}

func (e *BybitExchange) GetHistoricalCandles(ctx context.Context, pair domain.Pair, interval string, limit int) ([]domain.Candle, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}
	if limit > bybitMaxKlines {
		limit = bybitMaxKlines
	}
	bybitInterval, err := convertIntervalToBybit(interval)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid interval: %s", interval)
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.NewTransportError("get klines", err)
	}

	result, err := e.client.V5().Market().GetKline(bybit.V5GetKlineParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   bybit.SymbolV5(pair.Symbol()),
		Interval: bybit.Interval(bybitInterval),
		Limit:    &limit,
	})
	if err != nil {
		return nil, classifyBybit("get klines", err)
	}
	if result == nil {
		return nil, domain.NewTransportError("get klines", errors.Errorf("empty result from bybit for %s", pair.String()))
	}

	candles := make([]domain.Candle, 0, len(result.Result.List))
	for i, k := range result.Result.List {
		openTime, err := parseTimestamp(k.StartTime)
		if err != nil {
			return nil, errors.Wrapf(err, "bybit kline at index %d", i)
		}
		c, err := parseCandle(openTime.UnixMilli(), k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "bybit kline at index %d", i)
		}
		candles = append(candles, c)
	}

	// bybit lists newest first
	sort.Slice(candles, func(i, j int) bool { return candles[i].Timestamp < candles[j].Timestamp })
	return candles, nil
}

func (e *BybitExchange) GetAccountBalance(ctx context.Context, asset string) (domain.AccountBalance, error) {
	if err := ctx.Err(); err != nil {
		return domain.AccountBalance{}, domain.NewTransportError("get wallet balance", err)
	}

	res, err := e.client.V5().Account().GetWalletBalance(bybit.AccountTypeV5("UNIFIED"), nil)
	if err != nil {
		return domain.AccountBalance{}, classifyBybit("get wallet balance", err)
	}

	for _, account := range res.Result.List {
		for _, coin := range account.Coin {
			if string(coin.Coin) != asset {
				continue
			}
			free, err := decimal.NewFromString(coin.WalletBalance)
			if err != nil {
				return domain.AccountBalance{}, errors.Wrap(err, "parse bybit balance")
			}
			return domain.AccountBalance{Asset: asset, Free: free}, nil
		}
	}

	return domain.AccountBalance{Asset: asset, Free: decimal.Zero}, nil
}

func (e *BybitExchange) GetLotConstraint(ctx context.Context, pair domain.Pair) (domain.LotConstraint, error) {
	if err := ctx.Err(); err != nil {
		return domain.LotConstraint{}, domain.NewTransportError("get instruments info", err)
	}

	symbol := bybit.SymbolV5(pair.Symbol())
	res, err := e.client.V5().Market().GetInstrumentsInfo(bybit.V5GetInstrumentsInfoParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   &symbol,
	})
	if err != nil {
		return domain.LotConstraint{}, classifyBybit("get instruments info", err)
	}
	if res.Result.Spot == nil {
		return domain.LotConstraint{}, domain.NewTransportError("get instruments info",
			errors.Errorf("empty instruments result for %s", pair.Symbol()))
	}

	for _, instrument := range res.Result.Spot.List {
		if string(instrument.Symbol) != pair.Symbol() {
			continue
		}
		return domain.NewLotConstraint(instrument.LotSizeFilter.BasePrecision, instrument.PriceFilter.TickSize)
	}

	return domain.LotConstraint{}, errors.Errorf("bybit does not list spot symbol %s", pair.Symbol())
}

func (e *BybitExchange) SubmitMarketOrder(ctx context.Context, pair domain.Pair, side domain.Side, quantity string, clientOrderID string) (domain.PlacedOrder, error) {
	if _, _, err := parseOrderInputs(quantity, ""); err != nil {
		return domain.PlacedOrder{}, domain.NewRejectedError("submit market order", err)
	}

	lot, err := e.GetLotConstraint(ctx, pair)
	if err != nil {
		return domain.PlacedOrder{}, err
	}
	ticker, err := e.GetTicker(ctx, pair)
	if err != nil {
		return domain.PlacedOrder{}, err
	}

	slip := decimal.RequireFromString(bybitSlippage)
	limit := ticker.Mul(decimal.NewFromInt(1).Add(slip))
	if side == domain.SideSell {
		limit = ticker.Mul(decimal.NewFromInt(1).Sub(slip))
	}
	limitPrice := lot.FormatPrice(lot.CeilPrice(limit))
	tif := bybit.TimeInForce("IOC")
	linkID := clientOrderID

	if err := ctx.Err(); err != nil {
		return domain.PlacedOrder{}, domain.NewTransportError("submit market order", err)
	}
	resp, err := e.client.V5().Order().CreateOrder(bybit.V5CreateOrderParam{
		Category:    bybit.CategoryV5Spot,
		Symbol:      bybit.SymbolV5(pair.Symbol()),
		Side:        bybitSide(side),
		OrderType:   bybit.OrderTypeLimit,
		Qty:         quantity,
		Price:       &limitPrice,
		TimeInForce: &tif,
		OrderLinkID: &linkID,
	})
	if err != nil {
		return domain.PlacedOrder{}, classifyBybit("submit market order", err)
	}

	fill, err := e.LookupOrder(ctx, pair, clientOrderID)
	if err != nil {
		// the order is in, only the readback failed
		return domain.PlacedOrder{}, fillUnknown("submit market order", resp.Result.OrderID, err)
	}
	fill.Side = side
	return fill, nil
}

// LookupOrder finds the order in Bybit's order history by its link id.
func (e *BybitExchange) LookupOrder(ctx context.Context, pair domain.Pair, clientOrderID string) (domain.PlacedOrder, error) {
	if err := ctx.Err(); err != nil {
		return domain.PlacedOrder{}, domain.NewTransportError("get order history", err)
	}

	symbol := bybit.SymbolV5(pair.Symbol())
	linkID := clientOrderID
	history, err := e.client.V5().Order().GetHistoryOrders(bybit.V5GetHistoryOrdersParam{
		Category:    bybit.CategoryV5Spot,
		Symbol:      &symbol,
		OrderLinkID: &linkID,
	})
	if err != nil {
		return domain.PlacedOrder{}, classifyBybit("get order history", err)
	}

	for _, o := range history.Result.List {
		if o.OrderLinkID != clientOrderID {
			continue
		}
		executed, err := decimal.NewFromString(zeroIfEmpty(o.CumExecQty))
		if err != nil {
			return domain.PlacedOrder{}, errors.Wrap(err, "parse executed quantity")
		}
		quote, err := decimal.NewFromString(zeroIfEmpty(o.CumExecValue))
		if err != nil {
			return domain.PlacedOrder{}, errors.Wrap(err, "parse executed value")
		}
		return domain.PlacedOrder{
			ID:            o.OrderID,
			ClientOrderID: clientOrderID,
			Side:          domain.Side(strings.ToUpper(string(o.Side))),
			Quantity:      executed,
			Price:         averagePrice(quote, executed),
			Time:          time.Now(),
		}, nil
	}

	return domain.PlacedOrder{}, notFound("get order history", clientOrderID)
}

func (e *BybitExchange) SubmitStopLossOrder(ctx context.Context, pair domain.Pair, side domain.Side, quantity, stopPrice string, clientOrderID string) (domain.PlacedOrder, error) {
	qty, stop, err := parseOrderInputs(quantity, stopPrice)
	if err != nil {
		return domain.PlacedOrder{}, domain.NewRejectedError("submit stop order", err)
	}
	if err := ctx.Err(); err != nil {
		return domain.PlacedOrder{}, domain.NewTransportError("submit stop order", err)
	}

	filter := bybit.OrderFilter("StopOrder")
	trigger := stopPrice
	linkID := clientOrderID
	resp, err := e.client.V5().Order().CreateOrder(bybit.V5CreateOrderParam{
		Category:     bybit.CategoryV5Spot,
		Symbol:       bybit.SymbolV5(pair.Symbol()),
		Side:         bybitSide(side),
		OrderType:    bybit.OrderTypeMarket,
		Qty:          quantity,
		TriggerPrice: &trigger,
		OrderFilter:  &filter,
		OrderLinkID:  &linkID,
	})
	if err != nil {
		return domain.PlacedOrder{}, classifyBybit("submit stop order", err)
	}

	return domain.PlacedOrder{
		ID:            resp.Result.OrderID,
		ClientOrderID: clientOrderID,
		Side:          side,
		Quantity:      qty,
		Price:         stop,
		Time:          time.Now(),
	}, nil
}

func bybitSide(side domain.Side) bybit.Side {
	if side == domain.SideSell {
		return bybit.SideSell
	}
	return bybit.SideBuy
}

// classifyBybit rejects on a non-zero retCode or an auth/path failure. Rate
// limits (retCode 10006, 10018), 5xx and anything below HTTP are transport errors.
func classifyBybit(op string, err error) error {
	var apiErr *bybit.ErrorResponse
	if errors.As(err, &apiErr) || errors.Is(err, bybit.ErrInvalidRequest) || errors.Is(err, bybit.ErrPathNotFound) {
		return domain.NewRejectedError(op, err)
	}
	return domain.NewTransportError(op, err)
}

func zeroIfEmpty(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

// convertIntervalToBybit maps "1m", "15m", "4h", "1d" style intervals onto
// Bybit's minute counts and "D"/"W".
func convertIntervalToBybit(interval string) (string, error) {
	if len(interval) < 2 {
		return "", errors.Errorf("invalid interval format: %s", interval)
	}

	unit := interval[len(interval)-1]
	n, err := strconv.ParseInt(interval[:len(interval)-1], 10, 64)
	if err != nil || n <= 0 {
		return "", errors.Errorf("invalid interval number: %s", interval)
	}

	switch unit {
	case 'm':
		return strconv.FormatInt(n, 10), nil
	case 'h':
		return strconv.FormatInt(n*60, 10), nil
	case 'd':
		return "D", nil
	case 'w':
		return "W", nil
	default:
		return "", errors.Errorf("unsupported interval unit: %c", unit)
	}
}

// parseTimestamp reads Bybit's millisecond timestamps.
func parseTimestamp(ts string) (time.Time, error) {
	if ts == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	msec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "failed to parse timestamp: %s", ts)
	}
	return time.UnixMilli(msec), nil
}
