package exchange

import (
	"context"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/trendbot/internal/domain"
)

// binance error codes that mean "slow down" rather than "bad request"
const (
	binanceTooManyRequests = -1003
	binanceTooManyOrders   = -1015
	binanceNoSuchOrder     = -2013
)

// BinanceExchange trades spot on Binance.
type BinanceExchange struct {
	client *binance.Client
}

func NewBinanceExchange(client *binance.Client) (*BinanceExchange, error) {
	if client == nil {
		return nil, errors.New("binance client is nil")
	}
	return &BinanceExchange{client: client}, nil
}

func (e *BinanceExchange) GetTicker(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	prices, err := e.client.NewListPricesService().Symbol(pair.Symbol()).Do(ctx)
	if err != nil {
		return decimal.Zero, classifyBinance("get ticker", err)
	}
	if len(prices) == 0 {
		return decimal.Zero, domain.NewTransportError("get ticker",
			errors.Errorf("binance returned empty prices for %s", pair.String()))
	}

	price, err := decimal.NewFromString(prices[0].Price)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "parse binance price")
	}
	return price, nil
}

func (e *BinanceExchange) GetHistoricalCandles(ctx context.Context, pair domain.Pair, interval string, limit int) ([]domain.Candle, error) {
	klines, err := e.client.NewKlinesService().
		Symbol(pair.Symbol()).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, classifyBinance("get klines", err)
	}

	candles := make([]domain.Candle, 0, len(klines))
	for i, k := range klines {
		c, err := parseCandle(k.OpenTime, k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "binance kline at index %d", i)
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func (e *BinanceExchange) GetAccountBalance(ctx context.Context, asset string) (domain.AccountBalance, error) {
	account, err := e.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return domain.AccountBalance{}, classifyBinance("get account", err)
	}

	for _, balance := range account.Balances {
		if balance.Asset == asset {
			free, err := decimal.NewFromString(balance.Free)
			if err != nil {
				return domain.AccountBalance{}, errors.Wrap(err, "parse binance balance")
			}
			return domain.AccountBalance{Asset: asset, Free: free}, nil
		}
	}

	return domain.AccountBalance{Asset: asset, Free: decimal.Zero}, nil
}

func (e *BinanceExchange) GetLotConstraint(ctx context.Context, pair domain.Pair) (domain.LotConstraint, error) {
	info, err := e.client.NewExchangeInfoService().Symbol(pair.Symbol()).Do(ctx)
	if err != nil {
		return domain.LotConstraint{}, classifyBinance("get exchange info", err)
	}

	for _, symbol := range info.Symbols {
		if symbol.Symbol != pair.Symbol() {
			continue
		}
		lot := symbol.LotSizeFilter()
		if lot == nil {
			return domain.LotConstraint{}, errors.Errorf("binance has no LOT_SIZE filter for %s", pair.Symbol())
		}
		tick := ""
		if pf := symbol.PriceFilter(); pf != nil {
			tick = pf.TickSize
		}
		return domain.NewLotConstraint(lot.StepSize, tick)
	}

	return domain.LotConstraint{}, errors.Errorf("binance does not list symbol %s", pair.Symbol())
}

func (e *BinanceExchange) SubmitMarketOrder(ctx context.Context, pair domain.Pair, side domain.Side, quantity string, clientOrderID string) (domain.PlacedOrder, error) {
	if _, _, err := parseOrderInputs(quantity, ""); err != nil {
		return domain.PlacedOrder{}, domain.NewRejectedError("submit market order", err)
	}

	resp, err := e.client.NewCreateOrderService().
		Symbol(pair.Symbol()).
		Side(binanceSide(side)).
		Type(binance.OrderTypeMarket).
		Quantity(quantity).
		NewClientOrderID(clientOrderID).
		NewOrderRespType(binance.NewOrderRespTypeFULL).
		Do(ctx)
	if err != nil {
		return domain.PlacedOrder{}, classifyBinance("submit market order", err)
	}

	executed, err := decimal.NewFromString(resp.ExecutedQuantity)
	if err != nil {
		return domain.PlacedOrder{}, errors.Wrap(err, "parse executed quantity")
	}
	quote, err := decimal.NewFromString(resp.CummulativeQuoteQuantity)
	if err != nil {
		return domain.PlacedOrder{}, errors.Wrap(err, "parse cumulative quote quantity")
	}

	return domain.PlacedOrder{
		ID:            strconv.FormatInt(resp.OrderID, 10),
		ClientOrderID: resp.ClientOrderID,
		Side:          side,
		Quantity:      executed,
		Price:         averagePrice(quote, executed),
		Time:          time.UnixMilli(resp.TransactTime),
	}, nil
}

func (e *BinanceExchange) SubmitStopLossOrder(ctx context.Context, pair domain.Pair, side domain.Side, quantity, stopPrice string, clientOrderID string) (domain.PlacedOrder, error) {
	qty, stop, err := parseOrderInputs(quantity, stopPrice)
	if err != nil {
		return domain.PlacedOrder{}, domain.NewRejectedError("submit stop order", err)
	}

	resp, err := e.client.NewCreateOrderService().
		Symbol(pair.Symbol()).
		Side(binanceSide(side)).
		Type(binance.OrderTypeStopLoss).
		Quantity(quantity).
		StopPrice(stopPrice).
		NewClientOrderID(clientOrderID).
		Do(ctx)
	if err != nil {
		return domain.PlacedOrder{}, classifyBinance("submit stop order", err)
	}

	return domain.PlacedOrder{
		ID:            strconv.FormatInt(resp.OrderID, 10),
		ClientOrderID: resp.ClientOrderID,
		Side:          side,
		Quantity:      qty,
		Price:         stop,
		Time:          time.UnixMilli(resp.TransactTime),
	}, nil
}

// LookupOrder queries the order by origClientOrderId.
func (e *BinanceExchange) LookupOrder(ctx context.Context, pair domain.Pair, clientOrderID string) (domain.PlacedOrder, error) {
	order, err := e.client.NewGetOrderService().
		Symbol(pair.Symbol()).
		OrigClientOrderID(clientOrderID).
		Do(ctx)
	if err != nil {
		var apiErr *common.APIError
		if errors.As(err, &apiErr) && apiErr.Code == binanceNoSuchOrder {
			return domain.PlacedOrder{}, notFound("get order", clientOrderID)
		}
		return domain.PlacedOrder{}, classifyBinance("get order", err)
	}

	executed, err := decimal.NewFromString(order.ExecutedQuantity)
	if err != nil {
		return domain.PlacedOrder{}, errors.Wrap(err, "parse executed quantity")
	}
	quote, err := decimal.NewFromString(order.CummulativeQuoteQuantity)
	if err != nil {
		return domain.PlacedOrder{}, errors.Wrap(err, "parse cumulative quote quantity")
	}

	return domain.PlacedOrder{
		ID:            strconv.FormatInt(order.OrderID, 10),
		ClientOrderID: order.ClientOrderID,
		Side:          domain.Side(order.Side),
		Quantity:      executed,
		Price:         averagePrice(quote, executed),
		Time:          time.UnixMilli(order.UpdateTime),
	}, nil
}

func binanceSide(side domain.Side) binance.SideType {
	if side == domain.SideSell {
		return binance.SideTypeSell
	}
	return binance.SideTypeBuy
}

// classifyBinance marks API validation failures as rejections; rate limits and
// everything below the API (dial, TLS, timeouts) stay transport errors.
func classifyBinance(op string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == binanceTooManyRequests || apiErr.Code == binanceTooManyOrders {
			return domain.NewTransportError(op, err)
		}
		return domain.NewRejectedError(op, err)
	}
	return domain.NewTransportError(op, err)
}
