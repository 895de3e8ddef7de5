package exchange

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"

	"github.com/vadiminshakov/trendbot/internal/domain"
)

const hyperliquidSlippage = 0.005

var hyperliquidIntervals = map[string]time.Duration{
	"1m": time.Minute, "3m": 3 * time.Minute, "5m": 5 * time.Minute, "15m": 15 * time.Minute,
	"30m": 30 * time.Minute, "1h": time.Hour, "2h": 2 * time.Hour, "4h": 4 * time.Hour,
	"8h": 8 * time.Hour, "12h": 12 * time.Hour, "1d": 24 * time.Hour,
}

// HyperliquidExchange opens perp longs on the pair's base coin. Margin is the
// account's withdrawable USDC.
type HyperliquidExchange struct {
	ex          *hyperliquid.Exchange
	info        *hyperliquid.Info
	accountAddr string
	now         func() time.Time
}

func NewHyperliquidExchange(ex *hyperliquid.Exchange, accountAddr string) (*HyperliquidExchange, error) {
	if ex == nil {
		return nil, errors.New("hyperliquid exchange is nil")
	}
	return &HyperliquidExchange{
		ex:          ex,
		info:        ex.Info(),
		accountAddr: accountAddr,
		now:         time.Now,
	}, nil
}

func (e *HyperliquidExchange) GetTicker(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	mids, err := e.info.AllMids(ctx)
	if err != nil {
		return decimal.Zero, classifyHTTP("get mids", err)
	}

	// mids are keyed by base coin, e.g. "BTC"
	mid, ok := mids[pair.From]
	if !ok || mid == "" {
		return decimal.Zero, domain.NewTransportError("get mids",
			errors.Errorf("hyperliquid returned no mid price for %s", pair.From))
	}
	price, err := decimal.NewFromString(mid)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "parse hyperliquid mid")
	}
	return price, nil
}

func (e *HyperliquidExchange) GetHistoricalCandles(ctx context.Context, pair domain.Pair, interval string, limit int) ([]domain.Candle, error) {
	step, ok := hyperliquidIntervals[interval]
	if !ok {
		return nil, errors.Errorf("unsupported hyperliquid interval: %s", interval)
	}
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}

	end := e.now()
	start := end.Add(-step * time.Duration(limit))
	raw, err := e.info.CandlesSnapshot(ctx, strings.ToUpper(pair.From), interval, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, classifyHTTP("get candles", err)
	}

	candles := make([]domain.Candle, 0, len(raw))
	for i, k := range raw {
		c, err := parseCandle(k.TimeOpen, k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "hyperliquid candle at index %d", i)
		}
		candles = append(candles, c)
	}
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

func (e *HyperliquidExchange) GetAccountBalance(ctx context.Context, asset string) (domain.AccountBalance, error) {
	if strings.EqualFold(asset, "USDC") || strings.EqualFold(asset, "USD") {
		st, err := e.info.UserState(ctx, e.accountAddr)
		if err != nil {
			return domain.AccountBalance{}, classifyHTTP("get user state", err)
		}
		free := decimal.Zero
		if st.Withdrawable != "" {
			free, err = decimal.NewFromString(st.Withdrawable)
			if err != nil {
				return domain.AccountBalance{}, errors.Wrap(err, "parse withdrawable")
			}
		}
		return domain.AccountBalance{Asset: asset, Free: free}, nil
	}

	st, err := e.info.SpotUserState(ctx, e.accountAddr)
	if err != nil {
		return domain.AccountBalance{}, classifyHTTP("get spot user state", err)
	}
	for _, b := range st.Balances {
		if strings.EqualFold(b.Coin, asset) {
			free, err := spotFree(b.Total, b.Hold)
			if err != nil {
				return domain.AccountBalance{}, err
			}
			return domain.AccountBalance{Asset: asset, Free: free}, nil
		}
	}
	return domain.AccountBalance{Asset: asset, Free: decimal.Zero}, nil
}

// spotFree is the spot total minus what open orders hold.
func spotFree(total, hold string) (decimal.Decimal, error) {
	t, err := decimal.NewFromString(total)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "parse spot balance")
	}
	if hold == "" {
		return t, nil
	}
	h, err := decimal.NewFromString(hold)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "parse spot hold")
	}
	free := t.Sub(h)
	if free.IsNegative() {
		return decimal.Zero, nil
	}
	return free, nil
}

// GetLotConstraint derives the size step from szDecimals. Hyperliquid prices
// are limited by significant figures rather than a tick, so TickSize stays zero.
func (e *HyperliquidExchange) GetLotConstraint(ctx context.Context, pair domain.Pair) (domain.LotConstraint, error) {
	meta, err := e.info.Meta(ctx)
	if err != nil {
		return domain.LotConstraint{}, classifyHTTP("get meta", err)
	}

	for _, asset := range meta.Universe {
		if asset.Name != pair.From {
			continue
		}
		step := decimal.New(1, -int32(asset.SzDecimals))
		return domain.LotConstraint{StepSize: step}, nil
	}
	return domain.LotConstraint{}, errors.Errorf("hyperliquid does not list %s", pair.From)
}

func (e *HyperliquidExchange) SubmitMarketOrder(ctx context.Context, pair domain.Pair, side domain.Side, quantity string, clientOrderID string) (domain.PlacedOrder, error) {
	qty, _, err := parseOrderInputs(quantity, "")
	if err != nil {
		return domain.PlacedOrder{}, domain.NewRejectedError("submit market order", err)
	}

	isBuy := side == domain.SideBuy
	px, err := e.ex.SlippagePrice(ctx, pair.From, isBuy, hyperliquidSlippage, nil)
	if err != nil {
		return domain.PlacedOrder{}, classifyHTTP("slippage price", err)
	}

	cloid := cloidFromID(clientOrderID)
	status, err := e.ex.Order(ctx, hyperliquid.CreateOrderRequest{
		Coin:          pair.From,
		IsBuy:         isBuy,
		Price:         px,
		Size:          qty.InexactFloat64(),
		ReduceOnly:    !isBuy,
		ClientOrderID: &cloid,
		OrderType: hyperliquid.OrderType{
			Limit: &hyperliquid.LimitOrderType{Tif: hyperliquid.TifIoc},
		},
	}, nil)
	if err != nil {
		return domain.PlacedOrder{}, classifyHTTP("submit market order", err)
	}
	var oid int64
	var totalSz, avgPx string
	if status.Filled != nil {
		oid = int64(status.Filled.Oid)
		totalSz, avgPx = status.Filled.TotalSz, status.Filled.AvgPx
	}
	order, err := placedFromFill(clientOrderID, status.Error, status.Filled != nil, oid, totalSz, avgPx)
	if err != nil {
		return domain.PlacedOrder{}, err
	}
	order.Side = side
	order.Time = e.now()
	return order, nil
}

// placedFromFill decodes the per-order status of an IOC order.
func placedFromFill(clientOrderID string, rejection *string, filled bool, oid int64, totalSz, avgPx string) (domain.PlacedOrder, error) {
	const op = "submit market order"
	if rejection != nil {
		return domain.PlacedOrder{}, domain.NewRejectedError(op, errors.New(*rejection))
	}
	if !filled {
		return domain.PlacedOrder{}, domain.NewRejectedError(op,
			errors.Errorf("hyperliquid IOC order %s did not fill", clientOrderID))
	}

	executed, err := decimal.NewFromString(totalSz)
	if err != nil {
		return domain.PlacedOrder{}, errors.Wrap(err, "parse filled size")
	}
	avg, err := decimal.NewFromString(avgPx)
	if err != nil {
		return domain.PlacedOrder{}, errors.Wrap(err, "parse fill price")
	}
	return domain.PlacedOrder{
		ID:            strconv.FormatInt(oid, 10),
		ClientOrderID: clientOrderID,
		Quantity:      executed,
		Price:         avg,
	}, nil
}

// LookupOrder queries the order by its cloid. Hyperliquid's order query carries
// sizes but no average fill price, so Price stays zero.
func (e *HyperliquidExchange) LookupOrder(ctx context.Context, pair domain.Pair, clientOrderID string) (domain.PlacedOrder, error) {
	res, err := e.info.QueryOrderByCloid(ctx, e.accountAddr, cloidFromID(clientOrderID))
	if err != nil {
		return domain.PlacedOrder{}, classifyHTTP("query order", err)
	}
	if res == nil || res.Status != hyperliquid.OrderQueryStatusSuccess {
		return domain.PlacedOrder{}, notFound("query order", clientOrderID)
	}

	executed, err := executedSize(res.Order.Order.OrigSz, res.Order.Order.Sz)
	if err != nil {
		return domain.PlacedOrder{}, err
	}
	return domain.PlacedOrder{
		ID:            cloidFromID(clientOrderID),
		ClientOrderID: clientOrderID,
		Quantity:      executed,
		Time:          e.now(),
	}, nil
}

// executedSize is the original size minus what is still open or was canceled.
func executedSize(origSz, remainingSz string) (decimal.Decimal, error) {
	orig, err := decimal.NewFromString(origSz)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse original size %q", origSz)
	}
	remaining := decimal.Zero
	if remainingSz != "" {
		remaining, err = decimal.NewFromString(remainingSz)
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "parse remaining size %q", remainingSz)
		}
	}
	executed := orig.Sub(remaining)
	if executed.IsNegative() {
		return decimal.Zero, nil
	}
	return executed, nil
}

// SubmitStopLossOrder places a reduce-only market trigger that closes the long.
func (e *HyperliquidExchange) SubmitStopLossOrder(ctx context.Context, pair domain.Pair, side domain.Side, quantity, stopPrice string, clientOrderID string) (domain.PlacedOrder, error) {
	qty, stop, err := parseOrderInputs(quantity, stopPrice)
	if err != nil {
		return domain.PlacedOrder{}, domain.NewRejectedError("submit stop order", err)
	}

	trigger := stop.InexactFloat64()
	cloid := cloidFromID(clientOrderID)
	status, err := e.ex.Order(ctx, hyperliquid.CreateOrderRequest{
		Coin:       pair.From,
		IsBuy:      side == domain.SideBuy,
		Price:      trigger, // not used for trigger market but required by wire
		Size:       qty.InexactFloat64(),
		ReduceOnly: true,
		OrderType: hyperliquid.OrderType{
			Trigger: &hyperliquid.TriggerOrderType{
				TriggerPx: trigger,
				IsMarket:  true,
				Tpsl:      hyperliquid.StopLoss,
			},
		},
		ClientOrderID: &cloid,
	}, nil)
	if err != nil {
		return domain.PlacedOrder{}, classifyHTTP("submit stop order", err)
	}
	if status.Error != nil {
		return domain.PlacedOrder{}, domain.NewRejectedError("submit stop order", errors.New(*status.Error))
	}

	id := cloid
	if status.Resting != nil {
		id = strconv.FormatInt(int64(status.Resting.Oid), 10)
	}
	return domain.PlacedOrder{
		ID:            id,
		ClientOrderID: clientOrderID,
		Side:          side,
		Quantity:      qty,
		Price:         stop,
		Time:          e.now(),
	}, nil
}

// cloidFromID maps a free-form client ID onto a Hyperliquid cloid (0x + 32 hex chars).
// The mapping is deterministic, so a retried ID maps to the same cloid.
func cloidFromID(id string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(id)))
	return "0x" + hex.EncodeToString(sum[:16])
}
