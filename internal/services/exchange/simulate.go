package exchange

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/trendbot/internal/domain"
)

// MarketData is the read side of an exchange; real prices for paper trading.
type MarketData interface {
	GetTicker(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
	GetHistoricalCandles(ctx context.Context, pair domain.Pair, interval string, limit int) ([]domain.Candle, error)
	GetLotConstraint(ctx context.Context, pair domain.Pair) (domain.LotConstraint, error)
}

type restingStop struct {
	order domain.PlacedOrder
	pair  domain.Pair
}

// SimulateExchange is a paper wallet on top of live market data. Market orders
// fill at the ticker; stops rest until a later ticker trades at or below them.
type SimulateExchange struct {
	mu     sync.Mutex
	market MarketData
	logger *zap.Logger
	wallet map[string]decimal.Decimal
	locked map[string]decimal.Decimal
	orders map[string]domain.PlacedOrder
	stops  map[string]restingStop
	nextID int64
	now    func() time.Time
}

// NewSimulateExchange creates a paper wallet holding quoteBalance of pair.To.
func NewSimulateExchange(market MarketData, pair domain.Pair, quoteBalance decimal.Decimal, logger *zap.Logger) (*SimulateExchange, error) {
	if market == nil {
		return nil, errors.New("market data source is required for SimulateExchange")
	}
	if quoteBalance.IsNegative() {
		return nil, errors.Errorf("simulated quote balance must not be negative, got %s", quoteBalance)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &SimulateExchange{
		market: market,
		logger: logger,
		wallet: map[string]decimal.Decimal{pair.From: decimal.Zero, pair.To: quoteBalance},
		locked: make(map[string]decimal.Decimal),
		orders: make(map[string]domain.PlacedOrder),
		stops:  make(map[string]restingStop),
		now:    time.Now,
	}
	logger.Info("simulate init",
		zap.String("pair", pair.String()),
		zap.String("base", s.wallet[pair.From].String()),
		zap.String("quote", s.wallet[pair.To].String()))
	return s, nil
}

// GetTicker returns the live price and triggers any resting stop it crosses.
func (s *SimulateExchange) GetTicker(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	price, err := s.market.GetTicker(ctx, pair)
	if err != nil {
		return decimal.Zero, err
	}

	s.mu.Lock()
	s.triggerStops(pair, price)
	s.mu.Unlock()
	return price, nil
}

func (s *SimulateExchange) GetHistoricalCandles(ctx context.Context, pair domain.Pair, interval string, limit int) ([]domain.Candle, error) {
	return s.market.GetHistoricalCandles(ctx, pair, interval, limit)
}

func (s *SimulateExchange) GetLotConstraint(ctx context.Context, pair domain.Pair) (domain.LotConstraint, error) {
	return s.market.GetLotConstraint(ctx, pair)
}

func (s *SimulateExchange) GetAccountBalance(_ context.Context, asset string) (domain.AccountBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.AccountBalance{Asset: asset, Free: s.wallet[asset]}, nil
}

func (s *SimulateExchange) SubmitMarketOrder(ctx context.Context, pair domain.Pair, side domain.Side, quantity string, clientOrderID string) (domain.PlacedOrder, error) {
	qty, _, err := parseOrderInputs(quantity, "")
	if err != nil {
		return domain.PlacedOrder{}, domain.NewRejectedError("submit market order", err)
	}

	s.mu.Lock()
	if existing, ok := s.orders[clientOrderID]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	s.mu.Unlock()

	price, err := s.market.GetTicker(ctx, pair)
	if err != nil {
		return domain.PlacedOrder{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cost := qty.Mul(price)
	switch side {
	case domain.SideBuy:
		if s.wallet[pair.To].LessThan(cost) {
			return domain.PlacedOrder{}, domain.NewRejectedError("submit market order",
				errors.Errorf("insufficient %s: have %s, need %s", pair.To, s.wallet[pair.To], cost))
		}
		s.wallet[pair.To] = s.wallet[pair.To].Sub(cost)
		s.wallet[pair.From] = s.wallet[pair.From].Add(qty)
	case domain.SideSell:
		if s.wallet[pair.From].LessThan(qty) {
			return domain.PlacedOrder{}, domain.NewRejectedError("submit market order",
				errors.Errorf("insufficient %s: have %s, need %s", pair.From, s.wallet[pair.From], qty))
		}
		s.wallet[pair.From] = s.wallet[pair.From].Sub(qty)
		s.wallet[pair.To] = s.wallet[pair.To].Add(cost)
	default:
		return domain.PlacedOrder{}, domain.NewRejectedError("submit market order", errors.Errorf("unknown side %q", side))
	}

	order := domain.PlacedOrder{
		ID:            s.newID(),
		ClientOrderID: clientOrderID,
		Side:          side,
		Quantity:      qty,
		Price:         price,
		Time:          s.now(),
	}
	s.orders[clientOrderID] = order
	s.logger.Info("simulated market order filled",
		zap.String("pair", pair.String()),
		zap.String("side", string(side)),
		zap.String("quantity", qty.String()),
		zap.String("price", price.String()))
	return order, nil
}

// SubmitStopLossOrder reserves the base quantity until the stop triggers.
func (s *SimulateExchange) SubmitStopLossOrder(_ context.Context, pair domain.Pair, side domain.Side, quantity, stopPrice string, clientOrderID string) (domain.PlacedOrder, error) {
	qty, stop, err := parseOrderInputs(quantity, stopPrice)
	if err != nil {
		return domain.PlacedOrder{}, domain.NewRejectedError("submit stop order", err)
	}
	if side != domain.SideSell {
		return domain.PlacedOrder{}, domain.NewRejectedError("submit stop order", errors.New("simulated stops only sell"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.orders[clientOrderID]; ok {
		return existing, nil
	}
	if s.wallet[pair.From].LessThan(qty) {
		return domain.PlacedOrder{}, domain.NewRejectedError("submit stop order",
			errors.Errorf("insufficient %s: have %s, need %s", pair.From, s.wallet[pair.From], qty))
	}

	s.wallet[pair.From] = s.wallet[pair.From].Sub(qty)
	s.locked[pair.From] = s.locked[pair.From].Add(qty)

	order := domain.PlacedOrder{
		ID:            s.newID(),
		ClientOrderID: clientOrderID,
		Side:          side,
		Quantity:      qty,
		Price:         stop,
		Time:          s.now(),
	}
	s.orders[clientOrderID] = order
	s.stops[clientOrderID] = restingStop{order: order, pair: pair}
	return order, nil
}

// LookupOrder returns a previously simulated order by client id.
func (s *SimulateExchange) LookupOrder(_ context.Context, _ domain.Pair, clientOrderID string) (domain.PlacedOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[clientOrderID]
	if !ok {
		return domain.PlacedOrder{}, notFound("lookup simulated order", clientOrderID)
	}
	return order, nil
}

// OpenStops returns the stops still resting.
func (s *SimulateExchange) OpenStops() []domain.PlacedOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.PlacedOrder, 0, len(s.stops))
	for _, st := range s.stops {
		out = append(out, st.order)
	}
	return out
}

// triggerStops must be called with s.mu held.
func (s *SimulateExchange) triggerStops(pair domain.Pair, price decimal.Decimal) {
	for id, st := range s.stops {
		if st.pair != pair || price.GreaterThan(st.order.Price) {
			continue
		}
		qty := st.order.Quantity
		s.locked[pair.From] = s.locked[pair.From].Sub(qty)
		s.wallet[pair.To] = s.wallet[pair.To].Add(qty.Mul(price))
		delete(s.stops, id)

		s.logger.Info("simulated stop triggered",
			zap.String("pair", pair.String()),
			zap.String("stop_price", st.order.Price.String()),
			zap.String("price", price.String()),
			zap.String("quantity", qty.String()))
	}
}

func (s *SimulateExchange) newID() string {
	s.nextID++
	return "sim-" + strconv.FormatInt(s.nextID, 10)
}
