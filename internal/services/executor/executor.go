// Package executor places an entry order and then its protective stop-loss.
package executor

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/trendbot/internal/domain"
	"github.com/vadiminshakov/trendbot/internal/services/alert"
	"github.com/vadiminshakov/trendbot/internal/services/exchange"
	"github.com/vadiminshakov/trendbot/internal/storage/ledger"
)

// ErrStopQuantityZero means the executed quantity floors to zero steps, so no stop can be placed.
var ErrStopQuantityZero = errors.New("executed quantity rounds to zero for stop order")

const (
	defaultReconcileAttempts = 3
	defaultReconcileDelay    = time.Second
)

// StepStatus is the outcome of one order step.
type StepStatus int

const (
	StepNotAttempted StepStatus = iota
	StepSucceeded
	StepFailed
	// StepUnknown means the entry may have executed; the ledger parks it as entry_unknown.
	StepUnknown
)

func (s StepStatus) String() string {
	switch s {
	case StepSucceeded:
		return "succeeded"
	case StepFailed:
		return "failed"
	case StepUnknown:
		return "unknown"
	default:
		return "not_attempted"
	}
}

// StepResult is the outcome of the entry or the stop step.
type StepResult struct {
	Status StepStatus
	Order  domain.PlacedOrder
	Err    error
}

// ExecutionResult reports both steps. Entry succeeded with Stop failed is an
// open position without a stop-loss.
type ExecutionResult struct {
	EntryID   string
	Pair      domain.Pair
	Entry     StepResult
	Stop      StepResult
	StopPrice decimal.Decimal
}

// Unprotected reports a filled entry whose stop failed.
func (r ExecutionResult) Unprotected() bool {
	return r.Entry.Status == StepSucceeded && r.Stop.Status == StepFailed
}

// Err returns the entry error, an *domain.UnprotectedPositionError, or nil.
func (r ExecutionResult) Err() error {
	if r.Entry.Status == StepFailed || r.Entry.Status == StepUnknown {
		return r.Entry.Err
	}
	if r.Unprotected() {
		return r.unprotectedError()
	}
	return nil
}

func (r ExecutionResult) unprotectedError() *domain.UnprotectedPositionError {
	return &domain.UnprotectedPositionError{
		EntryID:   r.EntryID,
		Pair:      r.Pair,
		Entry:     r.Entry.Order,
		StopPrice: r.StopPrice,
		Err:       r.Stop.Err,
	}
}

// Executor submits orders for a single pair and records them in the ledger.
type Executor struct {
	client   exchange.Client
	pair     domain.Pair
	ledger   *ledger.Ledger
	notifier alert.Notifier
	logger   *zap.Logger
	now      func() time.Time

	reconcileAttempts int
	reconcileDelay    time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

// WithReconcile sets how many times an entry of uncertain outcome is looked up
// by client id, and the pause between lookups.
func WithReconcile(attempts int, delay time.Duration) Option {
	return func(e *Executor) {
		e.reconcileAttempts = attempts
		e.reconcileDelay = delay
	}
}

func NewExecutor(client exchange.Client, pair domain.Pair, l *ledger.Ledger, notifier alert.Notifier, logger *zap.Logger, opts ...Option) (*Executor, error) {
	if client == nil {
		return nil, errors.New("exchange client is required")
	}
	if l == nil {
		return nil, errors.New("ledger is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = alert.NewLogNotifier(logger)
	}
	e := &Executor{
		client:            client,
		pair:              pair,
		ledger:            l,
		notifier:          notifier,
		logger:            logger,
		now:               time.Now,
		reconcileAttempts: defaultReconcileAttempts,
		reconcileDelay:    defaultReconcileDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Execute buys intent.Quantity at market and, only once the fill is confirmed,
// submits one stop-loss sell for the executed quantity at
// executedPrice * (1 - stopLossFraction), rounded up to the tick.
func (e *Executor) Execute(ctx context.Context, intent domain.OrderIntent, stopLossFraction decimal.Decimal) ExecutionResult {
	result := ExecutionResult{Pair: e.pair}

	if !stopLossFraction.IsPositive() || stopLossFraction.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		result.Entry = StepResult{Status: StepFailed, Err: errors.Errorf("stop loss fraction must be in (0, 1), got %s", stopLossFraction)}
		return result
	}
	if !intent.Quantity.IsPositive() {
		result.Entry = StepResult{Status: StepFailed, Err: errors.Errorf("entry quantity must be positive, got %s", intent.Quantity)}
		return result
	}

	entry, err := e.ledger.Open(e.pair, intent)
	if err != nil {
		result.Entry = StepResult{Status: StepFailed, Err: errors.Wrap(err, "open ledger entry")}
		return result
	}
	result.EntryID = entry.ID
	logger := e.logger.With(zap.String("pair", e.pair.String()), zap.String("entry_id", entry.ID))

	quantity := intent.Lot.FormatQuantity(intent.Quantity)
	fill, err := e.client.SubmitMarketOrder(ctx, e.pair, domain.SideBuy, quantity, entry.EntryClientID)
	if err != nil && !domain.IsRejected(err) {
		// the order may have reached the exchange; shutdown must not skip the lookup
		fill, err = e.reconcileEntry(context.WithoutCancel(ctx), logger, entry.EntryClientID, err)
	}
	if err == nil && !fill.Quantity.IsPositive() {
		err = errors.Wrapf(domain.ErrNoFill, "order %s", fill.ID)
	}
	if err != nil {
		if errors.Is(err, domain.ErrEntryUnknown) {
			e.markEntryUnknown(context.WithoutCancel(ctx), logger, entry.ID, quantity, err)
			result.Entry = StepResult{Status: StepUnknown, Err: errors.Wrap(err, "submit entry order")}
			return result
		}
		e.markEntryFailed(ctx, logger, entry.ID, quantity, err)
		result.Entry = StepResult{Status: StepFailed, Err: errors.Wrap(err, "submit entry order")}
		return result
	}

	return e.protect(ctx, logger, result, entry, fill, intent.ReferencePrice, stopLossFraction, intent.Lot)
}

// ResolveUnknown looks every entry of unknown outcome up once more. A found fill
// gets its stop, a zero fill or an order the exchange never acknowledged marks
// the entry failed, anything else leaves it parked.
func (e *Executor) ResolveUnknown(ctx context.Context, stopLossFraction decimal.Decimal) []ExecutionResult {
	var out []ExecutionResult
	for _, entry := range e.ledger.EntriesIn(ledger.StatusEntryUnknown) {
		if entry.Pair != e.pair.String() {
			continue
		}
		logger := e.logger.With(zap.String("pair", e.pair.String()), zap.String("entry_id", entry.ID))
		result := ExecutionResult{EntryID: entry.ID, Pair: e.pair}

		fill, err := e.client.LookupOrder(ctx, e.pair, entry.EntryClientID)
		if err == nil && !fill.Quantity.IsPositive() {
			err = errors.Wrapf(domain.ErrNoFill, "order %s", fill.ID)
		}
		definite := errors.Is(err, domain.ErrNoFill) ||
			(errors.Is(err, domain.ErrOrderNotFound) && !entry.Acknowledged)
		switch {
		case err == nil:
		case definite:
			if _, lerr := e.ledger.EntryFailed(entry.ID, err); lerr != nil {
				logger.Error("failed to record entry failure", zap.Error(lerr))
			}
			logger.Info("unknown entry resolved as not executed", zap.Error(err))
			result.Entry = StepResult{Status: StepFailed, Err: err}
			out = append(out, result)
			continue
		default:
			logger.Warn("entry outcome still unknown", zap.Error(err))
			continue
		}

		lot, err := e.client.GetLotConstraint(ctx, e.pair)
		if err != nil {
			logger.Warn("entry found filled, stop deferred to next cycle", zap.Error(err))
			continue
		}
		out = append(out, e.protect(ctx, logger, result, entry, fill, entry.ReferencePrice, stopLossFraction, lot))
	}
	return out
}

// protect records a confirmed fill and places its one stop.
func (e *Executor) protect(ctx context.Context, logger *zap.Logger, result ExecutionResult, entry ledger.Entry, fill domain.PlacedOrder, reference, stopLossFraction decimal.Decimal, lot domain.LotConstraint) ExecutionResult {
	result.Entry = StepResult{Status: StepSucceeded, Order: fill}

	price := fill.Price
	if !price.IsPositive() {
		logger.Warn("exchange reported no fill price, using reference price for stop",
			zap.String("price", reference.String()))
		price = reference
	}
	result.StopPrice = StopPrice(price, stopLossFraction, lot)
	stopQty := lot.FloorQuantity(fill.Quantity)

	logger.Info("entry filled",
		zap.String("quantity", fill.Quantity.String()),
		zap.String("price", price.String()),
		zap.String("stop_price", result.StopPrice.String()))

	if _, err := e.ledger.EntryFilled(entry.ID, fill, result.StopPrice); err != nil {
		logger.Error("failed to record entry fill", zap.Error(err))
	}

	// shutdown must not abandon the stop of a filled entry; timeouts still apply
	stopCtx := context.WithoutCancel(ctx)
	result.Stop = e.placeStop(stopCtx, logger, entry.ID, entry.StopClientID, stopQty, result.StopPrice, lot)
	if result.Stop.Status == StepFailed {
		e.escalate(stopCtx, logger, result)
	}
	return result
}

// reconcileEntry asks the exchange for the entry by client id after a submit
// that did not end in a rejection. An order the exchange acknowledged is never
// treated as failed on a missing lookup.
func (e *Executor) reconcileEntry(ctx context.Context, logger *zap.Logger, clientID string, submitErr error) (domain.PlacedOrder, error) {
	acknowledged := errors.Is(submitErr, domain.ErrFillUnknown)
	lastErr := submitErr
	for attempt := 1; attempt <= e.reconcileAttempts; attempt++ {
		if attempt > 1 && e.reconcileDelay > 0 {
			time.Sleep(e.reconcileDelay)
		}
		order, err := e.client.LookupOrder(ctx, e.pair, clientID)
		if err == nil {
			logger.Info("entry reconciled by client id",
				zap.Int("attempt", attempt),
				zap.String("executed", order.Quantity.String()))
			return order, nil
		}
		lastErr = err
		logger.Warn("entry lookup failed", zap.Int("attempt", attempt), zap.Error(err))
	}

	if !acknowledged && errors.Is(lastErr, domain.ErrOrderNotFound) {
		return domain.PlacedOrder{}, submitErr
	}
	return domain.PlacedOrder{}, &unknownEntryError{
		acknowledged: acknowledged,
		err:          errors.Wrapf(domain.ErrEntryUnknown, "client id %s: submit: %v; lookup: %v", clientID, submitErr, lastErr),
	}
}

type unknownEntryError struct {
	acknowledged bool
	err          error
}

func (u *unknownEntryError) Error() string { return u.err.Error() }
func (u *unknownEntryError) Unwrap() error { return u.err }

// Reprotect submits the stop for an unprotected entry once more, reusing the entry's
// stop client id so the exchange can deduplicate. It never touches protected entries.
func (e *Executor) Reprotect(ctx context.Context, entryID string) (ExecutionResult, error) {
	entry, err := e.ledger.BeginReprotect(entryID)
	if err != nil {
		return ExecutionResult{}, err
	}
	if entry.Pair != e.pair.String() {
		_, _ = e.ledger.Unprotected(entryID, errors.Errorf("entry pair %s is not traded here", entry.Pair))
		return ExecutionResult{}, errors.Errorf("entry %s is for %s, executor trades %s", entryID, entry.Pair, e.pair.String())
	}

	result := ExecutionResult{
		EntryID: entry.ID,
		Pair:    e.pair,
		Entry: StepResult{Status: StepSucceeded, Order: domain.PlacedOrder{
			ID:            entry.EntryOrderID,
			ClientOrderID: entry.EntryClientID,
			Side:          domain.SideBuy,
			Quantity:      entry.ExecutedQuantity,
			Price:         entry.ExecutedPrice,
		}},
		StopPrice: entry.StopPrice,
	}
	logger := e.logger.With(zap.String("pair", e.pair.String()), zap.String("entry_id", entry.ID))

	lot, err := e.client.GetLotConstraint(ctx, e.pair)
	if err != nil {
		result.Stop = StepResult{Status: StepFailed, Err: errors.Wrap(err, "get lot constraint")}
		if _, lerr := e.ledger.Unprotected(entry.ID, result.Stop.Err); lerr != nil {
			logger.Error("failed to record unprotected entry", zap.Error(lerr))
		}
		return result, result.unprotectedError()
	}

	logger.Info("reprotecting entry", zap.Int("attempt", entry.StopAttempts))
	result.Stop = e.placeStop(ctx, logger, entry.ID, entry.StopClientID, lot.FloorQuantity(entry.ExecutedQuantity), entry.StopPrice, lot)
	if result.Stop.Status == StepFailed {
		e.escalate(ctx, logger, result)
		return result, result.Err()
	}
	return result, nil
}

// StopPrice is price * (1 - fraction), rounded up to the tick.
func StopPrice(price, fraction decimal.Decimal, lot domain.LotConstraint) decimal.Decimal {
	return lot.CeilPrice(price.Mul(decimal.NewFromInt(1).Sub(fraction)))
}

func (e *Executor) placeStop(ctx context.Context, logger *zap.Logger, entryID, clientID string, qty, stopPrice decimal.Decimal, lot domain.LotConstraint) StepResult {
	var (
		stop domain.PlacedOrder
		err  error
	)
	if qty.IsPositive() {
		stop, err = e.client.SubmitStopLossOrder(ctx, e.pair, domain.SideSell, lot.FormatQuantity(qty), lot.FormatPrice(stopPrice), clientID)
	} else {
		err = ErrStopQuantityZero
	}

	if err != nil {
		if _, lerr := e.ledger.Unprotected(entryID, err); lerr != nil {
			logger.Error("failed to record unprotected entry", zap.Error(lerr))
		}
		return StepResult{Status: StepFailed, Err: errors.Wrap(err, "submit stop-loss order")}
	}

	if _, lerr := e.ledger.Protected(entryID, stop); lerr != nil {
		logger.Error("failed to record protected entry", zap.Error(lerr))
	}
	logger.Info("stop-loss placed",
		zap.String("quantity", stop.Quantity.String()),
		zap.String("stop_price", stopPrice.String()))
	return StepResult{Status: StepSucceeded, Order: stop}
}

func (e *Executor) markEntryFailed(ctx context.Context, logger *zap.Logger, entryID, quantity string, err error) {
	if _, lerr := e.ledger.EntryFailed(entryID, err); lerr != nil {
		logger.Error("failed to record entry failure", zap.Error(lerr))
	}
	logger.Error("entry order failed", zap.String("quantity", quantity), zap.Error(err))

	if !domain.IsRejected(err) {
		return
	}
	// a rejected entry usually means quantization is wrong for this instrument
	notifyErr := e.notifier.Notify(ctx, alert.Alert{
		Severity: alert.SeverityWarning,
		Title:    "entry order rejected",
		Message:  err.Error(),
		Fields:   map[string]string{"pair": e.pair.String(), "entry_id": entryID, "quantity": quantity},
		Time:     e.now(),
	})
	if notifyErr != nil {
		logger.Error("failed to send alert", zap.Error(notifyErr))
	}
}

func (e *Executor) markEntryUnknown(ctx context.Context, logger *zap.Logger, entryID, quantity string, err error) {
	var unknown *unknownEntryError
	acknowledged := errors.As(err, &unknown) && unknown.acknowledged
	if _, lerr := e.ledger.EntryUnknown(entryID, err, acknowledged); lerr != nil {
		logger.Error("failed to record unknown entry", zap.Error(lerr))
	}
	logger.Error("entry outcome unknown, new entries halted until it is resolved",
		zap.Bool("alert", true),
		zap.String("quantity", quantity),
		zap.Bool("acknowledged", acknowledged),
		zap.Error(err))

	notifyErr := e.notifier.Notify(ctx, alert.Alert{
		Severity: alert.SeverityCritical,
		Title:    "entry outcome unknown",
		Message:  err.Error(),
		Fields:   map[string]string{"pair": e.pair.String(), "entry_id": entryID, "quantity": quantity},
		Time:     e.now(),
	})
	if notifyErr != nil {
		logger.Error("failed to send alert", zap.Error(notifyErr))
	}
}

func (e *Executor) escalate(ctx context.Context, logger *zap.Logger, result ExecutionResult) {
	uerr := result.unprotectedError()

	logger.Error("position is unprotected",
		zap.Bool("alert", true),
		zap.String("quantity", result.Entry.Order.Quantity.String()),
		zap.String("price", result.Entry.Order.Price.String()),
		zap.String("stop_price", result.StopPrice.String()),
		zap.Error(result.Stop.Err))

	notifyErr := e.notifier.Notify(ctx, alert.Alert{
		Severity: alert.SeverityCritical,
		Title:    "unprotected position",
		Message:  uerr.Error(),
		Fields: map[string]string{
			"pair":       e.pair.String(),
			"entry_id":   result.EntryID,
			"quantity":   result.Entry.Order.Quantity.String(),
			"price":      result.Entry.Order.Price.String(),
			"stop_price": result.StopPrice.String(),
		},
		Time: e.now(),
	})
	if notifyErr != nil {
		logger.Error("failed to send alert", zap.Error(notifyErr))
	}
}
