package internal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/trendbot/config"
	"github.com/vadiminshakov/trendbot/internal/domain"
	"github.com/vadiminshakov/trendbot/internal/services/alert"
	"github.com/vadiminshakov/trendbot/internal/services/exchange"
	"github.com/vadiminshakov/trendbot/internal/services/executor"
	"github.com/vadiminshakov/trendbot/internal/services/signal"
	"github.com/vadiminshakov/trendbot/internal/services/sizer"
	"github.com/vadiminshakov/trendbot/internal/storage/ledger"
)

// Stage is the part of a cycle that was reached.
type Stage string

const (
	StageEvaluating Stage = "evaluating"
	StageSizing     Stage = "sizing"
	StageExecuting  Stage = "executing"
)

// CycleReport describes one pass of the trading loop.
type CycleReport struct {
	Stage      Stage
	Signal     domain.Signal
	Evaluation signal.Evaluation
	Outcome    sizer.Outcome
	Result     executor.ExecutionResult
	// Resolved holds entries of unknown outcome this cycle settled.
	Resolved []executor.ExecutionResult
	// Halted is set when sizing was skipped because a position has no stop-loss.
	Halted bool
	Err    error
}

// TradingBot runs the evaluate, size and execute cycle for one pair.
type TradingBot struct {
	Config    config.Config
	client    exchange.Client
	generator *signal.Generator
	executor  *executor.Executor
	ledger    *ledger.Ledger
	logger    *zap.Logger
}

// NewTradingBot wires a bot around an already guarded exchange client.
func NewTradingBot(conf config.Config, client exchange.Client, l *ledger.Ledger, notifier alert.Notifier, logger *zap.Logger) (*TradingBot, error) {
	if client == nil {
		return nil, errors.New("exchange client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if l == nil {
		l = ledger.New(logger, nil)
	}

	generator, err := signal.NewGenerator(conf.ShortWindow, conf.LongWindow)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create signal generator")
	}

	exec, err := executor.NewExecutor(client, conf.Pair, l, notifier, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create executor")
	}

	return &TradingBot{
		Config:    conf,
		client:    client,
		generator: generator,
		executor:  exec,
		ledger:    l,
		logger:    logger.With(zap.String("pair", conf.Pair.String())),
	}, nil
}

// Executor exposes the order executor, e.g. for reprotecting from the dashboard.
func (b *TradingBot) Executor() *executor.Executor {
	return b.executor
}

// Ledger returns the order ledger the bot writes to.
func (b *TradingBot) Ledger() *ledger.Ledger {
	return b.ledger
}

// Run executes one cycle right away and then one per poll interval.
// Cycles run on this goroutine, so they never overlap. Returns when ctx is done.
func (b *TradingBot) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.Config.PollInterval)
	defer ticker.Stop()

	b.logger.Info("Starting trading loop", zap.Duration("poll_interval", b.Config.PollInterval))

	b.RunCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Context done, stopping trading bot run loop.")
			return ctx.Err()
		case <-ticker.C:
			b.RunCycle(ctx)
		}
	}
}

// RunCycle performs a single evaluate, size and execute pass. Failures are logged
// and returned in the report; they never stop the loop.
func (b *TradingBot) RunCycle(ctx context.Context) CycleReport {
	report := b.runCycle(ctx)
	if report.Err != nil {
		if ctx.Err() != nil {
			b.logger.Debug("cycle interrupted by shutdown", zap.String("stage", string(report.Stage)), zap.Error(report.Err))
		} else {
			b.logger.Error("trading cycle failed",
				zap.String("stage", string(report.Stage)),
				zap.String("signal", report.Signal.String()),
				zap.Error(report.Err))
		}
	}
	return report
}

func (b *TradingBot) runCycle(ctx context.Context) CycleReport {
	report := CycleReport{Stage: StageEvaluating, Signal: domain.SignalHold}
	report.Resolved = b.executor.ResolveUnknown(ctx, b.Config.StopLossFraction)

	eval, err := b.evaluate(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientData) {
			b.logger.Debug("not enough history yet, holding", zap.Error(err))
			return report
		}
		report.Err = err
		return report
	}
	report.Evaluation = eval
	report.Signal = eval.Signal

	b.logger.Debug("signal evaluated",
		zap.String("signal", eval.Signal.String()),
		zap.String("short_ema", eval.ShortEMA.String()),
		zap.String("long_ema", eval.LongEMA.String()),
		zap.String("price", eval.Price.String()))

	if eval.Signal != domain.SignalBuy {
		return report
	}

	if b.Config.HaltOnUnprotected && b.ledger.HasUnprotected() {
		b.logger.Warn("buy signal ignored: position without stop-loss must be reprotected first",
			zap.Int("unprotected", len(b.ledger.UnprotectedEntries())))
		report.Halted = true
		return report
	}

	report.Stage = StageSizing
	outcome, err := b.size(ctx, eval.Price)
	if err != nil {
		report.Err = err
		return report
	}
	report.Outcome = outcome
	if !outcome.Accepted() {
		b.logger.Info("buy signal not sized",
			zap.String("reason", string(outcome.Rejected)),
			zap.String("target_notional", outcome.TargetNotional.String()),
			zap.String("price", eval.Price.String()))
		return report
	}

	report.Stage = StageExecuting
	b.logger.Info("buy signal",
		zap.String("short_ema", eval.ShortEMA.String()),
		zap.String("long_ema", eval.LongEMA.String()),
		zap.String("price", eval.Price.String()),
		zap.String("quantity", outcome.Intent.Quantity.String()))

	report.Result = b.executor.Execute(ctx, outcome.Intent, b.Config.StopLossFraction)
	report.Err = report.Result.Err()
	return report
}

func (b *TradingBot) evaluate(ctx context.Context) (signal.Evaluation, error) {
	candles, err := b.client.GetHistoricalCandles(ctx, b.Config.Pair, b.Config.CandleInterval, b.Config.HistorySize)
	if err != nil {
		return signal.Evaluation{}, errors.Wrap(err, "fetch candles")
	}
	history, err := domain.NewPriceHistory(candles)
	if err != nil {
		return signal.Evaluation{}, err
	}

	price, err := b.client.GetTicker(ctx, b.Config.Pair)
	if err != nil {
		return signal.Evaluation{}, errors.Wrap(err, "fetch ticker")
	}

	return b.generator.Evaluate(history, price)
}

func (b *TradingBot) size(ctx context.Context, price decimal.Decimal) (sizer.Outcome, error) {
	balance, err := b.client.GetAccountBalance(ctx, b.Config.Pair.To)
	if err != nil {
		return sizer.Outcome{}, errors.Wrap(err, "fetch quote balance")
	}
	lot, err := b.client.GetLotConstraint(ctx, b.Config.Pair)
	if err != nil {
		return sizer.Outcome{}, errors.Wrap(err, "fetch lot constraint")
	}
	return sizer.Size(balance, price, b.Config.Risk, lot)
}
