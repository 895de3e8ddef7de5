package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vadiminshakov/trendbot/config"
	"github.com/vadiminshakov/trendbot/internal"
	"github.com/vadiminshakov/trendbot/internal/services/alert"
	"github.com/vadiminshakov/trendbot/internal/storage/ledger"
	"github.com/vadiminshakov/trendbot/internal/web"
)

var (
	runConfigPath string
	runDebug      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading loop from a config file",
	Long: `Run the trading loop for the pair configured in the YAML file.

API credentials are taken from the environment.

Example:
  trendbot run --config config.yaml`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "config.yaml", "path to YAML config file")
	runCmd.Flags().BoolVar(&runDebug, "debug", false, "human readable debug logs")
}

func runRun(_ *cobra.Command, _ []string) error {
	conf, err := config.Load(runConfigPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(conf.LogLevel, runDebug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	creds, err := config.CredentialsFromEnv(conf.Platform, os.Getenv)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sink ledger.Sink
	if conf.LedgerWALDir != "" {
		walSink, err := ledger.NewWALSink(conf.LedgerWALDir)
		if err != nil {
			return err
		}
		defer walSink.Close()
		reportUnresolved(logger, walSink)
		sink = walSink
	}
	l := ledger.New(logger, sink)

	notifier := alert.Multi{alert.NewLogNotifier(logger)}
	if conf.AlertWebhookURL != "" {
		notifier = append(notifier, alert.NewWebhookNotifier(conf.AlertWebhookURL))
	}

	client, err := internal.NewExchangeClient(conf, creds, logger)
	if err != nil {
		return err
	}

	bot, err := internal.NewTradingBot(conf, client, l, notifier, logger)
	if err != nil {
		return err
	}

	if conf.DashboardAddr != "" {
		if len(conf.DashboardDomains) > 0 && creds.DashboardToken == "" {
			return errors.New("TRENDBOT_DASHBOARD_TOKEN must be set when the dashboard is served on a public domain")
		}
		srv := web.NewServer(conf.DashboardAddr, l, bot.Executor(), logger.Named("web"))
		srv.Token = creds.DashboardToken
		go func() {
			var err error
			if len(conf.DashboardDomains) > 0 {
				err = srv.StartWithAutoTLS(ctx, conf.DashboardDomains, conf.DashboardCertCache)
			} else {
				err = srv.Start(ctx)
			}
			if err != nil {
				logger.Error("dashboard stopped", zap.Error(err))
			}
		}()
		logger.Info("dashboard listening", zap.String("addr", conf.DashboardAddr))
	}

	logger.Info("started",
		zap.String("platform", conf.Platform),
		zap.String("pair", conf.Pair.String()),
		zap.String("interval", conf.CandleInterval),
		zap.Int("short_window", conf.ShortWindow),
		zap.Int("long_window", conf.LongWindow))

	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if n := len(l.UnprotectedEntries()); n > 0 {
		logger.Warn("shutting down with positions that have no stop-loss", zap.Int("unprotected", n))
	}
	return nil
}

func newLogger(level string, debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log_level %q", level)
	}
	cfg.Level = lvl
	return cfg.Build()
}

// reportUnresolved warns about entries a previous run left without a confirmed stop.
func reportUnresolved(logger *zap.Logger, sink *ledger.WALSink) {
	records, err := sink.Records()
	if err != nil {
		logger.Error("failed to read ledger WAL", zap.Error(err))
		return
	}
	for _, e := range ledger.Unresolved(records) {
		logger.Warn("previous run left an entry without a confirmed stop-loss, check the exchange",
			zap.String("entry_id", e.ID),
			zap.String("pair", e.Pair),
			zap.String("status", string(e.Status)),
			zap.String("quantity", e.ExecutedQuantity.String()),
			zap.String("stop_price", e.StopPrice.String()))
	}
}
