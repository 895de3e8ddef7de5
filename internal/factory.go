package internal

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/trendbot/config"
	"github.com/vadiminshakov/trendbot/internal/clients"
	"github.com/vadiminshakov/trendbot/internal/services/exchange"
)

// NewExchangeClient builds the platform adapter for conf and wraps it with
// per-call timeouts and bounded retries for reads.
// This is the single point of truth for dispatching to platform-specific implementations.
func NewExchangeClient(conf config.Config, creds config.Credentials, logger *zap.Logger) (*exchange.Guarded, error) {
	raw, err := newPlatformClient(conf, creds, logger)
	if err != nil {
		return nil, err
	}
	return exchange.Guard(raw, conf.CallTimeout, exchange.ReadRetrier(conf.ReadRetries)), nil
}

func newPlatformClient(conf config.Config, creds config.Credentials, logger *zap.Logger) (exchange.Client, error) {
	switch conf.Platform {
	case config.PlatformBinance:
		return exchange.NewBinanceExchange(clients.NewBinanceClient(creds.BinanceAPIKey, creds.BinanceAPISecret, conf.CallTimeout))
	case config.PlatformBybit:
		return exchange.NewBybitExchange(clients.NewBybitClient(creds.BybitAPIKey, creds.BybitAPISecret, conf.CallTimeout))
	case config.PlatformHyperliquid:
		hl, err := clients.NewHyperliquidClient(creds.HyperliquidPrivateKey, creds.HyperliquidAPIURL)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create hyperliquid client")
		}
		return exchange.NewHyperliquidExchange(hl.Exchange(), hl.AccountAddress())
	case config.PlatformSimulate:
		// real prices from the public Binance API, fills against a paper wallet
		market, err := exchange.NewBinanceExchange(clients.NewBinancePublicClient(conf.CallTimeout))
		if err != nil {
			return nil, err
		}
		return exchange.NewSimulateExchange(market, conf.Pair, conf.SimulateQuoteBalance, logger)
	default:
		return nil, errors.Errorf("unsupported platform: %s", conf.Platform)
	}
}
