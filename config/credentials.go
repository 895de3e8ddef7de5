package config

import (
	"github.com/pkg/errors"
)

// Credentials are read from the environment only; never from the YAML file.
type Credentials struct {
	BinanceAPIKey         string
	BinanceAPISecret      string
	BybitAPIKey           string
	BybitAPISecret        string
	HyperliquidPrivateKey string
	HyperliquidAPIURL     string
	// DashboardToken gates the dashboard's trading actions. Optional.
	DashboardToken string
}

// CredentialsFromEnv loads the secrets the platform needs. getenv is usually os.Getenv.
func CredentialsFromEnv(platform string, getenv func(string) string) (Credentials, error) {
	c := Credentials{DashboardToken: getenv("TRENDBOT_DASHBOARD_TOKEN")}
	switch platform {
	case PlatformBinance:
		c.BinanceAPIKey = getenv("BINANCE_API_KEY")
		c.BinanceAPISecret = getenv("BINANCE_API_SECRET")
		if c.BinanceAPIKey == "" || c.BinanceAPISecret == "" {
			return c, errors.New("BINANCE_API_KEY and BINANCE_API_SECRET environment variables must be set")
		}
	case PlatformBybit:
		c.BybitAPIKey = getenv("BYBIT_API_KEY")
		c.BybitAPISecret = getenv("BYBIT_API_SECRET")
		if c.BybitAPIKey == "" || c.BybitAPISecret == "" {
			return c, errors.New("BYBIT_API_KEY and BYBIT_API_SECRET environment variables must be set")
		}
	case PlatformHyperliquid:
		c.HyperliquidPrivateKey = getenv("HYPERLIQUID_PRIVATE_KEY")
		c.HyperliquidAPIURL = getenv("HYPERLIQUID_API_URL")
		if c.HyperliquidPrivateKey == "" {
			return c, errors.New("HYPERLIQUID_PRIVATE_KEY environment variable must be set")
		}
	case PlatformSimulate:
		// public market data only
	default:
		return c, errors.Errorf("unsupported platform: %s", platform)
	}
	return c, nil
}
