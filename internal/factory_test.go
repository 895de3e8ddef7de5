package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/trendbot/config"
)

func TestNewExchangeClient(t *testing.T) {
	tests := []struct {
		name             string
		platform         string
		creds            config.Credentials
		expectError      bool
		expectedErrorMsg string
	}{
		{
			name:             "Unsupported Platform",
			platform:         "kraken",
			expectError:      true,
			expectedErrorMsg: "unsupported platform: kraken",
		},
		{
			name:     "Valid Binance Platform",
			platform: config.PlatformBinance,
			creds:    config.Credentials{BinanceAPIKey: "key", BinanceAPISecret: "secret"},
		},
		{
			name:     "Valid Bybit Platform",
			platform: config.PlatformBybit,
			creds:    config.Credentials{BybitAPIKey: "key", BybitAPISecret: "secret"},
		},
		{
			name:        "Invalid Hyperliquid Key",
			platform:    config.PlatformHyperliquid,
			creds:       config.Credentials{HyperliquidPrivateKey: "zz"},
			expectError: true,
		},
		{
			name:     "Simulate Platform",
			platform: config.PlatformSimulate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := testConfig()
			conf.Platform = tt.platform

			client, err := NewExchangeClient(conf, tt.creds, zap.NewNop())

			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedErrorMsg)
				assert.Nil(t, client)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, client)
		})
	}
}
