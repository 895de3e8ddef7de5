package clients

import (
	"net/http"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/hirokisan/bybit/v2"
)

// NewBinanceClient returns an authenticated spot client. A positive timeout
// bounds every HTTP request.
func NewBinanceClient(apiKey, apiSecret string, timeout time.Duration) *binance.Client {
	c := binance.NewClient(apiKey, apiSecret)
	if timeout > 0 {
		c.HTTPClient = &http.Client{Timeout: timeout}
	}
	return c
}

// NewBinancePublicClient returns a client without keys, usable for market data only.
func NewBinancePublicClient(timeout time.Duration) *binance.Client {
	return NewBinanceClient("", "", timeout)
}

// NewBybitClient returns an authenticated client. The bybit SDK takes no
// context, so the HTTP timeout is the only thing that ends a hung request.
func NewBybitClient(apiKey, apiSecret string, timeout time.Duration) *bybit.Client {
	c := bybit.NewClient().WithAuth(apiKey, apiSecret)
	if timeout > 0 {
		c = c.WithHTTPClient(&http.Client{Timeout: timeout})
	}
	return c
}
