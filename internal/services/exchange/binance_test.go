package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/trendbot/internal/domain"
)

func newBinanceTestExchange(t *testing.T, handler http.HandlerFunc) *BinanceExchange {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := binance.NewClient("key", "secret")
	client.BaseURL = srv.URL
	ex, err := NewBinanceExchange(client)
	require.NoError(t, err)
	return ex
}

func writeBody(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestBinanceExchange_MarketOrderFill(t *testing.T) {
	ex := newBinanceTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/order", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "MARKET", r.Form.Get("type"))
		assert.Equal(t, "0.0004", r.Form.Get("quantity"))
		assert.Equal(t, "tbe1", r.Form.Get("newClientOrderId"))
		assert.Equal(t, "FULL", r.Form.Get("newOrderRespType"))

		writeBody(w, http.StatusOK, `{"symbol":"BTCUSDT","orderId":28,"clientOrderId":"tbe1",
			"transactTime":1700000000000,"price":"0","origQty":"0.0004","executedQty":"0.0004",
			"cummulativeQuoteQty":"20.004","status":"FILLED","type":"MARKET","side":"BUY","fills":[]}`)
	})

	order, err := ex.SubmitMarketOrder(context.Background(), btcusdt, domain.SideBuy, "0.0004", "tbe1")
	require.NoError(t, err)
	assert.Equal(t, "28", order.ID)
	assert.Equal(t, "tbe1", order.ClientOrderID)
	assert.True(t, order.Quantity.Equal(decimal.RequireFromString("0.0004")))
	assert.True(t, order.Price.Equal(decimal.NewFromInt(50010)), order.Price.String())
}

func TestBinanceExchange_StopLossOrder(t *testing.T) {
	ex := newBinanceTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "STOP_LOSS", r.Form.Get("type"))
		assert.Equal(t, "SELL", r.Form.Get("side"))
		assert.Equal(t, "47500.00", r.Form.Get("stopPrice"))
		assert.Equal(t, "tbs1", r.Form.Get("newClientOrderId"))

		writeBody(w, http.StatusOK, `{"symbol":"BTCUSDT","orderId":29,"clientOrderId":"tbs1","transactTime":1700000000000}`)
	})

	order, err := ex.SubmitStopLossOrder(context.Background(), btcusdt, domain.SideSell, "0.0004", "47500.00", "tbs1")
	require.NoError(t, err)
	assert.Equal(t, "29", order.ID)
	assert.True(t, order.Price.Equal(decimal.NewFromInt(47500)))
}

func TestBinanceExchange_ErrorClassification(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantRejected bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"code":-1003,"msg":"Too many requests"}`},
		{name: "too many orders", status: http.StatusBadRequest, body: `{"code":-1015,"msg":"Too many new orders"}`},
		{name: "lot size", status: http.StatusBadRequest, body: `{"code":-1013,"msg":"Filter failure: LOT_SIZE"}`, wantRejected: true},
		{name: "insufficient balance", status: http.StatusBadRequest, body: `{"code":-2010,"msg":"Account has insufficient balance"}`, wantRejected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := newBinanceTestExchange(t, func(w http.ResponseWriter, _ *http.Request) {
				writeBody(w, tt.status, tt.body)
			})

			_, err := ex.SubmitMarketOrder(context.Background(), btcusdt, domain.SideBuy, "0.0004", "tbe1")
			require.Error(t, err)
			assert.Equal(t, tt.wantRejected, errors.Is(err, domain.ErrOrderRejected))
			assert.Equal(t, !tt.wantRejected, errors.Is(err, domain.ErrTransport))
		})
	}
}

func TestBinanceExchange_UnreachableIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := binance.NewClient("key", "secret")
	client.BaseURL = url
	ex, err := NewBinanceExchange(client)
	require.NoError(t, err)

	_, err = ex.GetTicker(context.Background(), btcusdt)
	assert.True(t, errors.Is(err, domain.ErrTransport))
}

func TestBinanceExchange_LookupOrder(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		ex := newBinanceTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "tbe1", r.URL.Query().Get("origClientOrderId"))
			writeBody(w, http.StatusOK, `{"symbol":"BTCUSDT","orderId":28,"clientOrderId":"tbe1",
				"price":"0","origQty":"0.0004","executedQty":"0.0002","cummulativeQuoteQty":"10",
				"status":"EXPIRED","type":"MARKET","side":"BUY","updateTime":1700000000000}`)
		})

		order, err := ex.LookupOrder(context.Background(), btcusdt, "tbe1")
		require.NoError(t, err)
		assert.Equal(t, domain.SideBuy, order.Side)
		assert.True(t, order.Quantity.Equal(decimal.RequireFromString("0.0002")))
		assert.True(t, order.Price.Equal(decimal.NewFromInt(50000)))
	})

	t.Run("unknown order", func(t *testing.T) {
		ex := newBinanceTestExchange(t, func(w http.ResponseWriter, _ *http.Request) {
			writeBody(w, http.StatusBadRequest, `{"code":-2013,"msg":"Order does not exist."}`)
		})

		_, err := ex.LookupOrder(context.Background(), btcusdt, "tbe1")
		assert.True(t, errors.Is(err, domain.ErrOrderNotFound))
		assert.False(t, errors.Is(err, domain.ErrTransport))
	})
}
