package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/atharvakonge/paper-trading-simulator/internal/logger"
	"github.com/atharvakonge/paper-trading-simulator/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 2*time.Second, logger.Discard())
}

func TestFetchPrices_SingleBatchedRequest(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/ticker/price", r.URL.Path)
		assert.Equal(t, `["BTCUSDT","ETHUSDT"]`, r.URL.Query().Get("symbols"))
		w.Write([]byte(`[{"symbol":"BTCUSDT","price":"43250.10000000"},{"symbol":"ETHUSDT","price":"2250.5"}]`))
	})

	prices, err := c.FetchPrices(context.Background(), []string{"BTCUSDT", "ETHUSDT"})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "43250.1", prices["BTCUSDT"].String())
	assert.Equal(t, "2250.5", prices["ETHUSDT"].String())
}

func TestFetchPrices_EmptyMakesNoRequest(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("unexpected request")
	})

	prices, err := c.FetchPrices(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, prices)
}

func TestFetchPrices_Non200IsFeedUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	})

	_, err := c.FetchPrices(context.Background(), []string{"NOPE"})
	assert.ErrorIs(t, err, models.ErrFeedUnavailable)
}

func TestFetchPrices_MalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	_, err := c.FetchPrices(context.Background(), []string{"BTCUSDT"})
	assert.ErrorIs(t, err, models.ErrFeedUnavailable)
}

func TestFetchPrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SOLUSDT", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{"symbol":"SOLUSDT","price":"98.76"}`))
	})

	price, err := c.FetchPrice(context.Background(), "SOLUSDT")
	require.NoError(t, err)
	assert.Equal(t, "98.76", price.String())
}

func TestFetchCandles_ConvertsMillisToSeconds(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/klines", r.URL.Path)
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		w.Write([]byte(`[
			[1700000000000,"100.0","110.0","95.0","105.0","12.5",1700003599999,"0",1,"0","0","0"],
			[1700003600000,"105.0","108.0","101.0","107.5","8.25",1700007199999,"0",1,"0","0","0"]
		]`))
	})

	candles, err := c.FetchCandles(context.Background(), "BTCUSDT", "1h", 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(1700000000), candles[0].Time)
	assert.Equal(t, 110.0, candles[0].High)
	assert.Equal(t, 107.5, candles[1].Close)
	assert.Equal(t, 8.25, candles[1].Volume)
}

func TestFetchCandles_ContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchCandles(ctx, "BTCUSDT", "1m", 10)
	assert.ErrorIs(t, err, models.ErrFeedUnavailable)
}
