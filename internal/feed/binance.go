// Package feed talks to the upstream market data provider.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/atharvakonge/paper-trading-simulator/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// MaxCandles is the upstream cap on klines per request
const MaxCandles = 1000

// Client fetches spot prices and klines from a Binance-compatible REST API.
// Every failure is wrapped in models.ErrFeedUnavailable.
type Client struct {
	baseURL string
	http    *http.Client
	log     *logrus.Entry
}

func NewClient(baseURL string, timeout time.Duration, log *logrus.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log.WithField("component", "feed"),
	}
}

type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// FetchPrices returns feed symbol -> last price for the requested symbols in a single request.
// Symbols the provider does not report are absent from the result.
func (c *Client) FetchPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}

	encoded, err := json.Marshal(symbols)
	if err != nil {
		return nil, fmt.Errorf("%w: encode symbols: %v", models.ErrFeedUnavailable, err)
	}
	q := url.Values{}
	q.Set("symbols", string(encoded))

	var tickers []tickerPrice
	if err := c.get(ctx, "/ticker/price", q, &tickers); err != nil {
		return nil, err
	}

	for _, t := range tickers {
		price, err := decimal.NewFromString(t.Price)
		if err != nil {
			c.log.WithField("symbol", t.Symbol).Warnf("Skipping unparsable price %q", t.Price)
			continue
		}
		out[t.Symbol] = price
	}
	return out, nil
}

// FetchPrice returns the last price of one symbol
func (c *Client) FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("symbol", symbol)

	var t tickerPrice
	if err := c.get(ctx, "/ticker/price", q, &t); err != nil {
		return decimal.Zero, err
	}
	price, err := decimal.NewFromString(t.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: bad price %q for %s", models.ErrFeedUnavailable, t.Price, symbol)
	}
	return price, nil
}

// FetchCandles returns up to limit OHLCV bars, oldest first, with Time in unix seconds.
func (c *Client) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	if limit <= 0 || limit > MaxCandles {
		limit = MaxCandles
	}
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))

	var raw [][]json.RawMessage
	if err := c.get(ctx, "/klines", q, &raw); err != nil {
		return nil, err
	}

	candles := make([]models.Candle, 0, len(raw))
	for _, k := range raw {
		candle, err := parseKline(k)
		if err != nil {
			return nil, fmt.Errorf("%w: %s klines: %v", models.ErrFeedUnavailable, symbol, err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// parseKline decodes [openTimeMs, open, high, low, close, volume, ...]
func parseKline(k []json.RawMessage) (models.Candle, error) {
	if len(k) < 6 {
		return models.Candle{}, fmt.Errorf("kline has %d fields", len(k))
	}
	var openMs int64
	if err := json.Unmarshal(k[0], &openMs); err != nil {
		return models.Candle{}, fmt.Errorf("open time: %w", err)
	}

	vals := make([]float64, 5)
	for i := range vals {
		var s string
		if err := json.Unmarshal(k[i+1], &s); err != nil {
			return models.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		vals[i] = f
	}

	return models.Candle{
		Time:   openMs / 1000,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, dst any) error {
	endpoint := c.baseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrFeedUnavailable, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s returned %d: %s", models.ErrFeedUnavailable, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode %s: %v", models.ErrFeedUnavailable, path, err)
	}
	return nil
}
