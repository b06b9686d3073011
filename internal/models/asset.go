package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Asset is a tradable instrument tracked by the market sync loop
type Asset struct {
	ID           int64           `json:"id"`
	Ticker       string          `json:"ticker"`
	Name         string          `json:"name"`
	FeedSymbol   string          `json:"feed_symbol"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	IsActive     bool            `json:"is_active"`
}

// AssetCreate - admin payload for a new asset
type AssetCreate struct {
	Ticker     string `json:"ticker" binding:"required,max=10"`
	Name       string `json:"name" binding:"required,max=50"`
	FeedSymbol string `json:"feed_symbol" binding:"required,max=20"`
}

// AssetUpdate - admin payload for editing an asset, nil fields are left untouched
type AssetUpdate struct {
	Name       *string `json:"name" binding:"omitempty,min=1,max=50"`
	FeedSymbol *string `json:"feed_symbol" binding:"omitempty,min=1,max=20"`
	IsActive   *bool   `json:"is_active"`
}

// PricePoint is an immutable price history snapshot
type PricePoint struct {
	AssetID   int64           `json:"asset_id"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// Candle is one OHLCV bar, Time in unix seconds
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

const (
	MessageMarketUpdate = "market_update"
	MessageServerStatus = "server_status"
)

// PriceUpdate is a single entry of a market_update broadcast
type PriceUpdate struct {
	Ticker string          `json:"ticker"`
	Price  decimal.Decimal `json:"price"`
}

// MarketUpdate is the message fanned out after every sync cycle that changed prices
type MarketUpdate struct {
	Type string        `json:"type"`
	Data []PriceUpdate `json:"data"`
}

func NewMarketUpdate(updates []PriceUpdate) MarketUpdate {
	return MarketUpdate{Type: MessageMarketUpdate, Data: updates}
}

// ServerStatus is pushed periodically to every WebSocket client
type ServerStatus struct {
	Type        string  `json:"type"`
	Goroutines  int     `json:"goroutines"`
	HeapMB      float64 `json:"heap_mb"`
	Subscribers int     `json:"subscribers"`
}
