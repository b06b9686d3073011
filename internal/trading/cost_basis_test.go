package trading

import (
	"testing"
	"time"

	"github.com/atharvakonge/paper-trading-simulator/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func ledgerEntry(ticker string, side models.TradeSide, amount, price string, at int) models.Transaction {
	return models.Transaction{
		Ticker:             ticker,
		Type:               side,
		Amount:             decimal.RequireFromString(amount),
		PriceAtTransaction: decimal.RequireFromString(price),
		Timestamp:          time.Unix(int64(at), 0),
	}
}

func TestReplayCostBasis_WeightedAverage(t *testing.T) {
	ledger := []models.Transaction{
		ledgerEntry("BTC", models.SideBuy, "2", "100", 1),
		ledgerEntry("BTC", models.SideBuy, "1", "200", 2),
	}

	cb := ReplayCostBasis(ledger)["BTC"]
	assert.Equal(t, "3", cb.Quantity.String())
	assert.Equal(t, "400", cb.TotalCost.String())
	assert.Equal(t, "133.33", cb.AvgPrice.StringFixed(2))

	ledger = append(ledger, ledgerEntry("BTC", models.SideSell, "1", "500", 3))
	cb = ReplayCostBasis(ledger)["BTC"]
	assert.Equal(t, "2", cb.Quantity.String())
	// cost leaves at the running average, not at the sale price
	assert.Equal(t, "266.67", cb.TotalCost.StringFixed(2))
	assert.Equal(t, "133.33", cb.AvgPrice.StringFixed(2))
}

func TestReplayCostBasis_ResetsWhenFlat(t *testing.T) {
	ledger := []models.Transaction{
		ledgerEntry("ETH", models.SideBuy, "1", "1000", 1),
		ledgerEntry("ETH", models.SideSell, "1", "1500", 2),
		ledgerEntry("ETH", models.SideBuy, "2", "2000", 3),
	}

	flat := ReplayCostBasis(ledger[:2])["ETH"]
	assert.True(t, flat.Quantity.IsZero())
	assert.True(t, flat.TotalCost.IsZero())
	assert.True(t, flat.AvgPrice.IsZero(), "avg %s", flat.AvgPrice)

	cb := ReplayCostBasis(ledger)["ETH"]
	assert.Equal(t, "2", cb.Quantity.String())
	assert.Equal(t, "4000", cb.TotalCost.String())
	assert.Equal(t, "2000", cb.AvgPrice.String())
}

func TestReplayCostBasis_OversellClampsToZero(t *testing.T) {
	ledger := []models.Transaction{
		ledgerEntry("SOL", models.SideBuy, "1", "10", 1),
		ledgerEntry("SOL", models.SideSell, "3", "10", 2),
	}

	cb := ReplayCostBasis(ledger)["SOL"]
	assert.True(t, cb.Quantity.IsZero())
	assert.True(t, cb.TotalCost.IsZero())
	assert.True(t, cb.AvgPrice.IsZero())
}

func TestReplayCostBasis_TickersIndependent(t *testing.T) {
	ledger := []models.Transaction{
		ledgerEntry("BTC", models.SideBuy, "1", "100", 1),
		ledgerEntry("ETH", models.SideBuy, "4", "25", 2),
	}

	out := ReplayCostBasis(ledger)
	assert.Len(t, out, 2)
	assert.Equal(t, "100", out["BTC"].AvgPrice.String())
	assert.Equal(t, "25", out["ETH"].AvgPrice.String())
	assert.Empty(t, ReplayCostBasis(nil))
}
