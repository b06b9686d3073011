package trading

import (
	"github.com/atharvakonge/paper-trading-simulator/internal/models"
	"github.com/shopspring/decimal"
)

// CostBasis is the running weighted-average cost of one ticker
type CostBasis struct {
	Quantity  decimal.Decimal
	TotalCost decimal.Decimal
	AvgPrice  decimal.Decimal
}

// ReplayCostBasis walks a chronologically ordered ledger and returns the average cost per ticker.
//
// A BUY adds amount*price to the total cost and recomputes the average. A SELL removes
// amount*avg (the running average, not the sale price). Once the running quantity drops to zero
// or below, quantity and cost restart from zero.
func ReplayCostBasis(ledger []models.Transaction) map[string]CostBasis {
	out := make(map[string]CostBasis)
	for _, tr := range ledger {
		cb := out[tr.Ticker]
		switch tr.Type {
		case models.SideBuy:
			cb.Quantity = cb.Quantity.Add(tr.Amount)
			cb.TotalCost = cb.TotalCost.Add(tr.Amount.Mul(tr.PriceAtTransaction))
			if cb.Quantity.IsPositive() {
				cb.AvgPrice = cb.TotalCost.Div(cb.Quantity)
			}
		case models.SideSell:
			cb.Quantity = cb.Quantity.Sub(tr.Amount)
			cb.TotalCost = cb.TotalCost.Sub(tr.Amount.Mul(cb.AvgPrice))
			if !cb.Quantity.IsPositive() {
				cb.Quantity = decimal.Zero
				cb.TotalCost = decimal.Zero
				cb.AvgPrice = decimal.Zero
			}
		}
		out[tr.Ticker] = cb
	}
	return out
}
