package main

import (
	"fmt"
	"os"

	"github.com/atharvakonge/paper-trading-simulator/internal/commands"
	"github.com/shopspring/decimal"
)

func main() {
	// Prices and balances go over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
