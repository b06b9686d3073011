// Package trading executes trades against the durable store and values wallets.
package trading

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atharvakonge/paper-trading-simulator/internal/models"
	"github.com/atharvakonge/paper-trading-simulator/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Monetary results are rounded to the precision of the balance column
const moneyScale = 8

type Engine struct {
	store store.Store
	log   *logrus.Entry
	now   func() time.Time
}

func NewEngine(st store.Store, log *logrus.Logger) *Engine {
	return &Engine{
		store: st,
		log:   log.WithField("component", "trade_engine"),
		now:   time.Now,
	}
}

// ExecuteTrade runs a BUY or SELL at the asset's last synced price. Balance, holding and ledger
// change together in one transaction.
func (e *Engine) ExecuteTrade(ctx context.Context, userID int64, ticker string, amount decimal.Decimal, side models.TradeSide) (models.Transaction, error) {
	if !side.Valid() {
		return models.Transaction{}, fmt.Errorf("%w: %q", models.ErrInvalidTradeType, side)
	}
	if !amount.IsPositive() {
		return models.Transaction{}, fmt.Errorf("%w: amount must be greater than 0, got %s", models.ErrInvalidAmount, amount)
	}
	if !amount.Equal(amount.Truncate(moneyScale)) {
		return models.Transaction{}, fmt.Errorf("%w: amount supports at most %d decimal places, got %s", models.ErrInvalidAmount, moneyScale, amount)
	}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	var record models.Transaction
	err := e.store.InTx(ctx, func(tx store.Tx) error {
		user, err := tx.GetUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		asset, err := tx.GetAssetByTicker(ctx, ticker)
		if err != nil {
			return err
		}

		total := asset.CurrentPrice.Mul(amount).Round(moneyScale)
		if !total.IsPositive() {
			return fmt.Errorf("%w: %s %s is worth less than $0.00000001", models.ErrInvalidAmount, amount, asset.Ticker)
		}

		var balance, delta decimal.Decimal
		switch side {
		case models.SideBuy:
			if user.Balance.LessThan(total) {
				return fmt.Errorf("%w: need $%s, have $%s", models.ErrInsufficientFunds, total.StringFixed(2), user.Balance.StringFixed(2))
			}
			balance = user.Balance.Sub(total)
			delta = amount

		case models.SideSell:
			holding, err := tx.GetHoldingForUpdate(ctx, userID, asset.ID)
			switch {
			case models.IsNotFound(err):
				return fmt.Errorf("%w: you do not own any %s", models.ErrInsufficientHolding, asset.Ticker)
			case err != nil:
				return err
			}
			if holding.Quantity.LessThan(amount) {
				return fmt.Errorf("%w: trying to sell %s %s, own %s", models.ErrInsufficientHolding, amount, asset.Ticker, holding.Quantity)
			}
			balance = user.Balance.Add(total)
			delta = amount.Neg()
		}

		if err := tx.SetBalance(ctx, userID, balance); err != nil {
			return err
		}
		if _, err := tx.AddHolding(ctx, userID, asset.ID, delta); err != nil {
			return err
		}
		record, err = tx.AppendTransaction(ctx, models.Transaction{
			UserID:             userID,
			AssetID:            asset.ID,
			Amount:             amount,
			PriceAtTransaction: asset.CurrentPrice,
			Type:               side,
			Timestamp:          e.now(),
		})
		return err
	})
	if err != nil {
		return models.Transaction{}, err
	}

	e.log.WithFields(logrus.Fields{
		"user_id": userID,
		"ticker":  record.Ticker,
		"side":    record.Type,
		"amount":  record.Amount.String(),
		"price":   record.PriceAtTransaction.String(),
	}).Info("Trade executed")
	return record, nil
}

// Wallet values the user's holdings at current prices. Average buy prices come from a ledger
// replay; quantities come from the holdings themselves.
func (e *Engine) Wallet(ctx context.Context, userID int64) (models.Wallet, error) {
	var (
		portfolio models.UserPortfolio
		ledger    []models.Transaction
	)
	err := e.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		if portfolio, err = tx.GetUserWithPortfolio(ctx, userID); err != nil {
			return err
		}
		ledger, err = tx.ListTransactions(ctx, userID)
		return err
	})
	if err != nil {
		return models.Wallet{}, err
	}

	basis := ReplayCostBasis(ledger)

	wallet := models.Wallet{
		Username: portfolio.User.Username,
		Balance:  portfolio.User.Balance,
		Assets:   make([]models.WalletAsset, 0, len(portfolio.Items)),
	}
	total := portfolio.User.Balance
	for _, item := range portfolio.Items {
		if !item.Holding.Quantity.IsPositive() {
			continue
		}
		value := item.Holding.Quantity.Mul(item.Asset.CurrentPrice).Round(moneyScale)
		total = total.Add(value)
		wallet.Assets = append(wallet.Assets, models.WalletAsset{
			Ticker:          item.Asset.Ticker,
			Name:            item.Asset.Name,
			Amount:          item.Holding.Quantity,
			CurrentPrice:    item.Asset.CurrentPrice,
			Value:           value,
			AverageBuyPrice: basis[item.Asset.Ticker].AvgPrice.Round(moneyScale),
			IsActive:        item.Asset.IsActive,
		})
	}
	wallet.TotalValue = total
	return wallet, nil
}

// ResetAccount wipes the user's holdings and ledger and restores the initial balance
func (e *Engine) ResetAccount(ctx context.Context, userID int64) (models.ResetResult, error) {
	var res models.ResetResult
	err := e.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetUserForUpdate(ctx, userID); err != nil {
			return err
		}
		var err error
		if res.DeletedHoldings, err = tx.DeleteHoldingsByUser(ctx, userID); err != nil {
			return err
		}
		if res.DeletedTransactions, err = tx.DeleteTransactionsByUser(ctx, userID); err != nil {
			return err
		}
		res.NewBalance = models.InitialBalance
		return tx.SetBalance(ctx, userID, models.InitialBalance)
	})
	if err != nil {
		return models.ResetResult{}, err
	}

	e.log.WithFields(logrus.Fields{
		"user_id":              userID,
		"deleted_holdings":     res.DeletedHoldings,
		"deleted_transactions": res.DeletedTransactions,
	}).Info("Account reset")
	return res, nil
}

// History returns the user's ledger newest first. limit <= 0 returns everything.
func (e *Engine) History(ctx context.Context, userID int64, limit int) ([]models.Transaction, error) {
	var ledger []models.Transaction
	err := e.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		var err error
		ledger, err = tx.ListTransactions(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.Transaction, 0, len(ledger))
	for i := len(ledger) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, ledger[i])
	}
	return out, nil
}
