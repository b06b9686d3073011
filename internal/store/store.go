// Package store holds the durable-state contracts of the simulator.
//
// AssetStore owns assets and their price history, AccountStore owns users, holdings and the
// transaction ledger. Both are only reachable inside a unit of work opened with Store.InTx, so
// every mutation commits atomically or not at all.
package store

import (
	"context"
	"time"

	"github.com/atharvakonge/paper-trading-simulator/internal/models"
	"github.com/shopspring/decimal"
)

// AssetStore is the registry of tracked assets and their append-only price history
type AssetStore interface {
	// ActiveFeedSymbols returns ticker -> feed symbol for every active asset.
	ActiveFeedSymbols(ctx context.Context) (map[string]string, error)
	// AssetIDsByTicker returns ticker -> id for every asset.
	AssetIDsByTicker(ctx context.Context) (map[string]int64, error)

	ListAssets(ctx context.Context, activeOnly bool) ([]models.Asset, error)
	GetAsset(ctx context.Context, id int64) (models.Asset, error)
	GetAssetByTicker(ctx context.Context, ticker string) (models.Asset, error)
	GetAssetByFeedSymbol(ctx context.Context, feedSymbol string) (models.Asset, error)
	CreateAsset(ctx context.Context, a models.Asset) (models.Asset, error)
	// UpdateAsset writes name, feed symbol, current price and active flag.
	UpdateAsset(ctx context.Context, a models.Asset) (models.Asset, error)
	UpdateAssetPrice(ctx context.Context, id int64, price decimal.Decimal) error
	DeleteAsset(ctx context.Context, id int64) error

	AppendPriceHistory(ctx context.Context, assetID int64, price decimal.Decimal, at time.Time) error
	ListPriceHistory(ctx context.Context, assetID int64, limit int) ([]models.PricePoint, error)
	DeletePriceHistoryByAsset(ctx context.Context, assetID int64) (int64, error)
}

// AccountStore is the registry of users, their holdings and the trade ledger
type AccountStore interface {
	CreateUser(ctx context.Context, u models.User) (models.User, error)
	GetUser(ctx context.Context, id int64) (models.User, error)
	// GetUserForUpdate loads the user and locks the row until the unit of work ends.
	GetUserForUpdate(ctx context.Context, id int64) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	// GetUserWithPortfolio loads the user, its holdings and each holding's asset in one round trip.
	GetUserWithPortfolio(ctx context.Context, id int64) (models.UserPortfolio, error)
	SetBalance(ctx context.Context, userID int64, balance decimal.Decimal) error

	// GetHoldingForUpdate returns models.ErrNotFound when the user never held the asset.
	GetHoldingForUpdate(ctx context.Context, userID, assetID int64) (models.Holding, error)
	// AddHolding adds delta (which may be negative) to the holding, creating it when absent.
	AddHolding(ctx context.Context, userID, assetID int64, delta decimal.Decimal) (models.Holding, error)
	DeleteHoldingsByUser(ctx context.Context, userID int64) (int64, error)
	DeleteHoldingsByAsset(ctx context.Context, assetID int64) (int64, error)

	AppendTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error)
	// ListTransactions returns the user's ledger oldest first.
	ListTransactions(ctx context.Context, userID int64) ([]models.Transaction, error)
	DeleteTransactionsByUser(ctx context.Context, userID int64) (int64, error)
	DeleteTransactionsByAsset(ctx context.Context, assetID int64) (int64, error)
}

// Tx is one unit of work over both stores
type Tx interface {
	AssetStore
	AccountStore
}

// Store opens units of work. fn's error (or panic) rolls back everything fn did.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}
