package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InitialBalance is the USD balance every account starts with and returns to on reset.
var InitialBalance = decimal.RequireFromString("100000.00")

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User represents a trading account
type User struct {
	ID           int64           `json:"id"`
	Username     string          `json:"username"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"-"`
	Balance      decimal.Decimal `json:"balance"`
	Role         string          `json:"role"`
	IsActive     bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// Holding represents the quantity of one asset owned by a user
type Holding struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	AssetID   int64           `json:"asset_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// PortfolioItem is a holding loaded together with its asset
type PortfolioItem struct {
	Holding Holding
	Asset   Asset
}

// UserPortfolio is a user eager-loaded with holdings and their assets
type UserPortfolio struct {
	User  User
	Items []PortfolioItem
}

// TradeSide is the direction of a trade
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

func (s TradeSide) Valid() bool {
	return s == SideBuy || s == SideSell
}

func ParseTradeSide(s string) (TradeSide, error) {
	side := TradeSide(strings.ToUpper(strings.TrimSpace(s)))
	if !side.Valid() {
		return "", fmt.Errorf("%w: %q (expected BUY/SELL)", ErrInvalidTradeType, s)
	}
	return side, nil
}

// Transaction is an immutable ledger entry
type Transaction struct {
	ID                 int64           `json:"id"`
	UserID             int64           `json:"user_id"`
	AssetID            int64           `json:"asset_id"`
	Ticker             string          `json:"ticker"`
	Amount             decimal.Decimal `json:"amount"`
	PriceAtTransaction decimal.Decimal `json:"price_at_transaction"`
	Type               TradeSide       `json:"type"`
	Timestamp          time.Time       `json:"timestamp"`
}

// TradeRequest - what client sends to buy or sell
type TradeRequest struct {
	AssetTicker string          `json:"asset_ticker" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
}

// WalletAsset is one valued holding in a wallet
type WalletAsset struct {
	Ticker          string          `json:"ticker"`
	Name            string          `json:"name"`
	Amount          decimal.Decimal `json:"amount"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	Value           decimal.Decimal `json:"value"`
	AverageBuyPrice decimal.Decimal `json:"average_buy_price"`
	IsActive        bool            `json:"is_active"`
}

// Wallet - what we send back for the wallet endpoint
type Wallet struct {
	Username   string          `json:"username"`
	Balance    decimal.Decimal `json:"balance"`
	Assets     []WalletAsset   `json:"assets"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// ResetResult summarises an account reset
type ResetResult struct {
	DeletedHoldings     int64           `json:"deleted_portfolio_items"`
	DeletedTransactions int64           `json:"deleted_transactions"`
	NewBalance          decimal.Decimal `json:"new_balance"`
}

// RegisterRequest - what client sends to create an account
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}
