package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/atharvakonge/paper-trading-simulator/internal/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// ===== PostgreSQL adapter =====

const (
	pqUniqueViolation = "23505"
	pqCheckViolation  = "23514"
)

// Postgres implements Store on top of database/sql and lib/pq
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) InTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	sqlTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	if err := fn(&pgTx{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

func (p *Postgres) Close() error { return p.db.Close() }

type pgTx struct {
	tx *sql.Tx
}

// translate maps driver errors onto the model error taxonomy
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return fmt.Errorf("%s (%s): %w", what, pqErr.Constraint, models.ErrConflict)
		case pqCheckViolation:
			if pqErr.Table == "portfolios" {
				return fmt.Errorf("%s: %w", what, models.ErrInsufficientHolding)
			}
			if pqErr.Table == "users" {
				return fmt.Errorf("%s: %w", what, models.ErrInsufficientFunds)
			}
			if pqErr.Table == "transactions" {
				return fmt.Errorf("%s: %w", what, models.ErrInvalidAmount)
			}
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

// exec runs a statement and returns the number of rows it touched
func (t *pgTx) exec(ctx context.Context, what, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, translate(err, what)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, translate(err, what)
	}
	return n, nil
}

/* ---- assets ---- */

const assetColumns = `id, ticker, name, feed_symbol, current_price, is_active`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (models.Asset, error) {
	var a models.Asset
	err := row.Scan(&a.ID, &a.Ticker, &a.Name, &a.FeedSymbol, &a.CurrentPrice, &a.IsActive)
	return a, err
}

func (t *pgTx) ActiveFeedSymbols(ctx context.Context) (map[string]string, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT ticker, feed_symbol FROM assets WHERE is_active = TRUE`)
	if err != nil {
		return nil, translate(err, "active feed symbols")
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var ticker, symbol string
		if err := rows.Scan(&ticker, &symbol); err != nil {
			return nil, translate(err, "scan feed symbol")
		}
		out[ticker] = symbol
	}
	return out, translate(rows.Err(), "active feed symbols")
}

func (t *pgTx) AssetIDsByTicker(ctx context.Context) (map[string]int64, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT ticker, id FROM assets`)
	if err != nil {
		return nil, translate(err, "asset ids")
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var ticker string
		var id int64
		if err := rows.Scan(&ticker, &id); err != nil {
			return nil, translate(err, "scan asset id")
		}
		out[ticker] = id
	}
	return out, translate(rows.Err(), "asset ids")
}

func (t *pgTx) ListAssets(ctx context.Context, activeOnly bool) ([]models.Asset, error) {
	q := `SELECT ` + assetColumns + ` FROM assets`
	if activeOnly {
		q += ` WHERE is_active = TRUE`
	}
	q += ` ORDER BY ticker`

	rows, err := t.tx.QueryContext(ctx, q)
	if err != nil {
		return nil, translate(err, "list assets")
	}
	defer rows.Close()

	out := make([]models.Asset, 0)
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, translate(err, "scan asset")
		}
		out = append(out, a)
	}
	return out, translate(rows.Err(), "list assets")
}

func (t *pgTx) GetAsset(ctx context.Context, id int64) (models.Asset, error) {
	a, err := scanAsset(t.tx.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = $1`, id))
	return a, translate(err, fmt.Sprintf("asset %d", id))
}

func (t *pgTx) GetAssetByTicker(ctx context.Context, ticker string) (models.Asset, error) {
	a, err := scanAsset(t.tx.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE ticker = $1`, ticker))
	return a, translate(err, fmt.Sprintf("asset %q", ticker))
}

func (t *pgTx) GetAssetByFeedSymbol(ctx context.Context, feedSymbol string) (models.Asset, error) {
	a, err := scanAsset(t.tx.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE feed_symbol = $1`, feedSymbol))
	return a, translate(err, fmt.Sprintf("feed symbol %q", feedSymbol))
}

func (t *pgTx) CreateAsset(ctx context.Context, a models.Asset) (models.Asset, error) {
	out, err := scanAsset(t.tx.QueryRowContext(ctx, `
        INSERT INTO assets (ticker, name, feed_symbol, current_price, is_active)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING `+assetColumns,
		a.Ticker, a.Name, a.FeedSymbol, a.CurrentPrice, a.IsActive))
	return out, translate(err, "create asset")
}

func (t *pgTx) UpdateAsset(ctx context.Context, a models.Asset) (models.Asset, error) {
	out, err := scanAsset(t.tx.QueryRowContext(ctx, `
        UPDATE assets
        SET name = $2, feed_symbol = $3, current_price = $4, is_active = $5
        WHERE id = $1
        RETURNING `+assetColumns,
		a.ID, a.Name, a.FeedSymbol, a.CurrentPrice, a.IsActive))
	return out, translate(err, fmt.Sprintf("update asset %d", a.ID))
}

func (t *pgTx) UpdateAssetPrice(ctx context.Context, id int64, price decimal.Decimal) error {
	n, err := t.exec(ctx, "update price", `UPDATE assets SET current_price = $1 WHERE id = $2`, price, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("asset %d: %w", id, models.ErrNotFound)
	}
	return nil
}

func (t *pgTx) DeleteAsset(ctx context.Context, id int64) error {
	n, err := t.exec(ctx, "delete asset", `DELETE FROM assets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("asset %d: %w", id, models.ErrNotFound)
	}
	return nil
}

func (t *pgTx) AppendPriceHistory(ctx context.Context, assetID int64, price decimal.Decimal, at time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO price_history (asset_id, price, timestamp) VALUES ($1, $2, $3)`,
		assetID, price, at)
	return translate(err, "append price history")
}

func (t *pgTx) ListPriceHistory(ctx context.Context, assetID int64, limit int) ([]models.PricePoint, error) {
	rows, err := t.tx.QueryContext(ctx, `
        SELECT asset_id, price, timestamp
        FROM price_history
        WHERE asset_id = $1
        ORDER BY timestamp DESC, id DESC
        LIMIT $2
    `, assetID, limit)
	if err != nil {
		return nil, translate(err, "list price history")
	}
	defer rows.Close()

	out := make([]models.PricePoint, 0)
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.AssetID, &p.Price, &p.Timestamp); err != nil {
			return nil, translate(err, "scan price point")
		}
		out = append(out, p)
	}
	return out, translate(rows.Err(), "list price history")
}

func (t *pgTx) DeletePriceHistoryByAsset(ctx context.Context, assetID int64) (int64, error) {
	return t.exec(ctx, "delete price history", `DELETE FROM price_history WHERE asset_id = $1`, assetID)
}

/* ---- accounts ---- */

const userColumns = `id, username, email, hashed_password, balance, role, is_active, created_at`

func scanUser(row rowScanner) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Balance, &u.Role, &u.IsActive, &u.CreatedAt)
	return u, err
}

func (t *pgTx) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	out, err := scanUser(t.tx.QueryRowContext(ctx, `
        INSERT INTO users (username, email, hashed_password, balance, role, is_active)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING `+userColumns,
		u.Username, u.Email, u.PasswordHash, u.Balance, u.Role, u.IsActive))
	return out, translate(err, "create user")
}

func (t *pgTx) GetUser(ctx context.Context, id int64) (models.User, error) {
	u, err := scanUser(t.tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	return u, translate(err, fmt.Sprintf("user %d", id))
}

func (t *pgTx) GetUserForUpdate(ctx context.Context, id int64) (models.User, error) {
	u, err := scanUser(t.tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
	return u, translate(err, fmt.Sprintf("user %d", id))
}

func (t *pgTx) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	u, err := scanUser(t.tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	return u, translate(err, fmt.Sprintf("user %q", username))
}

func (t *pgTx) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	u, err := scanUser(t.tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	return u, translate(err, fmt.Sprintf("email %q", email))
}

func (t *pgTx) GetUserWithPortfolio(ctx context.Context, id int64) (models.UserPortfolio, error) {
	rows, err := t.tx.QueryContext(ctx, `
        SELECT u.id, u.username, u.email, u.hashed_password, u.balance, u.role, u.is_active, u.created_at,
               p.id, p.asset_id, p.quantity, p.updated_at,
               a.ticker, a.name, a.feed_symbol, a.current_price, a.is_active
        FROM users u
        LEFT JOIN portfolios p ON p.user_id = u.id
        LEFT JOIN assets a ON a.id = p.asset_id
        WHERE u.id = $1
        ORDER BY a.ticker
    `, id)
	if err != nil {
		return models.UserPortfolio{}, translate(err, "load portfolio")
	}
	defer rows.Close()

	var out models.UserPortfolio
	found := false
	for rows.Next() {
		var (
			u           models.User
			holdingID   sql.NullInt64
			assetID     sql.NullInt64
			quantity    decimal.NullDecimal
			updatedAt   sql.NullTime
			ticker      sql.NullString
			name        sql.NullString
			feedSymbol  sql.NullString
			price       decimal.NullDecimal
			assetActive sql.NullBool
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Balance, &u.Role, &u.IsActive, &u.CreatedAt,
			&holdingID, &assetID, &quantity, &updatedAt,
			&ticker, &name, &feedSymbol, &price, &assetActive); err != nil {
			return models.UserPortfolio{}, translate(err, "scan portfolio")
		}
		if !found {
			out.User = u
			out.Items = make([]models.PortfolioItem, 0)
			found = true
		}
		if !holdingID.Valid {
			continue
		}
		out.Items = append(out.Items, models.PortfolioItem{
			Holding: models.Holding{
				ID:        holdingID.Int64,
				UserID:    u.ID,
				AssetID:   assetID.Int64,
				Quantity:  quantity.Decimal,
				UpdatedAt: updatedAt.Time,
			},
			Asset: models.Asset{
				ID:           assetID.Int64,
				Ticker:       ticker.String,
				Name:         name.String,
				FeedSymbol:   feedSymbol.String,
				CurrentPrice: price.Decimal,
				IsActive:     assetActive.Bool,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return models.UserPortfolio{}, translate(err, "load portfolio")
	}
	if !found {
		return models.UserPortfolio{}, fmt.Errorf("user %d: %w", id, models.ErrNotFound)
	}
	return out, nil
}

func (t *pgTx) SetBalance(ctx context.Context, userID int64, balance decimal.Decimal) error {
	n, err := t.exec(ctx, "set balance", `UPDATE users SET balance = $1 WHERE id = $2`, balance, userID)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("user %d: %w", userID, models.ErrNotFound)
	}
	return nil
}

func (t *pgTx) GetHoldingForUpdate(ctx context.Context, userID, assetID int64) (models.Holding, error) {
	var h models.Holding
	err := t.tx.QueryRowContext(ctx, `
        SELECT id, user_id, asset_id, quantity, updated_at
        FROM portfolios
        WHERE user_id = $1 AND asset_id = $2
        FOR UPDATE
    `, userID, assetID).Scan(&h.ID, &h.UserID, &h.AssetID, &h.Quantity, &h.UpdatedAt)
	return h, translate(err, fmt.Sprintf("holding %d/%d", userID, assetID))
}

func (t *pgTx) AddHolding(ctx context.Context, userID, assetID int64, delta decimal.Decimal) (models.Holding, error) {
	var h models.Holding
	err := t.tx.QueryRowContext(ctx, `
        INSERT INTO portfolios (user_id, asset_id, quantity)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_id, asset_id)
        DO UPDATE SET
            quantity = portfolios.quantity + EXCLUDED.quantity,
            updated_at = NOW()
        RETURNING id, user_id, asset_id, quantity, updated_at
    `, userID, assetID, delta).Scan(&h.ID, &h.UserID, &h.AssetID, &h.Quantity, &h.UpdatedAt)
	return h, translate(err, fmt.Sprintf("holding %d/%d", userID, assetID))
}

func (t *pgTx) DeleteHoldingsByUser(ctx context.Context, userID int64) (int64, error) {
	return t.exec(ctx, "delete holdings", `DELETE FROM portfolios WHERE user_id = $1`, userID)
}

func (t *pgTx) DeleteHoldingsByAsset(ctx context.Context, assetID int64) (int64, error) {
	return t.exec(ctx, "delete holdings", `DELETE FROM portfolios WHERE asset_id = $1`, assetID)
}

func (t *pgTx) AppendTransaction(ctx context.Context, tr models.Transaction) (models.Transaction, error) {
	err := t.tx.QueryRowContext(ctx, `
        WITH ins AS (
            INSERT INTO transactions (user_id, asset_id, amount, price_at_transaction, type, timestamp)
            VALUES ($1, $2, $3, $4, $5, $6)
            RETURNING id, asset_id
        )
        SELECT ins.id, a.ticker FROM ins JOIN assets a ON a.id = ins.asset_id
    `, tr.UserID, tr.AssetID, tr.Amount, tr.PriceAtTransaction, string(tr.Type), tr.Timestamp).Scan(&tr.ID, &tr.Ticker)
	return tr, translate(err, "append transaction")
}

func (t *pgTx) ListTransactions(ctx context.Context, userID int64) ([]models.Transaction, error) {
	rows, err := t.tx.QueryContext(ctx, `
        SELECT t.id, t.user_id, t.asset_id, a.ticker, t.amount, t.price_at_transaction, t.type, t.timestamp
        FROM transactions t
        JOIN assets a ON a.id = t.asset_id
        WHERE t.user_id = $1
        ORDER BY t.timestamp, t.id
    `, userID)
	if err != nil {
		return nil, translate(err, "list transactions")
	}
	defer rows.Close()

	out := make([]models.Transaction, 0)
	for rows.Next() {
		var tr models.Transaction
		var side string
		if err := rows.Scan(&tr.ID, &tr.UserID, &tr.AssetID, &tr.Ticker, &tr.Amount, &tr.PriceAtTransaction, &side, &tr.Timestamp); err != nil {
			return nil, translate(err, "scan transaction")
		}
		tr.Type = models.TradeSide(side)
		out = append(out, tr)
	}
	return out, translate(rows.Err(), "list transactions")
}

func (t *pgTx) DeleteTransactionsByUser(ctx context.Context, userID int64) (int64, error) {
	return t.exec(ctx, "delete transactions", `DELETE FROM transactions WHERE user_id = $1`, userID)
}

func (t *pgTx) DeleteTransactionsByAsset(ctx context.Context, assetID int64) (int64, error) {
	return t.exec(ctx, "delete transactions", `DELETE FROM transactions WHERE asset_id = $1`, assetID)
}
