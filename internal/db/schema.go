package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Statements are idempotent so Migrate can run on every boot.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id              BIGSERIAL PRIMARY KEY,
		username        VARCHAR(50)   NOT NULL UNIQUE,
		email           VARCHAR(100)  NOT NULL UNIQUE,
		hashed_password VARCHAR(255)  NOT NULL,
		balance         NUMERIC(20,8) NOT NULL DEFAULT 100000.00 CHECK (balance >= 0),
		role            VARCHAR(20)   NOT NULL DEFAULT 'user',
		is_active       BOOLEAN       NOT NULL DEFAULT TRUE,
		created_at      TIMESTAMPTZ   NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS assets (
		id            BIGSERIAL PRIMARY KEY,
		ticker        VARCHAR(10)   NOT NULL UNIQUE,
		name          VARCHAR(50)   NOT NULL,
		feed_symbol   VARCHAR(20)   NOT NULL UNIQUE,
		current_price NUMERIC(18,8) NOT NULL DEFAULT 0 CHECK (current_price >= 0),
		is_active     BOOLEAN       NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS price_history (
		id        BIGSERIAL PRIMARY KEY,
		asset_id  BIGINT        NOT NULL REFERENCES assets(id),
		price     NUMERIC(18,8) NOT NULL,
		timestamp TIMESTAMPTZ   NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_price_history_asset_ts ON price_history (asset_id, timestamp DESC)`,
	`CREATE TABLE IF NOT EXISTS portfolios (
		id         BIGSERIAL PRIMARY KEY,
		user_id    BIGINT        NOT NULL REFERENCES users(id),
		asset_id   BIGINT        NOT NULL REFERENCES assets(id),
		quantity   NUMERIC(18,8) NOT NULL DEFAULT 0 CHECK (quantity >= 0),
		updated_at TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
		CONSTRAINT uq_user_asset UNIQUE (user_id, asset_id)
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id                   BIGSERIAL PRIMARY KEY,
		user_id              BIGINT        NOT NULL REFERENCES users(id),
		asset_id             BIGINT        NOT NULL REFERENCES assets(id),
		amount               NUMERIC(18,8) NOT NULL CHECK (amount > 0),
		price_at_transaction NUMERIC(18,8) NOT NULL,
		type                 VARCHAR(10)   NOT NULL CHECK (type IN ('BUY', 'SELL')),
		timestamp            TIMESTAMPTZ   NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_user_ts ON transactions (user_id, timestamp)`,
}

// Migrate creates the schema inside one transaction
func Migrate(ctx context.Context, conn *sql.DB) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i, err)
		}
	}
	return tx.Commit()
}
