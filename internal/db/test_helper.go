package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/atharvakonge/paper-trading-simulator/internal/config"
	"github.com/shopspring/decimal"
)

// SetupTestDB connects to TEST_DATABASE_URL and migrates it, skipping the test when unset
func SetupTestDB(t testing.TB) *sql.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping Postgres integration test")
	}

	conn, err := Open(context.Background(), config.DBConfig{
		URL:             dsn,
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := Migrate(context.Background(), conn); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		CleanupTestDB(t, conn)
		conn.Close()
	})
	return conn
}

// CleanupTestDB deletes all rows in dependency order
func CleanupTestDB(t testing.TB, conn *sql.DB) {
	tables := []string{"transactions", "portfolios", "price_history", "assets", "users"}
	for _, table := range tables {
		if _, err := conn.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			t.Logf("Warning: Failed to cleanup table %s: %v", table, err)
		}
	}
}

// CreateTestUser creates a test user and returns user ID
func CreateTestUser(t testing.TB, conn *sql.DB, username string, balance decimal.Decimal) int64 {
	t.Helper()

	var userID int64
	uniqueUsername := fmt.Sprintf("%s_%d", username, time.Now().UnixNano())

	err := conn.QueryRow(
		"INSERT INTO users (username, email, hashed_password, balance) VALUES ($1, $2, 'x', $3) RETURNING id",
		uniqueUsername, uniqueUsername+"@test.com", balance,
	).Scan(&userID)
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return userID
}

// CreateTestAsset creates an active test asset and returns its ID
func CreateTestAsset(t testing.TB, conn *sql.DB, ticker string, price decimal.Decimal) int64 {
	t.Helper()

	var assetID int64
	err := conn.QueryRow(
		"INSERT INTO assets (ticker, name, feed_symbol, current_price) VALUES ($1, $1, $2, $3) RETURNING id",
		ticker, ticker+"USDT", price,
	).Scan(&assetID)
	if err != nil {
		t.Fatalf("Failed to create test asset: %v", err)
	}
	return assetID
}
