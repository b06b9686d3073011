package trading

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/atharvakonge/paper-trading-simulator/internal/logger"
	"github.com/atharvakonge/paper-trading-simulator/internal/models"
	"github.com/atharvakonge/paper-trading-simulator/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func createUser(t testing.TB, st store.Store, name string, balance decimal.Decimal) int64 {
	t.Helper()
	var id int64
	err := st.InTx(context.Background(), func(tx store.Tx) error {
		u, err := tx.CreateUser(context.Background(), models.User{
			Username: name, Email: name + "@test.com", PasswordHash: "x",
			Balance: balance, Role: models.RoleUser, IsActive: true,
		})
		id = u.ID
		return err
	})
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return id
}

func createAsset(t testing.TB, st store.Store, ticker string, price decimal.Decimal) int64 {
	t.Helper()
	var id int64
	err := st.InTx(context.Background(), func(tx store.Tx) error {
		a, err := tx.CreateAsset(context.Background(), models.Asset{
			Ticker: ticker, Name: ticker, FeedSymbol: ticker + "USDT", CurrentPrice: price, IsActive: true,
		})
		id = a.ID
		return err
	})
	if err != nil {
		t.Fatalf("Failed to create test asset: %v", err)
	}
	return id
}

type snapshot struct {
	balance decimal.Decimal
	holding decimal.Decimal
	ledger  int
}

func snap(t *testing.T, st store.Store, userID, assetID int64) snapshot {
	t.Helper()
	var s snapshot
	require.NoError(t, st.InTx(context.Background(), func(tx store.Tx) error {
		u, err := tx.GetUser(context.Background(), userID)
		if err != nil {
			return err
		}
		s.balance = u.Balance
		h, err := tx.GetHoldingForUpdate(context.Background(), userID, assetID)
		switch {
		case models.IsNotFound(err):
		case err != nil:
			return err
		default:
			s.holding = h.Quantity
		}
		txs, err := tx.ListTransactions(context.Background(), userID)
		s.ledger = len(txs)
		return err
	}))
	return s
}

func TestExecuteTrade_BuySuccess(t *testing.T) {
	st := store.NewMemory()
	engine := NewEngine(st, logger.Discard())
	userID := createUser(t, st, "buyer", d("10000"))
	assetID := createAsset(t, st, "BTC", d("100"))

	tr, err := engine.ExecuteTrade(context.Background(), userID, "btc", d("1"), models.SideBuy)
	require.NoError(t, err)
	assert.Equal(t, "BTC", tr.Ticker)
	assert.Equal(t, models.SideBuy, tr.Type)
	assert.True(t, tr.PriceAtTransaction.Equal(d("100")))

	s := snap(t, st, userID, assetID)
	assert.True(t, s.balance.Equal(d("9900")), "balance %s", s.balance)
	assert.True(t, s.holding.Equal(d("1")))
	assert.Equal(t, 1, s.ledger)
}

func TestExecuteTrade_SellSuccess(t *testing.T) {
	st := store.NewMemory()
	engine := NewEngine(st, logger.Discard())
	userID := createUser(t, st, "seller", d("1000"))
	assetID := createAsset(t, st, "ETH", d("250.5"))

	_, err := engine.ExecuteTrade(context.Background(), userID, "ETH", d("2"), models.SideBuy)
	require.NoError(t, err)
	_, err = engine.ExecuteTrade(context.Background(), userID, "ETH", d("0.5"), models.SideSell)
	require.NoError(t, err)

	s := snap(t, st, userID, assetID)
	// 1000 - 501 + 125.25
	assert.True(t, s.balance.Equal(d("624.25")), "balance %s", s.balance)
	assert.True(t, s.holding.Equal(d("1.5")))
	assert.Equal(t, 2, s.ledger)
}

func TestExecuteTrade_InsufficientFundsNoMutation(t *testing.T) {
	st := store.NewMemory()
	engine := NewEngine(st, logger.Discard())
	userID := createUser(t, st, "pooruser", d("100"))
	assetID := createAsset(t, st, "BTC", d("150"))
	before := snap(t, st, userID, assetID)

	_, err := engine.ExecuteTrade(context.Background(), userID, "BTC", d("1"), models.SideBuy)
	require.ErrorIs(t, err, models.ErrInsufficientFunds)
	assert.Contains(t, err.Error(), "150.00")
	assert.Contains(t, err.Error(), "100.00")

	assert.Equal(t, before, snap(t, st, userID, assetID))
}

func TestExecuteTrade_SellMoreThanHeld(t *testing.T) {
	st := store.NewMemory()
	engine := NewEngine(st, logger.Discard())
	userID := createUser(t, st, "halfowner", d("1000"))
	assetID := createAsset(t, st, "BTC", d("100"))

	_, err := engine.ExecuteTrade(context.Background(), userID, "BTC", d("0.5"), models.SideBuy)
	require.NoError(t, err)
	before := snap(t, st, userID, assetID)

	_, err = engine.ExecuteTrade(context.Background(), userID, "BTC", d("1"), models.SideSell)
	require.ErrorIs(t, err, models.ErrInsufficientHolding)
	assert.Contains(t, err.Error(), "0.5")
	assert.Equal(t, before, snap(t, st, userID, assetID))
}

func TestExecuteTrade_SellWithoutHolding(t *testing.T) {
	st := store.NewMemory()
	engine := NewEngine(st, logger.Discard())
	userID := createUser(t, st, "nobody", d("1000"))
	createAsset(t, st, "BTC", d("100"))

	_, err := engine.ExecuteTrade(context.Background(), userID, "BTC", d("1"), models.SideSell)
	assert.ErrorIs(t, err, models.ErrInsufficientHolding)
}

func TestExecuteTrade_Validation(t *testing.T) {
	st := store.NewMemory()
	engine := NewEngine(st, logger.Discard())
	userID := createUser(t, st, "validator", d("1000"))
	createAsset(t, st, "BTC", d("100"))
	ctx := context.Background()

	tests := []struct {
		name    string
		userID  int64
		ticker  string
		amount  decimal.Decimal
		side    models.TradeSide
		wantErr error
	}{
		{"zero amount", userID, "BTC", decimal.Zero, models.SideBuy, models.ErrInvalidAmount},
		{"negative amount", userID, "BTC", d("-1"), models.SideBuy, models.ErrInvalidAmount},
		{"bad side", userID, "BTC", d("1"), models.TradeSide("HOLD"), models.ErrInvalidTradeType},
		{"unknown asset", userID, "DOGE", d("1"), models.SideBuy, models.ErrNotFound},
		{"unknown user", 9999, "BTC", d("1"), models.SideBuy, models.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.ExecuteTrade(ctx, tt.userID, tt.ticker, tt.amount, tt.side)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestExecuteTrade_AmountPrecision(t *testing.T) {
	st := store.NewMemory()
	engine := NewEngine(st, logger.Discard())
	userID := createUser(t, st, "dustbuyer", d("1000"))
	oneID := createAsset(t, st, "ONE", d("1"))
	createAsset(t, st, "DIME", d("0.1"))
	ctx := context.Background()
	before := snap(t, st, userID, oneID)

	_, err := engine.ExecuteTrade(ctx, userID, "ONE", d("0.000000004"), models.SideBuy)
	require.ErrorIs(t, err, models.ErrInvalidAmount)
	assert.Contains(t, err.Error(), "8 decimal places")

	// 0.00000001 * 0.1 rounds to a zero charge
	_, err = engine.ExecuteTrade(ctx, userID, "DIME", d("0.00000001"), models.SideBuy)
	require.ErrorIs(t, err, models.ErrInvalidAmount)

	assert.Equal(t, before, snap(t, st, userID, oneID))

	tr, err := engine.ExecuteTrade(ctx, userID, "ONE", d("0.000000010"), models.SideBuy)
	require.NoError(t, err)
	assert.True(t, tr.Amount.Equal(d("0.00000001")))

	s := snap(t, st, userID, oneID)
	assert.True(t, s.balance.Equal(d("999.99999999")), "balance %s", s.balance)
	assert.True(t, s.holding.Equal(d("0.00000001")))
}

type failingStore struct {
	store.Store
}

func (f failingStore) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return f.Store.InTx(ctx, func(tx store.Tx) error { return fn(failingTx{tx}) })
}

type failingTx struct {
	store.Tx
}

var errLedgerDown = errors.New("ledger write failed")

func (failingTx) AppendTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	return models.Transaction{}, errLedgerDown
}

func TestExecuteTrade_AtomicOnStoreFailure(t *testing.T) {
	st := store.NewMemory()
	userID := createUser(t, st, "atomic", d("10000"))
	assetID := createAsset(t, st, "BTC", d("100"))
	before := snap(t, st, userID, assetID)

	engine := NewEngine(failingStore{st}, logger.Discard())
	_, err := engine.ExecuteTrade(context.Background(), userID, "BTC", d("1"), models.SideBuy)
	require.ErrorIs(t, err, errLedgerDown)

	assert.Equal(t, before, snap(t, st, userID, assetID))
}

func TestWallet_ValuesHoldingsWithAverageCost(t *testing.T) {
	st := store.NewMemory()
	engine := NewEngine(st, logger.Discard())
	ctx := context.Background()
	userID := createUser(t, st, "walletuser", d("10000"))
	btcID := createAsset(t, st, "BTC", d("100"))
	createAsset(t, st, "ETH", d("50"))

	_, err := engine.ExecuteTrade(ctx, userID, "BTC", d("2"), models.SideBuy)
	require.NoError(t, err)
	setPrice(t, st, btcID, d("200"))
	_, err = engine.ExecuteTrade(ctx, userID, "BTC", d("1"), models.SideBuy)
	require.NoError(t, err)
	_, err = engine.ExecuteTrade(ctx, userID, "BTC", d("1"), models.SideSell)
	require.NoError(t, err)
	_, err = engine.ExecuteTrade(ctx, userID, "ETH", d("1"), models.SideBuy)
	require.NoError(t, err)
	_, err = engine.ExecuteTrade(ctx, userID, "ETH", d("1"), models.SideSell)
	require.NoError(t, err)

	w, err := engine.Wallet(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "walletuser", w.Username)
	// 10000 - 200 - 200 + 200 - 50 + 50
	assert.True(t, w.Balance.Equal(d("9800")), "balance %s", w.Balance)

	// ETH was sold flat and is not listed
	require.Len(t, w.Assets, 1)
	btc := w.Assets[0]
	assert.Equal(t, "BTC", btc.Ticker)
	assert.True(t, btc.Amount.Equal(d("2")))
	assert.True(t, btc.Value.Equal(d("400")))
	assert.Equal(t, "133.33", btc.AverageBuyPrice.StringFixed(2))
	assert.True(t, w.TotalValue.Equal(d("10200")), "total %s", w.TotalValue)
}

func TestWallet_UnknownUser(t *testing.T) {
	engine := NewEngine(store.NewMemory(), logger.Discard())
	_, err := engine.Wallet(context.Background(), 42)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func setPrice(t *testing.T, st store.Store, assetID int64, price decimal.Decimal) {
	t.Helper()
	require.NoError(t, st.InTx(context.Background(), func(tx store.Tx) error {
		return tx.UpdateAssetPrice(context.Background(), assetID, price)
	}))
}

func TestResetAccount_Idempotent(t *testing.T) {
	st := store.NewMemory()
	engine := NewEngine(st, logger.Discard())
	ctx := context.Background()
	userID := createUser(t, st, "resetter", models.InitialBalance)
	assetID := createAsset(t, st, "BTC", d("100"))
	createAsset(t, st, "ETH", d("10"))

	_, err := engine.ExecuteTrade(ctx, userID, "BTC", d("3"), models.SideBuy)
	require.NoError(t, err)
	_, err = engine.ExecuteTrade(ctx, userID, "ETH", d("1"), models.SideBuy)
	require.NoError(t, err)
	_, err = engine.ExecuteTrade(ctx, userID, "BTC", d("1"), models.SideSell)
	require.NoError(t, err)

	first, err := engine.ResetAccount(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, first.DeletedHoldings)
	assert.EqualValues(t, 3, first.DeletedTransactions)
	assert.True(t, first.NewBalance.Equal(models.InitialBalance))

	second, err := engine.ResetAccount(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, second.DeletedHoldings)
	assert.EqualValues(t, 0, second.DeletedTransactions)
	assert.True(t, second.NewBalance.Equal(models.InitialBalance))

	s := snap(t, st, userID, assetID)
	assert.True(t, s.balance.Equal(models.InitialBalance))
	assert.True(t, s.holding.IsZero())
	assert.Zero(t, s.ledger)

	_, err = engine.ResetAccount(ctx, 777)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestHistory_NewestFirst(t *testing.T) {
	st := store.NewMemory()
	engine := NewEngine(st, logger.Discard())
	ctx := context.Background()
	userID := createUser(t, st, "historian", d("10000"))
	createAsset(t, st, "BTC", d("100"))

	for i := 1; i <= 3; i++ {
		_, err := engine.ExecuteTrade(ctx, userID, "BTC", decimal.NewFromInt(int64(i)), models.SideBuy)
		require.NoError(t, err)
	}

	all, err := engine.History(ctx, userID, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "3", all[0].Amount.String())
	assert.Equal(t, "1", all[2].Amount.String())

	limited, err := engine.History(ctx, userID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestConcurrentTrades_SameUser(t *testing.T) {
	st := store.NewMemory()
	engine := NewEngine(st, logger.Discard())
	userID := createUser(t, st, "concurrent", d("10000"))
	assetID := createAsset(t, st, "BTC", d("150"))

	// 20 buys of 1 @150 = 3000
	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.ExecuteTrade(context.Background(), userID, "BTC", d("1"), models.SideBuy); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("trade failed: %v", err)
	}

	s := snap(t, st, userID, assetID)
	assert.True(t, s.balance.Equal(d("7000")), "balance %s", s.balance)
	assert.True(t, s.holding.Equal(d("20")))
	assert.Equal(t, 20, s.ledger)
}

func TestConcurrentTrades_Overdraw(t *testing.T) {
	st := store.NewMemory()
	engine := NewEngine(st, logger.Discard())
	userID := createUser(t, st, "overdraw", d("1000"))
	assetID := createAsset(t, st, "BTC", d("100"))

	// only 10 of 15 can succeed
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, rejected := 0, 0
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.ExecuteTrade(context.Background(), userID, "BTC", d("1"), models.SideBuy)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if errors.Is(err, models.ErrInsufficientFunds) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assert.Equal(t, 5, rejected)
	s := snap(t, st, userID, assetID)
	assert.True(t, s.balance.IsZero())
	assert.True(t, s.holding.Equal(d("10")))
}

func TestConcurrentTrades_DifferentUsers(t *testing.T) {
	st := store.NewMemory()
	engine := NewEngine(st, logger.Discard())
	assetID := createAsset(t, st, "BTC", d("100"))

	users := make([]int64, 10)
	for i := range users {
		users[i] = createUser(t, st, fmt.Sprintf("user%d", i), d("1000"))
	}

	var wg sync.WaitGroup
	for _, id := range users {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := engine.ExecuteTrade(context.Background(), id, "BTC", d("5"), models.SideBuy)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	for _, id := range users {
		s := snap(t, st, id, assetID)
		assert.True(t, s.balance.Equal(d("500")))
		assert.True(t, s.holding.Equal(d("5")))
	}
}

func BenchmarkExecuteTrade(b *testing.B) {
	st := store.NewMemory()
	engine := NewEngine(st, logger.Discard())
	userID := createUser(b, st, "bench", models.InitialBalance)
	createAsset(b, st, "BTC", d("1"))
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// keep the ledger short, the in-memory store copies it per transaction
		if i%500 == 0 {
			b.StopTimer()
			if _, err := engine.ResetAccount(ctx, userID); err != nil {
				b.Fatal(err)
			}
			b.StartTimer()
		}
		if _, err := engine.ExecuteTrade(ctx, userID, "BTC", d("1"), models.SideBuy); err != nil {
			b.Fatal(err)
		}
	}
}
