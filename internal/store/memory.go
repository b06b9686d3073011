package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/atharvakonge/paper-trading-simulator/internal/models"
	"github.com/shopspring/decimal"
)

// ===== In-memory adapter =====

type holdingKey struct{ userID, assetID int64 }

type memoryState struct {
	assets       map[int64]models.Asset
	history      []models.PricePoint
	users        map[int64]models.User
	holdings     map[holdingKey]models.Holding
	transactions []models.Transaction
	nextID       int64
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		assets:       make(map[int64]models.Asset, len(s.assets)),
		history:      append([]models.PricePoint(nil), s.history...),
		users:        make(map[int64]models.User, len(s.users)),
		holdings:     make(map[holdingKey]models.Holding, len(s.holdings)),
		transactions: append([]models.Transaction(nil), s.transactions...),
		nextID:       s.nextID,
	}
	for k, v := range s.assets {
		c.assets[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.holdings {
		c.holdings[k] = v
	}
	return c
}

// Memory is a serializable Store kept in process memory. Each unit of work runs against a
// private copy that replaces the shared state only when fn succeeds.
type Memory struct {
	mu    sync.Mutex
	state *memoryState
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		state: &memoryState{
			assets:   make(map[int64]models.Asset),
			users:    make(map[int64]models.User),
			holdings: make(map[holdingKey]models.Holding),
		},
		now: time.Now,
	}
}

func (m *Memory) InTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	if err := fn(&memoryTx{s: work, now: m.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *Memory) Close() error { return nil }

type memoryTx struct {
	s   *memoryState
	now func() time.Time
}

func (t *memoryTx) id() int64 {
	t.s.nextID++
	return t.s.nextID
}

/* ---- assets ---- */

func (t *memoryTx) ActiveFeedSymbols(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string)
	for _, a := range t.s.assets {
		if a.IsActive {
			out[a.Ticker] = a.FeedSymbol
		}
	}
	return out, nil
}

func (t *memoryTx) AssetIDsByTicker(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(t.s.assets))
	for _, a := range t.s.assets {
		out[a.Ticker] = a.ID
	}
	return out, nil
}

func (t *memoryTx) ListAssets(ctx context.Context, activeOnly bool) ([]models.Asset, error) {
	out := make([]models.Asset, 0, len(t.s.assets))
	for _, a := range t.s.assets {
		if activeOnly && !a.IsActive {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}

func (t *memoryTx) GetAsset(ctx context.Context, id int64) (models.Asset, error) {
	a, ok := t.s.assets[id]
	if !ok {
		return models.Asset{}, fmt.Errorf("asset %d: %w", id, models.ErrNotFound)
	}
	return a, nil
}

func (t *memoryTx) GetAssetByTicker(ctx context.Context, ticker string) (models.Asset, error) {
	for _, a := range t.s.assets {
		if a.Ticker == ticker {
			return a, nil
		}
	}
	return models.Asset{}, fmt.Errorf("asset %q: %w", ticker, models.ErrNotFound)
}

func (t *memoryTx) GetAssetByFeedSymbol(ctx context.Context, feedSymbol string) (models.Asset, error) {
	for _, a := range t.s.assets {
		if a.FeedSymbol == feedSymbol {
			return a, nil
		}
	}
	return models.Asset{}, fmt.Errorf("feed symbol %q: %w", feedSymbol, models.ErrNotFound)
}

func (t *memoryTx) checkAssetUnique(a models.Asset) error {
	for _, other := range t.s.assets {
		if other.ID == a.ID {
			continue
		}
		if other.Ticker == a.Ticker {
			return fmt.Errorf("ticker %q: %w", a.Ticker, models.ErrConflict)
		}
		if other.FeedSymbol == a.FeedSymbol {
			return fmt.Errorf("feed symbol %q: %w", a.FeedSymbol, models.ErrConflict)
		}
	}
	return nil
}

func (t *memoryTx) CreateAsset(ctx context.Context, a models.Asset) (models.Asset, error) {
	a.ID = 0
	if err := t.checkAssetUnique(a); err != nil {
		return models.Asset{}, err
	}
	a.ID = t.id()
	t.s.assets[a.ID] = a
	return a, nil
}

func (t *memoryTx) UpdateAsset(ctx context.Context, a models.Asset) (models.Asset, error) {
	if _, ok := t.s.assets[a.ID]; !ok {
		return models.Asset{}, fmt.Errorf("asset %d: %w", a.ID, models.ErrNotFound)
	}
	if err := t.checkAssetUnique(a); err != nil {
		return models.Asset{}, err
	}
	t.s.assets[a.ID] = a
	return a, nil
}

func (t *memoryTx) UpdateAssetPrice(ctx context.Context, id int64, price decimal.Decimal) error {
	a, ok := t.s.assets[id]
	if !ok {
		return fmt.Errorf("asset %d: %w", id, models.ErrNotFound)
	}
	a.CurrentPrice = price
	t.s.assets[id] = a
	return nil
}

func (t *memoryTx) DeleteAsset(ctx context.Context, id int64) error {
	if _, ok := t.s.assets[id]; !ok {
		return fmt.Errorf("asset %d: %w", id, models.ErrNotFound)
	}
	delete(t.s.assets, id)
	return nil
}

func (t *memoryTx) AppendPriceHistory(ctx context.Context, assetID int64, price decimal.Decimal, at time.Time) error {
	if _, ok := t.s.assets[assetID]; !ok {
		return fmt.Errorf("asset %d: %w", assetID, models.ErrNotFound)
	}
	t.s.history = append(t.s.history, models.PricePoint{AssetID: assetID, Price: price, Timestamp: at})
	return nil
}

func (t *memoryTx) ListPriceHistory(ctx context.Context, assetID int64, limit int) ([]models.PricePoint, error) {
	out := make([]models.PricePoint, 0)
	for i := len(t.s.history) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if t.s.history[i].AssetID == assetID {
			out = append(out, t.s.history[i])
		}
	}
	return out, nil
}

func (t *memoryTx) DeletePriceHistoryByAsset(ctx context.Context, assetID int64) (int64, error) {
	kept := t.s.history[:0]
	var n int64
	for _, p := range t.s.history {
		if p.AssetID == assetID {
			n++
			continue
		}
		kept = append(kept, p)
	}
	t.s.history = kept
	return n, nil
}

/* ---- accounts ---- */

func (t *memoryTx) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	for _, other := range t.s.users {
		if other.Username == u.Username {
			return models.User{}, fmt.Errorf("username %q: %w", u.Username, models.ErrConflict)
		}
		if other.Email == u.Email {
			return models.User{}, fmt.Errorf("email %q: %w", u.Email, models.ErrConflict)
		}
	}
	u.ID = t.id()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = t.now()
	}
	t.s.users[u.ID] = u
	return u, nil
}

func (t *memoryTx) GetUser(ctx context.Context, id int64) (models.User, error) {
	u, ok := t.s.users[id]
	if !ok {
		return models.User{}, fmt.Errorf("user %d: %w", id, models.ErrNotFound)
	}
	return u, nil
}

func (t *memoryTx) GetUserForUpdate(ctx context.Context, id int64) (models.User, error) {
	return t.GetUser(ctx, id)
}

func (t *memoryTx) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	for _, u := range t.s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, fmt.Errorf("user %q: %w", username, models.ErrNotFound)
}

func (t *memoryTx) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	for _, u := range t.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, fmt.Errorf("email %q: %w", email, models.ErrNotFound)
}

func (t *memoryTx) GetUserWithPortfolio(ctx context.Context, id int64) (models.UserPortfolio, error) {
	u, err := t.GetUser(ctx, id)
	if err != nil {
		return models.UserPortfolio{}, err
	}
	out := models.UserPortfolio{User: u, Items: make([]models.PortfolioItem, 0)}
	for k, h := range t.s.holdings {
		if k.userID != id {
			continue
		}
		out.Items = append(out.Items, models.PortfolioItem{Holding: h, Asset: t.s.assets[k.assetID]})
	}
	sort.Slice(out.Items, func(i, j int) bool { return out.Items[i].Asset.Ticker < out.Items[j].Asset.Ticker })
	return out, nil
}

func (t *memoryTx) SetBalance(ctx context.Context, userID int64, balance decimal.Decimal) error {
	u, ok := t.s.users[userID]
	if !ok {
		return fmt.Errorf("user %d: %w", userID, models.ErrNotFound)
	}
	u.Balance = balance
	t.s.users[userID] = u
	return nil
}

func (t *memoryTx) GetHoldingForUpdate(ctx context.Context, userID, assetID int64) (models.Holding, error) {
	h, ok := t.s.holdings[holdingKey{userID, assetID}]
	if !ok {
		return models.Holding{}, fmt.Errorf("holding %d/%d: %w", userID, assetID, models.ErrNotFound)
	}
	return h, nil
}

func (t *memoryTx) AddHolding(ctx context.Context, userID, assetID int64, delta decimal.Decimal) (models.Holding, error) {
	key := holdingKey{userID, assetID}
	h, ok := t.s.holdings[key]
	if !ok {
		h = models.Holding{ID: t.id(), UserID: userID, AssetID: assetID, Quantity: decimal.Zero}
	}
	h.Quantity = h.Quantity.Add(delta)
	if h.Quantity.IsNegative() {
		return models.Holding{}, fmt.Errorf("holding %d/%d would go negative: %w", userID, assetID, models.ErrInsufficientHolding)
	}
	h.UpdatedAt = t.now()
	t.s.holdings[key] = h
	return h, nil
}

func (t *memoryTx) DeleteHoldingsByUser(ctx context.Context, userID int64) (int64, error) {
	var n int64
	for k := range t.s.holdings {
		if k.userID == userID {
			delete(t.s.holdings, k)
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) DeleteHoldingsByAsset(ctx context.Context, assetID int64) (int64, error) {
	var n int64
	for k := range t.s.holdings {
		if k.assetID == assetID {
			delete(t.s.holdings, k)
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) AppendTransaction(ctx context.Context, tr models.Transaction) (models.Transaction, error) {
	a, ok := t.s.assets[tr.AssetID]
	if !ok {
		return models.Transaction{}, fmt.Errorf("asset %d: %w", tr.AssetID, models.ErrNotFound)
	}
	tr.ID = t.id()
	tr.Ticker = a.Ticker
	if tr.Timestamp.IsZero() {
		tr.Timestamp = t.now()
	}
	t.s.transactions = append(t.s.transactions, tr)
	return tr, nil
}

func (t *memoryTx) ListTransactions(ctx context.Context, userID int64) ([]models.Transaction, error) {
	out := make([]models.Transaction, 0)
	for _, tr := range t.s.transactions {
		if tr.UserID == userID {
			if a, ok := t.s.assets[tr.AssetID]; ok {
				tr.Ticker = a.Ticker
			}
			out = append(out, tr)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (t *memoryTx) deleteTransactions(match func(models.Transaction) bool) int64 {
	kept := t.s.transactions[:0]
	var n int64
	for _, tr := range t.s.transactions {
		if match(tr) {
			n++
			continue
		}
		kept = append(kept, tr)
	}
	t.s.transactions = kept
	return n
}

func (t *memoryTx) DeleteTransactionsByUser(ctx context.Context, userID int64) (int64, error) {
	return t.deleteTransactions(func(tr models.Transaction) bool { return tr.UserID == userID }), nil
}

func (t *memoryTx) DeleteTransactionsByAsset(ctx context.Context, assetID int64) (int64, error) {
	return t.deleteTransactions(func(tr models.Transaction) bool { return tr.AssetID == assetID }), nil
}
