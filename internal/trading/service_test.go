package trading

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"investtrack/internal/engine"
	"investtrack/internal/repository"
	"investtrack/types"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// memStore is an in-memory tradingStore double keyed the way the database is.
type memStore struct {
	portfolios   map[int64]*types.Portfolio
	assets       map[int64]*types.Asset
	positions    map[string]*types.Position
	transactions []types.Transaction
	nextId       int64
}

func newMemStore() *memStore {
	return &memStore{
		portfolios: make(map[int64]*types.Portfolio),
		assets:     make(map[int64]*types.Asset),
		positions:  make(map[string]*types.Position),
		nextId:     1,
	}
}

func posKey(portfolioId, assetId int64) string {
	return fmt.Sprintf("%d/%d", portfolioId, assetId)
}

func (m *memStore) GetPortfolio(_ context.Context, id int64) (*types.Portfolio, error) {
	p, ok := m.portfolios[id]
	if !ok {
		return nil, repository.ErrPortfolioNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) UpdateCash(_ context.Context, id int64, availableCash decimal.Decimal) error {
	p, ok := m.portfolios[id]
	if !ok {
		return repository.ErrPortfolioNotFound
	}
	p.AvailableCash = availableCash
	return nil
}

func (m *memStore) GetAsset(_ context.Context, id int64) (*types.Asset, error) {
	a, ok := m.assets[id]
	if !ok {
		return nil, repository.ErrAssetNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) GetPosition(_ context.Context, portfolioId, assetId int64) (*types.Position, error) {
	p, ok := m.positions[posKey(portfolioId, assetId)]
	if !ok {
		return nil, repository.ErrPositionNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) SavePosition(_ context.Context, pos *types.Position) (int64, error) {
	key := posKey(pos.PortfolioId, pos.AssetId)
	if existing, ok := m.positions[key]; ok {
		pos.Id = existing.Id
	} else {
		pos.Id = m.nextId
		m.nextId++
	}
	cp := *pos
	m.positions[key] = &cp
	return cp.Id, nil
}

func (m *memStore) DeletePosition(_ context.Context, portfolioId, assetId int64) error {
	key := posKey(portfolioId, assetId)
	if _, ok := m.positions[key]; !ok {
		return repository.ErrPositionNotFound
	}
	delete(m.positions, key)
	return nil
}

func (m *memStore) CountPositions(_ context.Context, portfolioId int64) (int64, error) {
	var count int64
	for _, p := range m.positions {
		if p.PortfolioId == portfolioId {
			count++
		}
	}
	return count, nil
}

func (m *memStore) RecordTransaction(_ context.Context, tx *types.Transaction) error {
	tx.Id = m.nextId
	m.nextId++
	m.transactions = append(m.transactions, *tx)
	return nil
}

func testSetup() (*Service, *memStore) {
	store := newMemStore()
	store.portfolios[1] = &types.Portfolio{Id: 1, Name: "Growth", AvailableCash: d("10000")}
	store.assets[10] = &types.Asset{Id: 10, Ticker: "AAPL", Type: types.AssetTypeStock, CurrentPrice: d("180"), Active: true}
	store.assets[11] = &types.Asset{Id: 11, Ticker: "DEAD", Type: types.AssetTypeStock, Active: false}
	return NewService(store, 0, zerolog.Nop()), store
}

func TestBuyAssetOpensPosition(t *testing.T) {
	svc, store := testSetup()

	pos, err := svc.BuyAsset(context.Background(), 1, 10, d("5"), d("100"))
	require.NoError(t, err)

	assert.True(t, pos.Quantity.Equal(d("5")))
	assert.True(t, pos.AveragePrice.Equal(d("100")))
	assert.Equal(t, "AAPL", pos.Ticker)
	assert.True(t, store.portfolios[1].AvailableCash.Equal(d("9500")))

	require.Len(t, store.transactions, 1)
	tx := store.transactions[0]
	assert.Equal(t, types.TransactionTypeBuy, tx.Type)
	assert.True(t, tx.TotalAmount.Equal(d("500")))
	assert.NotEmpty(t, tx.Reference)
}

func TestBuyAssetAveragesExistingPosition(t *testing.T) {
	svc, store := testSetup()
	ctx := context.Background()

	_, err := svc.BuyAsset(ctx, 1, 10, d("5"), d("100"))
	require.NoError(t, err)
	pos, err := svc.BuyAsset(ctx, 1, 10, d("5"), d("200"))
	require.NoError(t, err)

	assert.True(t, pos.Quantity.Equal(d("10")))
	assert.True(t, pos.AveragePrice.Equal(d("150")))
	assert.True(t, store.portfolios[1].AvailableCash.Equal(d("8500")))
	assert.Len(t, store.transactions, 2)
}

func TestBuyAssetInsufficientCash(t *testing.T) {
	svc, store := testSetup()

	_, err := svc.BuyAsset(context.Background(), 1, 10, d("200"), d("100"))
	require.ErrorIs(t, err, engine.ErrInsufficientCash)

	assert.True(t, store.portfolios[1].AvailableCash.Equal(d("10000")))
	assert.Empty(t, store.transactions)
}

func TestBuyAssetInactiveAsset(t *testing.T) {
	svc, _ := testSetup()

	_, err := svc.BuyAsset(context.Background(), 1, 11, d("1"), d("10"))
	assert.ErrorIs(t, err, ErrInactiveAsset)
}

func TestBuyAssetPositionLimit(t *testing.T) {
	store := newMemStore()
	store.portfolios[1] = &types.Portfolio{Id: 1, AvailableCash: d("10000")}
	store.assets[10] = &types.Asset{Id: 10, Ticker: "AAPL", Active: true}
	store.assets[20] = &types.Asset{Id: 20, Ticker: "MSFT", Active: true}
	svc := NewService(store, 1, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.BuyAsset(ctx, 1, 10, d("1"), d("10"))
	require.NoError(t, err)
	_, err = svc.BuyAsset(ctx, 1, 20, d("1"), d("10"))
	assert.ErrorIs(t, err, ErrTooManyPositions)

	// Adding to the existing holding is still allowed.
	_, err = svc.BuyAsset(ctx, 1, 10, d("1"), d("10"))
	assert.NoError(t, err)
}

func TestSellAssetReducesPosition(t *testing.T) {
	svc, store := testSetup()
	ctx := context.Background()

	_, err := svc.BuyAsset(ctx, 1, 10, d("10"), d("100"))
	require.NoError(t, err)

	pos, err := svc.SellAsset(ctx, 1, 10, d("4"), d("120"))
	require.NoError(t, err)

	assert.True(t, pos.Quantity.Equal(d("6")))
	assert.True(t, pos.AveragePrice.Equal(d("100")), "cost basis preserved")
	// 10000 - 1000 + 480
	assert.True(t, store.portfolios[1].AvailableCash.Equal(d("9480")))
}

func TestSellAssetClosesPosition(t *testing.T) {
	svc, store := testSetup()
	ctx := context.Background()

	_, err := svc.BuyAsset(ctx, 1, 10, d("10"), d("100"))
	require.NoError(t, err)

	pos, err := svc.SellAsset(ctx, 1, 10, d("10"), d("90"))
	require.NoError(t, err)

	assert.Nil(t, pos)
	assert.Empty(t, store.positions)
	assert.True(t, store.portfolios[1].AvailableCash.Equal(d("9900")))
}

func TestSellAssetInsufficientQuantity(t *testing.T) {
	svc, store := testSetup()
	ctx := context.Background()

	_, err := svc.BuyAsset(ctx, 1, 10, d("5"), d("100"))
	require.NoError(t, err)

	_, err = svc.SellAsset(ctx, 1, 10, d("6"), d("100"))
	require.ErrorIs(t, err, engine.ErrInsufficientQuantity)

	pos := store.positions[posKey(1, 10)]
	assert.True(t, pos.Quantity.Equal(d("5")))
	assert.True(t, store.portfolios[1].AvailableCash.Equal(d("9500")))
}

func TestSellAssetNoPosition(t *testing.T) {
	svc, _ := testSetup()

	_, err := svc.SellAsset(context.Background(), 1, 10, d("1"), d("100"))
	assert.ErrorIs(t, err, repository.ErrPositionNotFound)
}

func TestClosePosition(t *testing.T) {
	svc, store := testSetup()
	ctx := context.Background()

	_, err := svc.BuyAsset(ctx, 1, 10, d("3"), d("100"))
	require.NoError(t, err)

	require.NoError(t, svc.ClosePosition(ctx, 1, 10, d("110")))
	assert.Empty(t, store.positions)
	// 10000 - 300 + 330
	assert.True(t, store.portfolios[1].AvailableCash.Equal(d("10030")))
}

func TestDepositAndWithdrawCash(t *testing.T) {
	svc, store := testSetup()
	ctx := context.Background()

	require.NoError(t, svc.DepositCash(ctx, 1, d("500"), "bonus"))
	assert.True(t, store.portfolios[1].AvailableCash.Equal(d("10500")))

	require.NoError(t, svc.WithdrawCash(ctx, 1, d("10500"), ""))
	assert.True(t, store.portfolios[1].AvailableCash.IsZero())

	err := svc.WithdrawCash(ctx, 1, d("0.01"), "")
	assert.ErrorIs(t, err, engine.ErrInsufficientCash)

	require.Len(t, store.transactions, 2)
	assert.Equal(t, types.TransactionTypeDeposit, store.transactions[0].Type)
	assert.Equal(t, "bonus", store.transactions[0].Notes)
	assert.Equal(t, types.TransactionTypeWithdrawal, store.transactions[1].Type)
}

func TestCashFlowRejectsNonPositiveAmounts(t *testing.T) {
	svc, _ := testSetup()
	ctx := context.Background()

	assert.ErrorIs(t, svc.DepositCash(ctx, 1, decimal.Zero, ""), engine.ErrInvalidAmount)
	assert.ErrorIs(t, svc.WithdrawCash(ctx, 1, d("-5"), ""), engine.ErrInvalidAmount)
}

func TestRecordDividend(t *testing.T) {
	svc, store := testSetup()
	ctx := context.Background()

	_, err := svc.BuyAsset(ctx, 1, 10, d("10"), d("100"))
	require.NoError(t, err)

	require.NoError(t, svc.RecordDividend(ctx, 1, 10, d("25"), "Q3"))
	// 10000 - 1000 + 25
	assert.True(t, store.portfolios[1].AvailableCash.Equal(d("9025")))

	last := store.transactions[len(store.transactions)-1]
	assert.Equal(t, types.TransactionTypeDividend, last.Type)
	assert.True(t, last.TotalAmount.Equal(d("25")))

	// No dividend without a holding.
	err = svc.RecordDividend(ctx, 1, 11, d("5"), "")
	assert.ErrorIs(t, err, repository.ErrPositionNotFound)
}
