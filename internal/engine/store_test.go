package engine

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"investtrack/types"
)

// mockStore is an in-memory dataStore double for engine tests.
type mockStore struct {
	portfolio *types.Portfolio
	positions []types.Position
	volume    decimal.Decimal
	err       error
}

func (m *mockStore) GetPortfolio(ctx context.Context, id int64) (*types.Portfolio, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.portfolio, nil
}

func (m *mockStore) GetPositions(ctx context.Context, portfolioId int64) ([]types.Position, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.positions, nil
}

func (m *mockStore) GetTransactionVolume(ctx context.Context, portfolioId int64, txTypes []types.TransactionType) (decimal.Decimal, error) {
	if m.err != nil {
		return decimal.Zero, m.err
	}
	return m.volume, nil
}

func testEngine(store *mockStore) *Engine {
	return NewEngine(store, decimal.NewFromFloat(0.02), zerolog.Nop())
}
