package engine

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"investtrack/types"
)

// Global error declarations.
var (
	ErrInvalidAmount        = errors.New("quantity and price must be positive")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	ErrInsufficientCash     = errors.New("insufficient cash")
	ErrNoPositions          = errors.New("portfolio has no positions")
	ErrInvalidStrategy      = errors.New("invalid strategy parameter")
)

type dataStore interface {
	GetPortfolio(ctx context.Context, id int64) (*types.Portfolio, error)
	GetPositions(ctx context.Context, portfolioId int64) ([]types.Position, error)
	GetTransactionVolume(ctx context.Context, portfolioId int64, txTypes []types.TransactionType) (decimal.Decimal, error)
}

// Engine computes portfolio analytics: valuation, metrics, Monte Carlo
// projections and strategy backtests. It holds no state between calls;
// every method reads a consistent snapshot through the data store and
// returns an immutable result record.
type Engine struct {
	db           dataStore
	riskFreeRate decimal.Decimal
	log          zerolog.Logger
}

func NewEngine(db dataStore, riskFreeRate decimal.Decimal, log zerolog.Logger) *Engine {
	return &Engine{
		db:           db,
		riskFreeRate: riskFreeRate,
		log:          log.With().Str("component", "engine").Logger(),
	}
}
