// Package trading executes buy, sell and cash operations against stored
// portfolios and records every change in the transaction log.
package trading

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"investtrack/internal/engine"
	"investtrack/internal/repository"
	"investtrack/types"
)

// DefaultMaxPositions caps distinct holdings per portfolio.
const DefaultMaxPositions = 100

// Global error declarations.
var (
	ErrInactiveAsset    = errors.New("asset is inactive")
	ErrTooManyPositions = errors.New("maximum number of positions reached")
)

type tradingStore interface {
	GetPortfolio(ctx context.Context, id int64) (*types.Portfolio, error)
	UpdateCash(ctx context.Context, id int64, availableCash decimal.Decimal) error
	GetAsset(ctx context.Context, id int64) (*types.Asset, error)
	GetPosition(ctx context.Context, portfolioId, assetId int64) (*types.Position, error)
	SavePosition(ctx context.Context, pos *types.Position) (int64, error)
	DeletePosition(ctx context.Context, portfolioId, assetId int64) error
	CountPositions(ctx context.Context, portfolioId int64) (int64, error)
	RecordTransaction(ctx context.Context, tx *types.Transaction) error
}

// Service orchestrates trades. Position math is delegated to the engine
// package; this layer validates against stored state, moves cash and writes
// the audit trail.
type Service struct {
	db           tradingStore
	maxPositions int64
	log          zerolog.Logger
}

func NewService(db tradingStore, maxPositions int64, log zerolog.Logger) *Service {
	if maxPositions <= 0 {
		maxPositions = DefaultMaxPositions
	}
	return &Service{
		db:           db,
		maxPositions: maxPositions,
		log:          log.With().Str("component", "trading").Logger(),
	}
}

// BuyAsset opens or increases a position at the given fill price, debiting
// the portfolio's cash. An existing position is repriced to the weighted
// average of its old cost and the new fill.
func (s *Service) BuyAsset(ctx context.Context, portfolioId, assetId int64, quantity, price decimal.Decimal) (*types.Position, error) {
	if !quantity.GreaterThan(decimal.Zero) || !price.GreaterThan(decimal.Zero) {
		return nil, engine.ErrInvalidAmount
	}

	portfolio, err := s.db.GetPortfolio(ctx, portfolioId)
	if err != nil {
		return nil, err
	}
	asset, err := s.db.GetAsset(ctx, assetId)
	if err != nil {
		return nil, err
	}
	if !asset.Active {
		return nil, fmt.Errorf("%s: %w", asset.Ticker, ErrInactiveAsset)
	}

	totalCost := quantity.Mul(price).Round(types.MoneyScale)
	if portfolio.AvailableCash.LessThan(totalCost) {
		return nil, fmt.Errorf("required %s, available %s: %w",
			totalCost, portfolio.AvailableCash, engine.ErrInsufficientCash)
	}

	position, err := s.db.GetPosition(ctx, portfolioId, assetId)
	if err != nil && !errors.Is(err, repository.ErrPositionNotFound) {
		return nil, err
	}

	if position == nil {
		count, err := s.db.CountPositions(ctx, portfolioId)
		if err != nil {
			return nil, err
		}
		if count >= s.maxPositions {
			return nil, fmt.Errorf("%d: %w", s.maxPositions, ErrTooManyPositions)
		}
	}

	updated, err := engine.ApplyBuy(position, quantity, price)
	if err != nil {
		return nil, err
	}
	updated.PortfolioId = portfolioId
	updated.AssetId = assetId
	updated.Ticker = asset.Ticker
	updated.CurrentPrice = asset.CurrentPrice

	id, err := s.db.SavePosition(ctx, updated)
	if err != nil {
		return nil, err
	}
	updated.Id = id

	if err := s.db.UpdateCash(ctx, portfolioId, portfolio.AvailableCash.Sub(totalCost)); err != nil {
		return nil, err
	}

	if err := s.recordTrade(ctx, portfolioId, assetId, types.TransactionTypeBuy, quantity, price, totalCost); err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("portfolio", portfolioId).
		Str("ticker", asset.Ticker).
		Str("quantity", quantity.String()).
		Str("price", price.String()).
		Msg("buy executed")
	return updated, nil
}

// SellAsset reduces or closes a position at the given fill price, crediting
// the proceeds to the portfolio's cash. A nil result means the position was
// fully closed.
func (s *Service) SellAsset(ctx context.Context, portfolioId, assetId int64, quantity, price decimal.Decimal) (*types.Position, error) {
	if !quantity.GreaterThan(decimal.Zero) || !price.GreaterThan(decimal.Zero) {
		return nil, engine.ErrInvalidAmount
	}

	portfolio, err := s.db.GetPortfolio(ctx, portfolioId)
	if err != nil {
		return nil, err
	}
	position, err := s.db.GetPosition(ctx, portfolioId, assetId)
	if err != nil {
		return nil, err
	}

	updated, err := engine.ApplySell(position, quantity)
	if err != nil {
		return nil, err
	}

	if updated == nil {
		if err := s.db.DeletePosition(ctx, portfolioId, assetId); err != nil {
			return nil, err
		}
	} else {
		if _, err := s.db.SavePosition(ctx, updated); err != nil {
			return nil, err
		}
	}

	proceeds := quantity.Mul(price).Round(types.MoneyScale)
	if err := s.db.UpdateCash(ctx, portfolioId, portfolio.AvailableCash.Add(proceeds)); err != nil {
		return nil, err
	}

	if err := s.recordTrade(ctx, portfolioId, assetId, types.TransactionTypeSell, quantity, price, proceeds); err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("portfolio", portfolioId).
		Str("ticker", position.Ticker).
		Str("quantity", quantity.String()).
		Str("price", price.String()).
		Bool("closed", updated == nil).
		Msg("sell executed")
	return updated, nil
}

// ClosePosition sells the full holding at the given price.
func (s *Service) ClosePosition(ctx context.Context, portfolioId, assetId int64, price decimal.Decimal) error {
	position, err := s.db.GetPosition(ctx, portfolioId, assetId)
	if err != nil {
		return err
	}
	_, err = s.SellAsset(ctx, portfolioId, assetId, position.Quantity, price)
	return err
}

// DepositCash credits the portfolio's cash balance and records the deposit.
func (s *Service) DepositCash(ctx context.Context, portfolioId int64, amount decimal.Decimal, notes string) error {
	if !amount.GreaterThan(decimal.Zero) {
		return engine.ErrInvalidAmount
	}

	portfolio, err := s.db.GetPortfolio(ctx, portfolioId)
	if err != nil {
		return err
	}
	if err := s.db.UpdateCash(ctx, portfolioId, portfolio.AvailableCash.Add(amount)); err != nil {
		return err
	}
	return s.recordCashFlow(ctx, portfolioId, types.TransactionTypeDeposit, amount, notes)
}

// WithdrawCash debits the portfolio's cash balance and records the
// withdrawal. The balance can never go negative.
func (s *Service) WithdrawCash(ctx context.Context, portfolioId int64, amount decimal.Decimal, notes string) error {
	if !amount.GreaterThan(decimal.Zero) {
		return engine.ErrInvalidAmount
	}

	portfolio, err := s.db.GetPortfolio(ctx, portfolioId)
	if err != nil {
		return err
	}
	if portfolio.AvailableCash.LessThan(amount) {
		return fmt.Errorf("required %s, available %s: %w",
			amount, portfolio.AvailableCash, engine.ErrInsufficientCash)
	}
	if err := s.db.UpdateCash(ctx, portfolioId, portfolio.AvailableCash.Sub(amount)); err != nil {
		return err
	}
	return s.recordCashFlow(ctx, portfolioId, types.TransactionTypeWithdrawal, amount, notes)
}

// RecordDividend credits a dividend payment from a held asset to cash.
func (s *Service) RecordDividend(ctx context.Context, portfolioId, assetId int64, amount decimal.Decimal, notes string) error {
	if !amount.GreaterThan(decimal.Zero) {
		return engine.ErrInvalidAmount
	}

	portfolio, err := s.db.GetPortfolio(ctx, portfolioId)
	if err != nil {
		return err
	}
	if _, err := s.db.GetPosition(ctx, portfolioId, assetId); err != nil {
		return err
	}
	if err := s.db.UpdateCash(ctx, portfolioId, portfolio.AvailableCash.Add(amount)); err != nil {
		return err
	}
	return s.db.RecordTransaction(ctx, &types.Transaction{
		PortfolioId: portfolioId,
		AssetId:     &assetId,
		Type:        types.TransactionTypeDividend,
		TotalAmount: amount.Round(types.MoneyScale),
		Reference:   uuid.NewString(),
		Notes:       notes,
	})
}

func (s *Service) recordTrade(ctx context.Context, portfolioId, assetId int64, txType types.TransactionType, quantity, price, totalAmount decimal.Decimal) error {
	return s.db.RecordTransaction(ctx, &types.Transaction{
		PortfolioId: portfolioId,
		AssetId:     &assetId,
		Type:        txType,
		Quantity:    quantity,
		Price:       price,
		TotalAmount: totalAmount,
		Reference:   uuid.NewString(),
	})
}

func (s *Service) recordCashFlow(ctx context.Context, portfolioId int64, txType types.TransactionType, amount decimal.Decimal, notes string) error {
	return s.db.RecordTransaction(ctx, &types.Transaction{
		PortfolioId: portfolioId,
		Type:        txType,
		TotalAmount: amount.Round(types.MoneyScale),
		Reference:   uuid.NewString(),
		Notes:       notes,
	})
}
