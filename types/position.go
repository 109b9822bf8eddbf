package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Decimal scales shared across the engine. Money values round to 2 places,
// ratios to 4, daily returns to 6 and share quantities to 8 so fractional
// units survive the arithmetic. All rounding is half-up.
const (
	MoneyScale    = 2
	RatioScale    = 4
	ReturnScale   = 6
	QuantityScale = 8
)

var hundred = decimal.NewFromInt(100)

// Position is the ownership of a single asset within a portfolio.
// Quantity is always strictly positive; a position sold down to zero is
// deleted rather than kept around.
type Position struct {
	Id           int64           `json:"id"`
	PortfolioId  int64           `json:"portfolioId"`
	AssetId      int64           `json:"assetId"`
	Ticker       string          `json:"ticker"`
	Quantity     decimal.Decimal `json:"quantity"`
	AveragePrice decimal.Decimal `json:"averagePrice"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	CreatedAt    time.Time       `json:"createdAt"`
	ModifiedAt   time.Time       `json:"modifiedAt"`
}

// CurrentValue is quantity times the asset's market price, zero when no
// valid price is known.
func (p *Position) CurrentValue() decimal.Decimal {
	if !p.CurrentPrice.GreaterThan(decimal.Zero) {
		return decimal.Zero
	}
	return p.Quantity.Mul(p.CurrentPrice).Round(MoneyScale)
}

// CostBasis is quantity times the weighted average purchase price.
func (p *Position) CostBasis() decimal.Decimal {
	return p.Quantity.Mul(p.AveragePrice).Round(MoneyScale)
}

// UnrealizedPnL is current value minus cost basis.
func (p *Position) UnrealizedPnL() decimal.Decimal {
	return p.CurrentValue().Sub(p.CostBasis())
}

// PnLPercent is the unrealized gain on a x100 scale (20.00 means +20%).
// Zero when the cost basis is zero so a free position never divides by zero.
func (p *Position) PnLPercent() decimal.Decimal {
	costBasis := p.CostBasis()
	if costBasis.IsZero() {
		return decimal.Zero
	}
	return p.UnrealizedPnL().
		DivRound(costBasis, RatioScale).
		Mul(hundred).
		Round(MoneyScale)
}

// Return is the unrealized gain as a plain ratio (0.20 means +20%).
// This is the form the volatility estimate consumes.
func (p *Position) Return() decimal.Decimal {
	costBasis := p.CostBasis()
	if costBasis.IsZero() {
		return decimal.Zero
	}
	return p.UnrealizedPnL().DivRound(costBasis, RatioScale)
}
