package engine

import (
	"github.com/shopspring/decimal"

	"investtrack/types"
)

// ApplyBuy applies a buy fill to a position. A nil position means no holding
// exists yet and a new one is created at the fill price. An existing position
// gets its average price recomputed as the weighted average of the old cost
// and the new fill. Fees never enter the cost basis; they are recorded on the
// transaction instead.
func ApplyBuy(pos *types.Position, quantity, price decimal.Decimal) (*types.Position, error) {
	if !quantity.GreaterThan(decimal.Zero) || !price.GreaterThan(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	if pos == nil {
		return &types.Position{
			Quantity:     quantity.Round(types.QuantityScale),
			AveragePrice: price.Round(types.MoneyScale),
		}, nil
	}

	updated := *pos
	updated.AveragePrice = weightedAvg(pos.AveragePrice, pos.Quantity, price, quantity)
	updated.Quantity = pos.Quantity.Add(quantity).Round(types.QuantityScale)
	return &updated, nil
}

// ApplySell applies a sell fill to a position. The average price is left
// untouched so the cost basis of the remaining shares is preserved. Selling
// the full quantity closes the position, signalled by a nil result. Selling
// more than held fails without any partial effect.
func ApplySell(pos *types.Position, quantity decimal.Decimal) (*types.Position, error) {
	if !quantity.GreaterThan(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	if quantity.GreaterThan(pos.Quantity) {
		return nil, ErrInsufficientQuantity
	}

	remaining := pos.Quantity.Sub(quantity).Round(types.QuantityScale)
	if remaining.IsZero() {
		return nil, nil
	}

	updated := *pos
	updated.Quantity = remaining
	return &updated, nil
}

func weightedAvg(existingAvgPrice, existingQty, newPrice, newQty decimal.Decimal) decimal.Decimal {
	if existingQty.IsZero() {
		return newPrice.Round(types.MoneyScale)
	}
	return existingAvgPrice.Mul(existingQty).
		Add(newPrice.Mul(newQty)).
		DivRound(existingQty.Add(newQty), types.MoneyScale)
}
