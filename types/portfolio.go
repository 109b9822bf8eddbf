package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type Portfolio struct {
	Id            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	AvailableCash decimal.Decimal `json:"availableCash"`
	CreatedAt     time.Time       `json:"createdAt"`
	ModifiedAt    time.Time       `json:"modifiedAt"`
}

// TotalValue is the sum of all position market values plus available cash.
// It is recomputed from the given positions, never read from a cached column.
func (p *Portfolio) TotalValue(positions []Position) decimal.Decimal {
	total := p.AvailableCash
	for i := range positions {
		total = total.Add(positions[i].CurrentValue())
	}
	return total
}
