package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type AssetType string

const (
	AssetTypeStock  AssetType = "STOCK"
	AssetTypeCrypto AssetType = "CRYPTO"
	AssetTypeEtf    AssetType = "ETF"
	AssetTypeBond   AssetType = "BOND"
)

type Asset struct {
	Id             int64           `json:"id"`
	Ticker         string          `json:"ticker"`
	Name           string          `json:"name"`
	Type           AssetType       `json:"type"`
	CurrentPrice   decimal.Decimal `json:"currentPrice"`
	PriceUpdatedAt *time.Time      `json:"priceUpdatedAt,omitempty"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"createdAt"`
	ModifiedAt     time.Time       `json:"modifiedAt"`
}

// HasValidPrice reports whether the asset carries a usable market price.
// Positions on assets without one are valued at zero.
func (a *Asset) HasValidPrice() bool {
	return a.CurrentPrice.GreaterThan(decimal.Zero)
}
