package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeBuy        TransactionType = "BUY"
	TransactionTypeSell       TransactionType = "SELL"
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
	TransactionTypeDividend   TransactionType = "DIVIDEND"
)

// TradeTypes are the transaction types that count toward turnover.
var TradeTypes = []TransactionType{TransactionTypeBuy, TransactionTypeSell}

// Transaction is an immutable audit record. Rows are only ever inserted.
type Transaction struct {
	Id              int64           `json:"id"`
	PortfolioId     int64           `json:"portfolioId"`
	AssetId         *int64          `json:"assetId,omitempty"`
	Type            TransactionType `json:"type"`
	Quantity        decimal.Decimal `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Fees            decimal.Decimal `json:"fees"`
	Reference       string          `json:"reference"`
	Notes           string          `json:"notes,omitempty"`
	TransactionDate time.Time       `json:"transactionDate"`
}
