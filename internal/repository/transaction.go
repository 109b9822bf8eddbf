package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"investtrack/types"
)

const transactionColumns = "id, portfolio_id, asset_id, type, quantity, price, total_amount, fees, reference, notes, transaction_date"

// RecordTransaction appends an audit record and fills in the generated id
// and timestamp.
func (db *Database) RecordTransaction(ctx context.Context, tx *types.Transaction) error {
	return db.conn.QueryRow(ctx,
		`INSERT INTO transactions (portfolio_id, asset_id, type, quantity, price, total_amount, fees, reference, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, transaction_date`,
		tx.PortfolioId, tx.AssetId, tx.Type, tx.Quantity, tx.Price,
		tx.TotalAmount, tx.Fees, tx.Reference, tx.Notes).
		Scan(&tx.Id, &tx.TransactionDate)
}

// GetTransactions returns a portfolio's most recent transactions. A limit of
// zero or less returns the full history.
func (db *Database) GetTransactions(ctx context.Context, portfolioId int64, limit int) ([]types.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		 FROM transactions
		 WHERE portfolio_id = $1
		 ORDER BY transaction_date DESC, id DESC`
	args := []any{portfolioId}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := db.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []types.Transaction
	for rows.Next() {
		var t types.Transaction
		err := rows.Scan(&t.Id, &t.PortfolioId, &t.AssetId, &t.Type, &t.Quantity,
			&t.Price, &t.TotalAmount, &t.Fees, &t.Reference, &t.Notes, &t.TransactionDate)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// GetTransactionVolume sums total_amount over the given transaction types.
func (db *Database) GetTransactionVolume(ctx context.Context, portfolioId int64, transactionTypes []types.TransactionType) (decimal.Decimal, error) {
	typeNames := make([]string, len(transactionTypes))
	for i, t := range transactionTypes {
		typeNames[i] = string(t)
	}

	var volume decimal.Decimal
	err := db.conn.QueryRow(ctx,
		`SELECT COALESCE(SUM(total_amount), 0)
		 FROM transactions
		 WHERE portfolio_id = $1 AND type = ANY($2)`,
		portfolioId, typeNames).Scan(&volume)
	if err != nil {
		return decimal.Zero, err
	}
	return volume, nil
}
