package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"investtrack/types"
)

const portfolioColumns = "id, name, description, available_cash, created_at, modified_at"

// CreatePortfolio inserts a portfolio with its initial cash deposit.
// Portfolio names are unique case-insensitively.
func (db *Database) CreatePortfolio(ctx context.Context, name, description string, initialCash decimal.Decimal) (*types.Portfolio, error) {
	row := db.conn.QueryRow(ctx,
		`INSERT INTO portfolios (name, description, available_cash)
		 VALUES ($1, $2, $3)
		 RETURNING `+portfolioColumns,
		name, description, initialCash)

	portfolio, err := scanPortfolio(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("portfolio %q: %w", name, ErrDuplicateName)
		}
		return nil, err
	}
	return portfolio, nil
}

// GetPortfolio retrieves a portfolio by id.
func (db *Database) GetPortfolio(ctx context.Context, id int64) (*types.Portfolio, error) {
	row := db.conn.QueryRow(ctx,
		`SELECT `+portfolioColumns+` FROM portfolios WHERE id = $1`, id)

	portfolio, err := scanPortfolio(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("portfolio %d: %w", id, ErrPortfolioNotFound)
		}
		return nil, err
	}
	return portfolio, nil
}

// ListPortfolios returns all portfolios, newest first.
func (db *Database) ListPortfolios(ctx context.Context) ([]types.Portfolio, error) {
	rows, err := db.conn.Query(ctx,
		`SELECT `+portfolioColumns+` FROM portfolios ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var portfolios []types.Portfolio
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, err
		}
		portfolios = append(portfolios, *p)
	}
	return portfolios, rows.Err()
}

// UpdatePortfolio changes name and description only; cash and positions are
// untouched.
func (db *Database) UpdatePortfolio(ctx context.Context, id int64, name, description string) (*types.Portfolio, error) {
	row := db.conn.QueryRow(ctx,
		`UPDATE portfolios SET name = $2, description = $3, modified_at = now()
		 WHERE id = $1
		 RETURNING `+portfolioColumns,
		id, name, description)

	portfolio, err := scanPortfolio(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("portfolio %d: %w", id, ErrPortfolioNotFound)
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("portfolio %q: %w", name, ErrDuplicateName)
		}
		return nil, err
	}
	return portfolio, nil
}

// UpdateCash sets the portfolio's available cash balance.
func (db *Database) UpdateCash(ctx context.Context, id int64, availableCash decimal.Decimal) error {
	tag, err := db.conn.Exec(ctx,
		`UPDATE portfolios SET available_cash = $2, modified_at = now() WHERE id = $1`,
		id, availableCash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("portfolio %d: %w", id, ErrPortfolioNotFound)
	}
	return nil
}

// DeletePortfolio removes the portfolio; positions and transactions cascade.
func (db *Database) DeletePortfolio(ctx context.Context, id int64) error {
	tag, err := db.conn.Exec(ctx, `DELETE FROM portfolios WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("portfolio %d: %w", id, ErrPortfolioNotFound)
	}
	return nil
}

func scanPortfolio(row pgx.Row) (*types.Portfolio, error) {
	var p types.Portfolio
	err := row.Scan(&p.Id, &p.Name, &p.Description, &p.AvailableCash, &p.CreatedAt, &p.ModifiedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
