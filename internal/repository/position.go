package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"investtrack/types"
)

const positionColumns = `p.id, p.portfolio_id, p.asset_id, a.ticker,
	p.quantity, p.average_price, a.current_price, p.created_at, p.modified_at`

// GetPositions returns all positions of a portfolio joined with their asset's
// ticker and current market price, in insertion order.
func (db *Database) GetPositions(ctx context.Context, portfolioId int64) ([]types.Position, error) {
	rows, err := db.conn.Query(ctx,
		`SELECT `+positionColumns+`
		 FROM positions p
		 JOIN assets a ON a.id = p.asset_id
		 WHERE p.portfolio_id = $1
		 ORDER BY p.id`,
		portfolioId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []types.Position
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, *pos)
	}
	return positions, rows.Err()
}

// GetPosition finds the position for a specific asset within a portfolio.
func (db *Database) GetPosition(ctx context.Context, portfolioId, assetId int64) (*types.Position, error) {
	row := db.conn.QueryRow(ctx,
		`SELECT `+positionColumns+`
		 FROM positions p
		 JOIN assets a ON a.id = p.asset_id
		 WHERE p.portfolio_id = $1 AND p.asset_id = $2`,
		portfolioId, assetId)

	pos, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("portfolio %d asset %d: %w", portfolioId, assetId, ErrPositionNotFound)
		}
		return nil, err
	}
	return pos, nil
}

// SavePosition upserts a position keyed by (portfolio, asset) and returns the
// stored row's id.
func (db *Database) SavePosition(ctx context.Context, pos *types.Position) (int64, error) {
	var id int64
	err := db.conn.QueryRow(ctx,
		`INSERT INTO positions (portfolio_id, asset_id, quantity, average_price)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (portfolio_id, asset_id)
		 DO UPDATE SET quantity = EXCLUDED.quantity,
		               average_price = EXCLUDED.average_price,
		               modified_at = now()
		 RETURNING id`,
		pos.PortfolioId, pos.AssetId, pos.Quantity, pos.AveragePrice).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// DeletePosition removes a closed position.
func (db *Database) DeletePosition(ctx context.Context, portfolioId, assetId int64) error {
	tag, err := db.conn.Exec(ctx,
		`DELETE FROM positions WHERE portfolio_id = $1 AND asset_id = $2`,
		portfolioId, assetId)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("portfolio %d asset %d: %w", portfolioId, assetId, ErrPositionNotFound)
	}
	return nil
}

// CountPositions counts the positions held in a portfolio.
func (db *Database) CountPositions(ctx context.Context, portfolioId int64) (int64, error) {
	var count int64
	err := db.conn.QueryRow(ctx,
		`SELECT count(*) FROM positions WHERE portfolio_id = $1`, portfolioId).Scan(&count)
	return count, err
}

func scanPosition(row pgx.Row) (*types.Position, error) {
	var p types.Position
	err := row.Scan(&p.Id, &p.PortfolioId, &p.AssetId, &p.Ticker,
		&p.Quantity, &p.AveragePrice, &p.CurrentPrice, &p.CreatedAt, &p.ModifiedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
