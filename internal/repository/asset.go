package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"investtrack/types"
)

const assetColumns = "id, ticker, name, type, current_price, price_updated_at, active, created_at, modified_at"

// CreateAsset registers a tradeable asset. Tickers are unique.
func (db *Database) CreateAsset(ctx context.Context, ticker, name string, assetType types.AssetType) (*types.Asset, error) {
	row := db.conn.QueryRow(ctx,
		`INSERT INTO assets (ticker, name, type)
		 VALUES ($1, $2, $3)
		 RETURNING `+assetColumns,
		ticker, name, assetType)

	asset, err := scanAsset(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("asset %q: %w", ticker, ErrDuplicateName)
		}
		return nil, err
	}
	return asset, nil
}

// GetAsset retrieves an asset by id.
func (db *Database) GetAsset(ctx context.Context, id int64) (*types.Asset, error) {
	row := db.conn.QueryRow(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE id = $1`, id)

	asset, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("asset %d: %w", id, ErrAssetNotFound)
		}
		return nil, err
	}
	return asset, nil
}

// GetAssetByTicker retrieves an asset by its ticker.
func (db *Database) GetAssetByTicker(ctx context.Context, ticker string) (*types.Asset, error) {
	row := db.conn.QueryRow(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE ticker = $1`, ticker)

	asset, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("ticker %s: %w", ticker, ErrAssetNotFound)
		}
		return nil, err
	}
	return asset, nil
}

// ListAssets returns all assets ordered by ticker.
func (db *Database) ListAssets(ctx context.Context) ([]types.Asset, error) {
	rows, err := db.conn.Query(ctx,
		`SELECT `+assetColumns+` FROM assets ORDER BY ticker`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []types.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, *a)
	}
	return assets, rows.Err()
}

// UpdateAssetPrice stores a freshly fetched market price.
func (db *Database) UpdateAssetPrice(ctx context.Context, id int64, price decimal.Decimal) error {
	tag, err := db.conn.Exec(ctx,
		`UPDATE assets
		 SET current_price = $2, price_updated_at = now(), modified_at = now()
		 WHERE id = $1`,
		id, price)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("asset %d: %w", id, ErrAssetNotFound)
	}
	return nil
}

func scanAsset(row pgx.Row) (*types.Asset, error) {
	var a types.Asset
	err := row.Scan(&a.Id, &a.Ticker, &a.Name, &a.Type, &a.CurrentPrice,
		&a.PriceUpdatedAt, &a.Active, &a.CreatedAt, &a.ModifiedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
