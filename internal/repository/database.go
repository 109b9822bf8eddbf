package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Global error declarations.
var (
	ErrPortfolioNotFound   = errors.New("portfolio not found")
	ErrAssetNotFound       = errors.New("asset not found")
	ErrPositionNotFound    = errors.New("position not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrDuplicateName       = errors.New("name already exists")
)

//go:embed schema.sql
var schema string

// Database holds the connection pool and exposes the typed repositories.
type Database struct {
	conn *pgxpool.Pool
}

// NewDatabase creates a new Database instance and verifies connectivity.
func NewDatabase(ctx context.Context, dbURL string) (*Database, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// Register shopspring decimal
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	conn, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	// Ensure the connection is established.
	if err := conn.Ping(ctx); err != nil {
		return nil, err
	}

	return &Database{conn: conn}, nil
}

// EnsureSchema creates the tables if they do not exist yet.
func (db *Database) EnsureSchema(ctx context.Context) error {
	_, err := db.conn.Exec(ctx, schema)
	return err
}

func (db *Database) Close() {
	db.conn.Close()
}

// isUniqueViolation reports whether err is a Postgres unique constraint error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
