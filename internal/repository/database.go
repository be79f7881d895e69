package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"tradelab/types"
)

// Global error declarations.
var (
	ErrIntervalNotSupported = errors.New("interval not supported")
	ErrInstrumentNotFound   = errors.New("instrument not found in datasource")
	ErrNoBars               = errors.New("no bars found in datasource")
)

type instrumentRow struct {
	ID         int32
	Symbol     string
	Name       string
	Type       string
	CreatedAt  *time.Time
	ModifiedAt *time.Time
}

type barRow struct {
	Ts           *time.Time
	InstrumentID int32
	Open         decimal.Decimal
	High         decimal.Decimal
	Low          decimal.Decimal
	Close        decimal.Decimal
	Volume       decimal.Decimal
}

type getBarsParams struct {
	InstrumentID int32
	Interval     string
	Start        *time.Time
	End          *time.Time
}

type instrumentsRepository interface {
	GetInstrumentBySymbol(ctx context.Context, symbol string) (instrumentRow, error)
	UpsertInstrument(ctx context.Context, symbol, name, instrumentType string) (instrumentRow, error)
}

type barsRepository interface {
	GetAggregates(ctx context.Context, arg getBarsParams) ([]barRow, error)
	InsertBars(ctx context.Context, instrumentID int32, interval string, bars []types.Bar) (int64, error)
}

// Database holds the connection pool and the row-level queries.
type Database struct {
	instruments instrumentsRepository
	bars        barsRepository
	conn        *pgxpool.Pool
}

// NewDatabase creates a new Database instance and verifies connectivity.
func NewDatabase(dbURL string) (Database, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return Database{}, fmt.Errorf("parse config: %w", err)
	}
	// Register shopspring decimal
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	conn, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return Database{}, err
	}
	// Ensure the connection is established.
	if err := conn.Ping(context.Background()); err != nil {
		return Database{}, err
	}

	q := &queries{pool: conn}
	return Database{
		instruments: q,
		bars:        q,
		conn:        conn}, nil
}

func (db *Database) Close() {
	if db.conn != nil {
		db.conn.Close()
	}
}

// EnsureSchema creates the tables a fresh database needs. Bars are stored
// at their native interval, keyed by instrument, interval and timestamp.
func (db *Database) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS instruments (
	id          SERIAL PRIMARY KEY,
	symbol      TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL DEFAULT '',
	type        TEXT NOT NULL DEFAULT 'STOCK',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	modified_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS bars (
	instrument_id INT NOT NULL REFERENCES instruments(id),
	interval      TEXT NOT NULL,
	ts            TIMESTAMPTZ NOT NULL,
	open          NUMERIC NOT NULL,
	high          NUMERIC NOT NULL,
	low           NUMERIC NOT NULL,
	close         NUMERIC NOT NULL,
	volume        NUMERIC NOT NULL,
	PRIMARY KEY (instrument_id, interval, ts)
);`

	if _, err := db.conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
