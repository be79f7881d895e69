package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tradelab/types"
)

// queries is the raw SQL layer behind the repository interfaces.
type queries struct {
	pool *pgxpool.Pool
}

func (q *queries) GetInstrumentBySymbol(ctx context.Context, symbol string) (instrumentRow, error) {
	const stmt = `
SELECT id, symbol, name, type, created_at, modified_at
FROM instruments
WHERE symbol = $1`

	var row instrumentRow
	err := q.pool.QueryRow(ctx, stmt, symbol).
		Scan(&row.ID, &row.Symbol, &row.Name, &row.Type, &row.CreatedAt, &row.ModifiedAt)
	return row, err
}

func (q *queries) UpsertInstrument(ctx context.Context, symbol, name, instrumentType string) (instrumentRow, error) {
	const stmt = `
INSERT INTO instruments (symbol, name, type)
VALUES ($1, $2, $3)
ON CONFLICT (symbol) DO UPDATE
	SET name = EXCLUDED.name, type = EXCLUDED.type, modified_at = now()
RETURNING id, symbol, name, type, created_at, modified_at`

	var row instrumentRow
	err := q.pool.QueryRow(ctx, stmt, symbol, name, instrumentType).
		Scan(&row.ID, &row.Symbol, &row.Name, &row.Type, &row.CreatedAt, &row.ModifiedAt)
	return row, err
}

func (q *queries) GetAggregates(ctx context.Context, arg getBarsParams) ([]barRow, error) {
	const stmt = `
SELECT ts, instrument_id, open, high, low, close, volume
FROM bars
WHERE instrument_id = $1 AND interval = $2 AND ts >= $3 AND ts < $4
ORDER BY ts`

	rows, err := q.pool.Query(ctx, stmt, arg.InstrumentID, arg.Interval, arg.Start, arg.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []barRow
	for rows.Next() {
		var r barRow
		if err := rows.Scan(&r.Ts, &r.InstrumentID, &r.Open, &r.High, &r.Low, &r.Close, &r.Volume); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertBars bulk-loads bars with the postgres COPY protocol. Re-inserting
// an existing (instrument, interval, ts) row fails the whole copy, so
// callers load disjoint ranges.
func (q *queries) InsertBars(ctx context.Context, instrumentID int32, interval string, bars []types.Bar) (int64, error) {
	return q.pool.CopyFrom(ctx,
		pgx.Identifier{"bars"},
		[]string{"instrument_id", "interval", "ts", "open", "high", "low", "close", "volume"},
		pgx.CopyFromSlice(len(bars), func(i int) ([]any, error) {
			b := bars[i]
			return []any{instrumentID, interval, b.Time, b.Open, b.High, b.Low, b.Close, b.Volume}, nil
		}),
	)
}
