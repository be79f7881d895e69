package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"tradelab/types"
)

// GetBars looks up the instrument and loads its bars for the range
// [start, end). This is the loading path a backtest run uses.
func (db *Database) GetBars(ctx context.Context, symbol string, interval types.Interval, start, end time.Time) ([]types.Bar, error) {
	inst, err := db.GetInstrumentBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return db.GetAggregates(ctx, inst.ID, symbol, interval, start, end)
}

func (db *Database) GetAggregates(ctx context.Context, instrumentID int, symbol string, interval types.Interval, start, end time.Time) ([]types.Bar, error) {
	key, err := intervalKey(interval)
	if err != nil {
		return nil, err
	}
	rows, err := db.bars.GetAggregates(ctx, getBarsParams{
		InstrumentID: int32(instrumentID),
		Interval:     key,
		Start:        &start,
		End:          &end,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoBars
		}
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoBars
	}
	return convertBars(rows, interval, symbol), nil
}

// InsertBars stores downloaded bars for a symbol, registering the
// instrument first when needed.
func (db *Database) InsertBars(ctx context.Context, symbol string, instrumentType types.InstrumentType, interval types.Interval, bars []types.Bar) (int64, error) {
	key, err := intervalKey(interval)
	if err != nil {
		return 0, err
	}
	inst, err := db.UpsertInstrument(ctx, symbol, "", instrumentType)
	if err != nil {
		return 0, err
	}
	n, err := db.bars.InsertBars(ctx, int32(inst.ID), key, bars)
	if err != nil {
		return 0, fmt.Errorf("insert bars for %s: %w", symbol, err)
	}
	return n, nil
}

func intervalKey(interval types.Interval) (string, error) {
	if _, ok := types.IntervalToTime[interval]; !ok {
		return "", ErrIntervalNotSupported
	}
	return string(interval), nil
}

func convertBars(rows []barRow, interval types.Interval, symbol string) []types.Bar {
	var bars []types.Bar
	for _, row := range rows {
		bar := types.Bar{
			Symbol:   symbol,
			Interval: interval,
			Open:     row.Open,
			High:     row.High,
			Low:      row.Low,
			Close:    row.Close,
			Volume:   row.Volume,
		}
		if row.Ts != nil {
			bar.Time = *row.Ts
		}
		bars = append(bars, bar)
	}
	return bars
}
