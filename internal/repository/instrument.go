package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tradelab/types"
)

// GetInstrumentBySymbol retrieves a types.Instrument by its symbol.
func (db *Database) GetInstrumentBySymbol(ctx context.Context, symbol string) (*types.Instrument, error) {
	row, err := db.instruments.GetInstrumentBySymbol(ctx, symbol)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("symbol %s %w", symbol, ErrInstrumentNotFound)
		}
		return nil, err
	}
	return instrumentFromRow(row), nil
}

// UpsertInstrument registers a symbol, updating name and type when it
// already exists.
func (db *Database) UpsertInstrument(ctx context.Context, symbol, name string, instrumentType types.InstrumentType) (*types.Instrument, error) {
	row, err := db.instruments.UpsertInstrument(ctx, symbol, name, string(instrumentType))
	if err != nil {
		return nil, fmt.Errorf("upsert instrument %s: %w", symbol, err)
	}
	return instrumentFromRow(row), nil
}

func instrumentFromRow(row instrumentRow) *types.Instrument {
	inst := &types.Instrument{
		ID:     int(row.ID),
		Symbol: row.Symbol,
		Name:   row.Name,
		Type:   types.InstrumentType(row.Type),
	}
	if row.CreatedAt != nil {
		inst.CreatedAt = *row.CreatedAt
	}
	if row.ModifiedAt != nil {
		inst.ModifiedAt = *row.ModifiedAt
	}
	return inst
}
