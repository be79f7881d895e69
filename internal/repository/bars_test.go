package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"tradelab/types"
)

var testInterval = types.Day
var startTime = time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)
var endTime = startTime.AddDate(0, 0, 5)

type mockBarsRepository struct {
	sqlError error
	lastArg  *getBarsParams
}

func TestDatabase_GetAggregates(t *testing.T) {
	tests := []struct {
		name     string
		interval types.Interval
		sqlErr   error
		wantErr  error
		wantBars int
	}{
		{"no rows error maps to ErrNoBars", testInterval, pgx.ErrNoRows, ErrNoBars, 0},
		{"unsupported interval", types.Interval("3m"), nil, ErrIntervalNotSupported, 0},
		{"bars returned", testInterval, nil, nil, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &Database{
				bars: &mockBarsRepository{sqlError: tt.sqlErr},
			}
			got, err := db.GetAggregates(context.Background(), 7, "ORCL", tt.interval, startTime, endTime)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("GetAggregates() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetAggregates() error = %v", err)
			}
			if len(got) != tt.wantBars {
				t.Fatalf("GetAggregates() returned %d bars, want %d", len(got), tt.wantBars)
			}
			for _, bar := range got {
				if bar.Symbol != "ORCL" {
					t.Errorf("bar symbol = %v, want ORCL", bar.Symbol)
				}
				if bar.Interval != tt.interval {
					t.Errorf("bar interval = %v, want %v", bar.Interval, tt.interval)
				}
				if !bar.Close.Equal(decimal.NewFromInt(bar.Time.Unix())) {
					t.Errorf("bar %v close = %v, want %v", bar.Time, bar.Close, bar.Time.Unix())
				}
			}
		})
	}
}

func TestDatabase_GetAggregatesEmptyRange(t *testing.T) {
	db := &Database{
		bars: &mockBarsRepository{},
	}
	_, err := db.GetAggregates(context.Background(), 7, "ORCL", testInterval, startTime, startTime)
	if !errors.Is(err, ErrNoBars) {
		t.Fatalf("GetAggregates() on empty range: error = %v, want %v", err, ErrNoBars)
	}
}

func TestDatabase_GetBarsComposesLookup(t *testing.T) {
	barsMock := &mockBarsRepository{}
	db := &Database{
		instruments: mockInstrumentsRepository{},
		bars:        barsMock,
	}

	got, err := db.GetBars(context.Background(), "ORCL", testInterval, startTime, endTime)
	if err != nil {
		t.Fatalf("GetBars() error = %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("GetBars() returned %d bars, want 5", len(got))
	}
	// The mock instrument carries id 1; the bar query must use it.
	if barsMock.lastArg == nil || barsMock.lastArg.InstrumentID != 1 {
		t.Fatalf("GetBars() queried instrument %+v, want id 1", barsMock.lastArg)
	}

	db = &Database{
		instruments: mockInstrumentsRepository{sqlError: pgx.ErrNoRows},
		bars:        barsMock,
	}
	if _, err := db.GetBars(context.Background(), "ORCL", testInterval, startTime, endTime); !errors.Is(err, ErrInstrumentNotFound) {
		t.Fatalf("GetBars() on unknown symbol: error = %v, want %v", err, ErrInstrumentNotFound)
	}
}

func (m *mockBarsRepository) GetAggregates(_ context.Context, arg getBarsParams) ([]barRow, error) {
	m.lastArg = &arg
	if m.sqlError != nil {
		return nil, m.sqlError
	}
	var rows []barRow
	step := types.IntervalToTime[types.Interval(arg.Interval)]
	for i := *arg.Start; i.Before(*arg.End); i = i.Add(step) {
		ts := i
		price := decimal.NewFromInt(ts.Unix())
		rows = append(rows, barRow{
			Ts:           &ts,
			InstrumentID: arg.InstrumentID,
			Open:         price,
			High:         price,
			Low:          price,
			Close:        price,
			Volume:       price,
		})
	}
	return rows, nil
}

func (m *mockBarsRepository) InsertBars(_ context.Context, instrumentID int32, interval string, bars []types.Bar) (int64, error) {
	if m.sqlError != nil {
		return 0, m.sqlError
	}
	return int64(len(bars)), nil
}
