package feed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"tradelab/types"
)

var ErrNoBars = errors.New("no bars in requested range")

const dateLayout = "2006-01-02"

// CSVSource loads bars from per-symbol CSV files in a directory, one file
// per symbol named <SYMBOL>.csv. The expected layout is
// date,open,high,low,close,adj_close,volume with rows in ascending date
// order, as written by the downloader.
type CSVSource struct {
	dir string
}

func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{dir: dir}
}

func (s *CSVSource) GetBars(ctx context.Context, symbol string, interval types.Interval, start, end time.Time) ([]types.Bar, error) {
	path := filepath.Join(s.dir, symbol+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars file: %w", err)
	}
	defer f.Close()

	return readBars(f, symbol, interval, start, end)
}

// readBars parses CSV rows and keeps those with start <= date < end.
// A zero start or end leaves that side unbounded.
func readBars(r io.Reader, symbol string, interval types.Interval, start, end time.Time) ([]types.Bar, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) != 7 {
		return nil, fmt.Errorf("expected 7 columns, file has %d", len(header))
	}

	var bars []types.Bar
	var prev time.Time
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		ts, err := time.Parse(dateLayout, record[0])
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", record[0], err)
		}
		if !prev.IsZero() && !ts.After(prev) {
			return nil, fmt.Errorf("rows not in ascending date order at %s", record[0])
		}
		prev = ts

		if ts.Before(start) {
			continue
		}
		if !end.IsZero() && !ts.Before(end) {
			break
		}

		bar := types.Bar{
			Symbol:   symbol,
			Interval: interval,
			Time:     ts,
		}
		// Column 5 is the adjusted close, which the engine does not use.
		fields := []struct {
			dst *decimal.Decimal
			idx int
		}{
			{&bar.Open, 1},
			{&bar.High, 2},
			{&bar.Low, 3},
			{&bar.Close, 4},
			{&bar.Volume, 6},
		}
		for _, f := range fields {
			v, err := decimal.NewFromString(record[f.idx])
			if err != nil {
				return nil, fmt.Errorf("parse %s in column %d: %w", record[f.idx], f.idx, err)
			}
			*f.dst = v
		}
		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return nil, ErrNoBars
	}
	return bars, nil
}
