package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradelab/types"
)

func TestDownloaderRun(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 5)

	fetcher := &fakeFetcher{bars: map[string][]types.Bar{
		"ORCL": dailyBars("ORCL", start, 2),
		"SPY":  dailyBars("SPY", start, 3),
	}}
	ingester := &recordingIngester{}

	d := NewDownloader(fetcher, ingester, dir, 0)
	instruments := []Instrument{
		{Symbol: "ORCL", Name: "Oracle Corporation"},
		{Symbol: "MISSING", Name: "Delisted Corp"},
		{Symbol: "SPY", Name: "SPDR S&P 500", Type: "ETF"},
	}

	summary, err := d.Run(context.Background(), instruments, start, end)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Downloaded != 2 || summary.Failed != 1 || summary.Bars != 5 {
		t.Fatalf("summary: got %+v, want {Downloaded:2 Failed:1 Bars:5}", summary)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "ORCL.csv"))
	if err != nil {
		t.Fatalf("read ORCL.csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 3 {
		t.Fatalf("ORCL.csv: got %d lines, want 3", len(lines))
	}
	if lines[0] != "date,open,high,low,close,adj_close,volume" {
		t.Fatalf("header: got %s", lines[0])
	}
	if lines[1] != "2024-01-02,10,11,9,10.5,10.5,1000" {
		t.Fatalf("first row: got %s", lines[1])
	}

	if _, err := os.Stat(filepath.Join(dir, "MISSING.csv")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("MISSING.csv should not exist, stat err: %v", err)
	}

	if len(ingester.calls) != 2 {
		t.Fatalf("got %d ingest calls, want 2", len(ingester.calls))
	}
	spy := ingester.calls[1]
	if spy.symbol != "SPY" || spy.instrumentType != types.InstrumentTypeEtf {
		t.Fatalf("spy ingest call wrong: %+v", spy)
	}
	if spy.interval != types.Day || spy.count != 3 {
		t.Fatalf("spy ingest shape wrong: %+v", spy)
	}
}

func TestDownloaderRunWithoutIngester(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	fetcher := &fakeFetcher{bars: map[string][]types.Bar{
		"ORCL": dailyBars("ORCL", start, 1),
	}}

	d := NewDownloader(fetcher, nil, dir, 0)
	summary, err := d.Run(context.Background(), []Instrument{{Symbol: "ORCL"}}, start, start)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Downloaded != 1 || summary.Failed != 0 {
		t.Fatalf("summary: got %+v", summary)
	}
}

func TestDownloaderRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDownloader(&fakeFetcher{}, nil, t.TempDir(), 0)
	_, err := d.Run(ctx, []Instrument{{Symbol: "ORCL"}}, time.Time{}, time.Now())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got error %v, want context.Canceled", err)
	}
}

func TestWriteBars(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	if err := writeBars(&buf, dailyBars("ORCL", start, 2)); err != nil {
		t.Fatalf("writeBars: %v", err)
	}

	want := "date,open,high,low,close,adj_close,volume\n" +
		"2024-01-02,10,11,9,10.5,10.5,1000\n" +
		"2024-01-03,10,11,9,10.5,10.5,1000\n"
	if buf.String() != want {
		t.Fatalf("csv output:\ngot:\n%s\nwant:\n%s", buf.String(), want)
	}
}

// Helper functions

type fakeFetcher struct {
	bars map[string][]types.Bar
}

func (f *fakeFetcher) GetDailyBars(ctx context.Context, symbol string, start, end time.Time) ([]types.Bar, error) {
	bars, ok := f.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("symbol %s not served", symbol)
	}
	return bars, nil
}

type ingestCall struct {
	symbol         string
	instrumentType types.InstrumentType
	interval       types.Interval
	count          int
}

type recordingIngester struct {
	calls []ingestCall
}

func (r *recordingIngester) InsertBars(ctx context.Context, symbol string, instrumentType types.InstrumentType, interval types.Interval, bars []types.Bar) (int64, error) {
	r.calls = append(r.calls, ingestCall{
		symbol:         symbol,
		instrumentType: instrumentType,
		interval:       interval,
		count:          len(bars),
	})
	return int64(len(bars)), nil
}

func dailyBars(symbol string, start time.Time, n int) []types.Bar {
	bars := make([]types.Bar, 0, n)
	for i := 0; i < n; i++ {
		bars = append(bars, types.Bar{
			Symbol:   symbol,
			Interval: types.Day,
			Time:     start.AddDate(0, 0, i),
			Open:     decimal.RequireFromString("10"),
			High:     decimal.RequireFromString("11"),
			Low:      decimal.RequireFromString("9"),
			Close:    decimal.RequireFromString("10.5"),
			Volume:   decimal.RequireFromString("1000"),
		})
	}
	return bars
}
