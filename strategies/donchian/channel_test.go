package donchian

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradelab/types"
)

func TestChannelHighLow(t *testing.T) {
	// Highs 10, 12, 11, lows 9, 10, 8, then a current bar that must not
	// count toward the channel.
	hist := histFromBars(t, [][3]string{
		{"10", "9", "9.5"},
		{"12", "10", "11"},
		{"11", "8", "9"},
		{"20", "1", "15"},
	})

	high, ok := channelHigh(hist, 3)
	if !ok {
		t.Fatalf("channelHigh: not enough history")
	}
	if !high.Equal(decimal.RequireFromString("12")) {
		t.Fatalf("channel high: got %s, want 12", high)
	}

	low, ok := channelLow(hist, 3)
	if !ok {
		t.Fatalf("channelLow: not enough history")
	}
	if !low.Equal(decimal.RequireFromString("8")) {
		t.Fatalf("channel low: got %s, want 8", low)
	}
}

func TestChannelNeedsEnoughHistory(t *testing.T) {
	hist := histFromBars(t, [][3]string{
		{"10", "9", "9.5"},
		{"12", "10", "11"},
	})

	if _, ok := channelHigh(hist, 2); ok {
		t.Fatalf("channelHigh must report false with no completed window")
	}
	if _, ok := channelLow(hist, 5); ok {
		t.Fatalf("channelLow must report false with short history")
	}
}

func TestATR(t *testing.T) {
	// True ranges 1.5, 2, 1 seed the average at 1.5; the last range of
	// 2.5 smooths it to (1.5*2 + 2.5) / 3.
	hist := histFromBars(t, [][3]string{
		{"10", "9", "9.5"},
		{"11", "10", "10.5"},
		{"12", "10", "11"},
		{"11", "10", "10.5"},
		{"13", "11", "12"},
	})

	got := atr(hist, 3)
	want := decimal.RequireFromString("5.5").Div(decimal.NewFromInt(3))
	if !got.RoundBank(6).Equal(want.RoundBank(6)) {
		t.Fatalf("atr: got %s, want %s", got, want)
	}
}

func TestATRNeedsEnoughHistory(t *testing.T) {
	hist := histFromBars(t, [][3]string{
		{"10", "9", "9.5"},
		{"11", "10", "10.5"},
		{"12", "10", "11"},
	})

	if got := atr(hist, 3); !got.IsZero() {
		t.Fatalf("atr with short history: got %s, want 0", got)
	}
}

// Helper functions

func histFromBars(t *testing.T, rows [][3]string) *types.History {
	t.Helper()
	hist := types.NewHistory(len(rows))
	for i, row := range rows {
		hist.Push(barAt(i, row[0], row[1], row[2]))
	}
	return hist
}

func barAt(i int, high, low, close string) types.Bar {
	return types.Bar{
		Symbol:   "ORCL",
		Interval: types.Day,
		Time:     time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
		Open:     decimal.RequireFromString(low),
		High:     decimal.RequireFromString(high),
		Low:      decimal.RequireFromString(low),
		Close:    decimal.RequireFromString(close),
		Volume:   decimal.NewFromInt(1000),
	}
}
