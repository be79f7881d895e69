package donchian

import (
	"github.com/shopspring/decimal"

	"tradelab/types"
)

// channelHigh returns the highest high of the lookback completed bars
// before the current one. ok is false until enough history exists.
func channelHigh(hist *types.History, lookback int) (decimal.Decimal, bool) {
	oldest, ok := hist.Bar(-lookback)
	if !ok {
		return decimal.Decimal{}, false
	}
	highest := oldest.High
	for off := -lookback + 1; off <= -1; off++ {
		bar, _ := hist.Bar(off)
		if bar.High.GreaterThan(highest) {
			highest = bar.High
		}
	}
	return highest, true
}

// channelLow is the mirror of channelHigh over the lows.
func channelLow(hist *types.History, lookback int) (decimal.Decimal, bool) {
	oldest, ok := hist.Bar(-lookback)
	if !ok {
		return decimal.Decimal{}, false
	}
	lowest := oldest.Low
	for off := -lookback + 1; off <= -1; off++ {
		bar, _ := hist.Bar(off)
		if bar.Low.LessThan(lowest) {
			lowest = bar.Low
		}
	}
	return lowest, true
}

// atr is the Wilder average true range over the whole history: a simple
// average seeds the first period, later ranges fold in recursively.
// Zero until period+1 bars exist.
func atr(hist *types.History, period int) decimal.Decimal {
	n := hist.Len()
	if n < period+1 {
		return decimal.Zero
	}

	trueRanges := make([]decimal.Decimal, 0, n-1)
	for off := -(n - 2); off <= 0; off++ {
		cur, _ := hist.Bar(off)
		prev, _ := hist.Bar(off - 1)
		trueRanges = append(trueRanges, decimal.Max(
			cur.High.Sub(cur.Low),
			cur.High.Sub(prev.Close).Abs(),
			cur.Low.Sub(prev.Close).Abs(),
		))
	}

	periodD := decimal.NewFromInt(int64(period))
	value := decimal.Zero
	for _, tr := range trueRanges[:period] {
		value = value.Add(tr)
	}
	value = value.Div(periodD)

	for i := period; i < len(trueRanges); i++ {
		value = value.Mul(decimal.NewFromInt(int64(period - 1))).Add(trueRanges[i]).Div(periodD)
	}
	return value
}
