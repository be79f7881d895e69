package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioView is a read-only snapshot of the portfolio at a point in
// time. Strategies and sizers see the portfolio only through views.
type PortfolioView struct {
	Cash      decimal.Decimal
	Positions map[string]PositionSnapshot
	Time      time.Time
}

type PositionSnapshot struct {
	Symbol        string
	Quantity      decimal.Decimal
	AvgEntryPrice decimal.Decimal
	LastPrice     decimal.Decimal
}

// Equity is cash plus the marked value of every position.
func (v PortfolioView) Equity() decimal.Decimal {
	total := v.Cash
	for _, pos := range v.Positions {
		total = total.Add(pos.Quantity.Mul(pos.LastPrice))
	}
	return total
}

// Position returns the snapshot for symbol, zero-valued when flat.
func (v PortfolioView) Position(symbol string) PositionSnapshot {
	return v.Positions[symbol]
}
