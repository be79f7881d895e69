package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one aggregated OHLCV row for an instrument.
type Bar struct {
	Symbol   string          `json:"symbol"`
	Interval Interval        `json:"interval"`
	Time     time.Time       `json:"time"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	Volume   decimal.Decimal `json:"volume"`
}
