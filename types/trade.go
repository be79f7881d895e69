package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one round trip: an opening buy matched with the sell that
// flattened it. ExitPrice and CloseTime are zero while the trip is open.
type Trade struct {
	Symbol     string
	Quantity   decimal.Decimal
	EntryPrice decimal.Decimal
	ExitPrice  decimal.Decimal
	Fees       decimal.Decimal
	NetProfit  decimal.Decimal
	OpenTime   time.Time
	CloseTime  time.Time
}

// Closed reports whether the round trip has both legs.
func (t Trade) Closed() bool {
	return !t.CloseTime.IsZero()
}
