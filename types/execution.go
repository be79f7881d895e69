package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionReport is the broker's account of what happened to an order.
// Margin and Rejected reports carry no fills.
type ExecutionReport struct {
	OrderID        string
	Symbol         string
	Side           Side
	Status         OrderStatus
	Fills          []Fill
	TotalFilledQty decimal.Decimal
	AvgFillPrice   decimal.Decimal
	TotalFees      decimal.Decimal
	RemainingQty   decimal.Decimal
	RejectReason   string
	ReportTime     time.Time
}

type Fill struct {
	Time     time.Time
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Fee      decimal.Decimal
}

func NewFill(t time.Time, price, quantity, fee decimal.Decimal) Fill {
	return Fill{
		Time:     t,
		Price:    price,
		Quantity: quantity,
		Fee:      fee,
	}
}
