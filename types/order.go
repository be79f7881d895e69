package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

type OrderType string

// OrderStatus is the lifecycle of an order as reported back to the
// strategy. Submitted and Accepted are informational; the other four are
// terminal and release the order slot.
type OrderStatus string

const (
	OrderSubmitted OrderStatus = "ORDER_SUBMITTED"
	OrderAccepted  OrderStatus = "ORDER_ACCEPTED"
	OrderCompleted OrderStatus = "ORDER_COMPLETED"
	OrderCanceled  OrderStatus = "ORDER_CANCELED"
	OrderMargin    OrderStatus = "ORDER_MARGIN"
	OrderRejected  OrderStatus = "ORDER_REJECTED"

	SideTypeBuy  Side = "BUY"
	SideTypeSell Side = "SELL"

	TypeMarket OrderType = "MARKET"
	TypeLimit  OrderType = "LIMIT"
)

func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderCompleted, OrderCanceled, OrderMargin, OrderRejected:
		return true
	default:
		return false
	}
}

// OrderRequest is what a strategy asks for. It carries no quantity; sizing
// happens outside the strategy.
type OrderRequest struct {
	Side   Side
	Type   OrderType
	Reason string
}

// OrderUpdate is delivered to the strategy as an order moves through its
// lifecycle. Fill economics are populated on Completed updates.
type OrderUpdate struct {
	OrderID      string
	Symbol       string
	Status       OrderStatus
	Side         Side
	FilledQty    decimal.Decimal
	AvgFillPrice decimal.Decimal
	Fee          decimal.Decimal
	Time         time.Time
}

// Order is a sized request as handed to the broker.
type Order struct {
	ID        string
	Symbol    string
	Side      Side
	Type      OrderType
	Quantity  decimal.Decimal
	Reason    string
	CreatedAt time.Time
}

func NewOrder(
	symbol string,
	side Side,
	orderType OrderType,
	quantity decimal.Decimal,
	reason string,
	createdAt time.Time,
) Order {
	return Order{
		Symbol:    symbol,
		Side:      side,
		Type:      orderType,
		Quantity:  quantity,
		Reason:    reason,
		CreatedAt: createdAt,
	}
}
