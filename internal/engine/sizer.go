package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"tradelab/types"
)

// FixedQuantitySizer turns every buy request into an order for the same
// quantity. Sells always flatten whatever position is open.
type FixedQuantitySizer struct {
	symbol   string
	quantity decimal.Decimal
}

func NewFixedQuantitySizer(symbol string, quantity decimal.Decimal) *FixedQuantitySizer {
	return &FixedQuantitySizer{
		symbol:   symbol,
		quantity: quantity,
	}
}

func (s *FixedQuantitySizer) MakeOrder(req types.OrderRequest, view types.PortfolioView, refPrice decimal.Decimal, at time.Time) *types.Order {
	qty := s.quantity
	if req.Side == types.SideTypeSell {
		qty = view.Position(s.symbol).Quantity
	}
	if !qty.IsPositive() {
		return nil
	}
	order := types.NewOrder(s.symbol, req.Side, req.Type, qty, req.Reason, at)
	return &order
}

// CashFractionSizer spends a fixed fraction of free cash on each buy,
// floored to whole units at the reference price.
type CashFractionSizer struct {
	symbol   string
	fraction decimal.Decimal
}

func NewCashFractionSizer(symbol string, fraction decimal.Decimal) *CashFractionSizer {
	return &CashFractionSizer{
		symbol:   symbol,
		fraction: fraction,
	}
}

func (s *CashFractionSizer) MakeOrder(req types.OrderRequest, view types.PortfolioView, refPrice decimal.Decimal, at time.Time) *types.Order {
	var qty decimal.Decimal
	switch req.Side {
	case types.SideTypeBuy:
		if !refPrice.IsPositive() {
			return nil
		}
		qty = view.Cash.Mul(s.fraction).Div(refPrice).Floor()
	case types.SideTypeSell:
		qty = view.Position(s.symbol).Quantity
	}
	if !qty.IsPositive() {
		return nil
	}
	order := types.NewOrder(s.symbol, req.Side, req.Type, qty, req.Reason, at)
	return &order
}
