package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradelab/types"
)

func TestFixedQuantitySizer(t *testing.T) {
	tests := []struct {
		name     string
		quantity string
		req      types.OrderRequest
		position string
		wantQty  string
		wantNil  bool
	}{
		{
			name:     "buy uses fixed quantity",
			quantity: "10",
			req:      types.OrderRequest{Side: types.SideTypeBuy, Type: types.TypeMarket},
			position: "0",
			wantQty:  "10",
		},
		{
			name:     "sell flattens position",
			quantity: "10",
			req:      types.OrderRequest{Side: types.SideTypeSell, Type: types.TypeMarket},
			position: "7",
			wantQty:  "7",
		},
		{
			name:     "sell with nothing to sell",
			quantity: "10",
			req:      types.OrderRequest{Side: types.SideTypeSell, Type: types.TypeMarket},
			position: "0",
			wantNil:  true,
		},
		{
			name:     "zero fixed quantity",
			quantity: "0",
			req:      types.OrderRequest{Side: types.SideTypeBuy, Type: types.TypeMarket},
			position: "0",
			wantNil:  true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewFixedQuantitySizer("ORCL", decimal.RequireFromString(tc.quantity))
			view := viewWithPosition("ORCL", "10000", tc.position)

			order := s.MakeOrder(tc.req, view, decimal.RequireFromString("100"), time.UnixMilli(0))
			if tc.wantNil {
				if order != nil {
					t.Fatalf("got order %+v, want nil", order)
				}
				return
			}
			if order == nil {
				t.Fatalf("got nil order, want quantity %s", tc.wantQty)
			}
			if !order.Quantity.Equal(decimal.RequireFromString(tc.wantQty)) {
				t.Fatalf("quantity: got %s, want %s", order.Quantity, tc.wantQty)
			}
			if order.Side != tc.req.Side {
				t.Fatalf("side: got %s, want %s", order.Side, tc.req.Side)
			}
			if order.Symbol != "ORCL" {
				t.Fatalf("symbol: got %s, want ORCL", order.Symbol)
			}
		})
	}
}

func TestCashFractionSizer(t *testing.T) {
	tests := []struct {
		name     string
		fraction string
		cash     string
		refPrice string
		req      types.OrderRequest
		position string
		wantQty  string
		wantNil  bool
	}{
		{
			name:     "buy floors to whole units",
			fraction: "0.5",
			cash:     "10000",
			refPrice: "300",
			req:      types.OrderRequest{Side: types.SideTypeBuy, Type: types.TypeMarket},
			position: "0",
			wantQty:  "16", // 5000 / 300 = 16.66
		},
		{
			name:     "full cash",
			fraction: "1",
			cash:     "1000",
			refPrice: "100",
			req:      types.OrderRequest{Side: types.SideTypeBuy, Type: types.TypeMarket},
			position: "0",
			wantQty:  "10",
		},
		{
			name:     "cash below one unit",
			fraction: "0.5",
			cash:     "100",
			refPrice: "300",
			req:      types.OrderRequest{Side: types.SideTypeBuy, Type: types.TypeMarket},
			position: "0",
			wantNil:  true,
		},
		{
			name:     "zero reference price",
			fraction: "0.5",
			cash:     "10000",
			refPrice: "0",
			req:      types.OrderRequest{Side: types.SideTypeBuy, Type: types.TypeMarket},
			position: "0",
			wantNil:  true,
		},
		{
			name:     "sell flattens position",
			fraction: "0.5",
			cash:     "0",
			refPrice: "300",
			req:      types.OrderRequest{Side: types.SideTypeSell, Type: types.TypeMarket},
			position: "12",
			wantQty:  "12",
		},
		{
			name:     "sell with nothing to sell",
			fraction: "0.5",
			cash:     "0",
			refPrice: "300",
			req:      types.OrderRequest{Side: types.SideTypeSell, Type: types.TypeMarket},
			position: "0",
			wantNil:  true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewCashFractionSizer("ORCL", decimal.RequireFromString(tc.fraction))
			view := viewWithPosition("ORCL", tc.cash, tc.position)

			order := s.MakeOrder(tc.req, view, decimal.RequireFromString(tc.refPrice), time.UnixMilli(0))
			if tc.wantNil {
				if order != nil {
					t.Fatalf("got order %+v, want nil", order)
				}
				return
			}
			if order == nil {
				t.Fatalf("got nil order, want quantity %s", tc.wantQty)
			}
			if !order.Quantity.Equal(decimal.RequireFromString(tc.wantQty)) {
				t.Fatalf("quantity: got %s, want %s", order.Quantity, tc.wantQty)
			}
		})
	}
}

// Helper functions

func viewWithPosition(symbol, cash, qty string) types.PortfolioView {
	view := types.PortfolioView{
		Cash:      decimal.RequireFromString(cash),
		Positions: map[string]types.PositionSnapshot{},
	}
	quantity := decimal.RequireFromString(qty)
	if !quantity.IsZero() {
		view.Positions[symbol] = types.PositionSnapshot{
			Symbol:    symbol,
			Quantity:  quantity,
			LastPrice: decimal.RequireFromString("100"),
		}
	}
	return view
}
