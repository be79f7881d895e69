package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tradelab/types"
)

// barSource loads the historical bars a run is driven by.
type barSource interface {
	GetBars(ctx context.Context, symbol string, interval types.Interval, start, end time.Time) ([]types.Bar, error)
}

type strategy interface {
	Init(api StrategyAPI) error
	OnBar(hist *types.History) *types.OrderRequest
	OnOrderUpdate(update types.OrderUpdate)
}

// sizer turns a request into a concrete order. A nil order means nothing
// sensible could be sized and the request is dropped.
type sizer interface {
	MakeOrder(req types.OrderRequest, view types.PortfolioView, refPrice decimal.Decimal, at time.Time) *types.Order
}

// broker accepts sized orders and resolves them against later bars.
// Submit returns the broker-assigned order id; ProcessBar resolves every
// order submitted before the given bar.
type broker interface {
	Submit(order types.Order) string
	ProcessBar(bar types.Bar, view types.PortfolioView) []types.ExecutionReport
}

// StrategyAPI is what a strategy gets handed at Init time. CurrentBarIndex
// is the index of the newest bar shown to the strategy, -1 before the
// first; while resolution updates are being delivered it still reads the
// bar the order was issued on.
type StrategyAPI interface {
	CurrentBarIndex() int
	LastPrice() decimal.Decimal
	Portfolio() types.PortfolioView
}
