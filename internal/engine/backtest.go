package engine

import (
	"context"

	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"

	"tradelab/types"
)

type backtester struct {
	feed            *FeedConfig
	portfolioConfig *PortfolioConfig
	strategy        strategy
	sizer           sizer
	broker          broker
	portfolio       *portfolio

	history  *types.History
	barIndex int
	lastBar  types.Bar

	ordersSubmitted int
	ordersFilled    int
	ordersFailed    int
}

func newBacktester(feed *FeedConfig, portfolioConfig *PortfolioConfig, strat strategy, sizing sizer, broker broker, portfolio *portfolio) *backtester {
	return &backtester{
		feed:            feed,
		portfolioConfig: portfolioConfig,
		strategy:        strat,
		sizer:           sizing,
		broker:          broker,
		portfolio:       portfolio,
		history:         types.NewHistory(0),
		barIndex:        -1,
	}
}

func (b *backtester) run(ctx context.Context, bars []types.Bar) error {
	progress := initProgressBar(len(bars))
	for _, bar := range bars {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := b.step(bar); err != nil {
			return err
		}
		progress.Add(1)
	}
	return nil
}

// runLive drains a bar channel until it closes or the context is done.
// Orders resolve against the open of the following bar exactly as in a
// backtest, so a paper session replays the same mechanics on live data.
func (b *backtester) runLive(ctx context.Context, bars <-chan types.Bar) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case bar, ok := <-bars:
			if !ok {
				return nil
			}
			if err := b.step(bar); err != nil {
				return err
			}
		}
	}
}

// step advances the clock by one bar. Orders submitted while the previous
// bar was current are resolved against this bar's open before the strategy
// hears about it, and fill notifications go out while the bar index still
// reads the bar the order was issued on.
func (b *backtester) step(bar types.Bar) error {
	reports := b.broker.ProcessBar(bar, b.portfolio.GetPortfolioSnapshot(bar.Time))
	if err := b.portfolio.processExecutions(reports); err != nil {
		return err
	}
	for _, report := range reports {
		switch report.Status {
		case types.OrderCompleted:
			b.ordersFilled++
		case types.OrderCanceled, types.OrderMargin, types.OrderRejected:
			b.ordersFailed++
		}
		for _, update := range updatesFromReport(report) {
			b.strategy.OnOrderUpdate(update)
		}
	}

	b.history.Push(bar)
	b.barIndex++
	b.lastBar = bar
	b.portfolio.markPrice(bar.Symbol, bar.Close)

	if req := b.strategy.OnBar(b.history); req != nil {
		view := b.portfolio.GetPortfolioSnapshot(bar.Time)
		if order := b.sizer.MakeOrder(*req, view, bar.Close, bar.Time); order != nil {
			id := b.broker.Submit(*order)
			b.ordersSubmitted++
			b.strategy.OnOrderUpdate(types.OrderUpdate{
				OrderID: id,
				Symbol:  order.Symbol,
				Status:  types.OrderSubmitted,
				Side:    order.Side,
				Time:    bar.Time,
			})
		}
	}

	snapshot := b.portfolio.GetPortfolioSnapshot(bar.Time)
	b.portfolio.snapshots = append(b.portfolio.snapshots, snapshot)
	return nil
}

// updatesFromReport expands a broker report into the update sequence a live
// venue would send. A fill is preceded by its acknowledgement.
func updatesFromReport(report types.ExecutionReport) []types.OrderUpdate {
	base := types.OrderUpdate{
		OrderID:      report.OrderID,
		Symbol:       report.Symbol,
		Side:         report.Side,
		FilledQty:    report.TotalFilledQty,
		AvgFillPrice: report.AvgFillPrice,
		Fee:          report.TotalFees,
		Time:         report.ReportTime,
	}

	if report.Status == types.OrderCompleted {
		accepted := base
		accepted.Status = types.OrderAccepted
		accepted.FilledQty = decimal.Zero
		accepted.AvgFillPrice = decimal.Zero
		accepted.Fee = decimal.Zero
		completed := base
		completed.Status = types.OrderCompleted
		return []types.OrderUpdate{accepted, completed}
	}

	failed := base
	failed.Status = report.Status
	return []types.OrderUpdate{failed}
}

func (b *backtester) CurrentBarIndex() int {
	return b.barIndex
}

func (b *backtester) LastPrice() decimal.Decimal {
	return b.lastBar.Close
}

func (b *backtester) Portfolio() types.PortfolioView {
	return b.portfolio.GetPortfolioSnapshot(b.lastBar.Time)
}

func initProgressBar(maxTicks int) *progressbar.ProgressBar {
	return progressbar.NewOptions(maxTicks,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription("Backtesting in progress..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
