package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"tradelab/types"
)

type Engine struct {
	source          barSource
	feed            *FeedConfig
	reportingConfig *ReportingConfig
	backtester      *backtester
}

func NewEngine(feed *FeedConfig, portfolioConfig *PortfolioConfig, reportingConfig *ReportingConfig, strat strategy, sizing sizer, broker broker, source barSource) (*Engine, error) {
	pf := newPortfolio(portfolioConfig.initialCash, portfolioConfig.allowShortSelling)
	bt := newBacktester(feed, portfolioConfig, strat, sizing, broker, pf)
	if err := strat.Init(bt); err != nil {
		return nil, fmt.Errorf("init strategy: %w", err)
	}
	return &Engine{
		source:          source,
		feed:            feed,
		reportingConfig: reportingConfig,
		backtester:      bt,
	}, nil
}

func (e *Engine) Run(ctx context.Context) error {
	bars, err := e.source.GetBars(ctx, e.feed.symbol, e.feed.interval, e.feed.start, e.feed.end)
	if err != nil {
		return fmt.Errorf("load bars: %w", err)
	}
	log.Info().
		Str("symbol", e.feed.symbol).
		Str("interval", string(e.feed.interval)).
		Int("bars", len(bars)).
		Msg("starting backtest")

	if err := e.backtester.run(ctx, bars); err != nil {
		return err
	}
	return e.report()
}

// RunLive consumes bars from a live feed instead of a historical source.
// A canceled context is the normal way a paper session ends.
func (e *Engine) RunLive(ctx context.Context, bars <-chan types.Bar) error {
	log.Info().
		Str("symbol", e.feed.symbol).
		Str("interval", string(e.feed.interval)).
		Msg("starting paper session")

	err := e.backtester.runLive(ctx, bars)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return e.report()
}

func (e *Engine) report() error {
	report := e.generateReport()
	e.printReport(report)
	if e.reportingConfig.tradesFilePath != "" {
		trades := executionsToTrades(e.backtester.portfolio)
		if err := e.writeTradesCSVFile(e.reportingConfig.tradesFilePath, trades); err != nil {
			return fmt.Errorf("write trades csv: %w", err)
		}
		log.Info().Str("path", e.reportingConfig.tradesFilePath).Msg("trades exported")
	}
	return nil
}

// Result exposes the run outcome for callers that archive it.
func (e *Engine) Result() *Report {
	return e.generateReport()
}

// EquityCurve returns the per-bar portfolio snapshots recorded during
// the run, in bar order.
func (e *Engine) EquityCurve() []types.PortfolioView {
	return e.backtester.portfolio.snapshots
}

// Trades returns the run's round trips in open-time order, trips still
// open at the end of the run included.
func (e *Engine) Trades() []types.Trade {
	return roundTrips(executionsToTrades(e.backtester.portfolio))
}

var _ StrategyAPI = (*backtester)(nil)
