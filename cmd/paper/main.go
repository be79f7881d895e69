package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"tradelab/internal/cfg"
	"tradelab/internal/engine"
	"tradelab/internal/feed"
	"tradelab/internal/logx"
	"tradelab/internal/results"
	"tradelab/strategies/dipbuy"
	"tradelab/strategies/donchian"
	"tradelab/types"
)

func main() {
	config := cfg.Load()
	logx.Setup(config.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, config); err != nil {
		log.Fatal().Err(err).Msg("paper session failed")
	}
}

func run(ctx context.Context, config cfg.Config) error {
	interval, err := types.ParseInterval(config.Interval)
	if err != nil {
		return err
	}

	strat, err := newStrategy(config)
	if err != nil {
		return err
	}

	// Paper trading replays the backtest mechanics on live candles, so
	// the feed window is open ended.
	eng, err := engine.NewEngine(
		engine.NewFeedConfig(config.Symbol, interval, time.Time{}, time.Time{}),
		engine.NewPortfolioConfig(decimal.NewFromFloat(config.InitialCash), config.AllowShortSelling),
		engine.NewReportingConfig(decimal.NewFromFloat(config.RiskFreeRate), config.ReportName, config.TradesCSVPath),
		strat,
		newSizer(config),
		engine.NewSimBroker(decimal.NewFromFloat(config.CommissionRate)),
		nil,
	)
	if err != nil {
		return err
	}

	stream := feed.NewStream(config.StreamURL, config.Symbol, interval)
	streamErr := make(chan error, 1)
	go func() { streamErr <- stream.Run(ctx) }()

	startedAt := time.Now()
	if err := eng.RunLive(ctx, stream.Bars()); err != nil {
		return err
	}
	logFinalPhase(strat)

	if err := <-streamErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if config.ResultsPath != "" {
		// The session context is already canceled once RunLive returns,
		// so the archive write gets its own.
		if err := archiveRun(context.Background(), config, eng, startedAt, interval); err != nil {
			return err
		}
	}
	log.Info().Msg("paper session closed")
	return nil
}

func archiveRun(ctx context.Context, config cfg.Config, eng *engine.Engine, startedAt time.Time, interval types.Interval) error {
	store, err := results.NewStore(config.ResultsPath)
	if err != nil {
		return fmt.Errorf("open results store: %w", err)
	}
	defer store.Close()

	id, err := store.SaveRun(ctx, results.Run{
		Name:       config.ReportName,
		Symbol:     config.Symbol,
		Interval:   interval,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
		Report:     eng.Result(),
		Equity:     eng.EquityCurve(),
		Trades:     eng.Trades(),
	})
	if err != nil {
		return fmt.Errorf("archive run: %w", err)
	}
	log.Info().Int64("run_id", id).Str("path", config.ResultsPath).Msg("run archived")
	return nil
}

type tradingStrategy interface {
	Init(api engine.StrategyAPI) error
	OnBar(hist *types.History) *types.OrderRequest
	OnOrderUpdate(update types.OrderUpdate)
}

func newStrategy(config cfg.Config) (tradingStrategy, error) {
	switch config.Strategy {
	case "dipbuy":
		return dipbuy.New(config.Symbol, dipbuy.Params{
			DeclineBars: config.DeclineBars,
			HoldBars:    config.HoldBars,
		}), nil
	case "donchian":
		return donchian.New(config.Symbol, donchian.Params{
			EntryLookback: config.EntryLookback,
			ExitLookback:  config.ExitLookback,
			ATRPeriod:     config.ATRPeriod,
			ATRMultiple:   decimal.NewFromFloat(config.ATRMultiple),
		}), nil
	}
	return nil, fmt.Errorf("unknown strategy %q", config.Strategy)
}

// logFinalPhase reports where the machine ended up, pending order included,
// for strategies that expose their state.
func logFinalPhase(strat tradingStrategy) {
	d, ok := strat.(*dipbuy.Strategy)
	if !ok {
		return
	}
	final := d.State()
	evt := log.Info().Str("phase", string(final.Phase))
	if final.PendingOrderID != "" {
		evt = evt.Str("abandoned_order", final.PendingOrderID)
	}
	evt.Msg("strategy final state")
}

type orderSizer interface {
	MakeOrder(req types.OrderRequest, view types.PortfolioView, refPrice decimal.Decimal, at time.Time) *types.Order
}

func newSizer(config cfg.Config) orderSizer {
	if config.OrderQuantity > 0 {
		return engine.NewFixedQuantitySizer(config.Symbol, decimal.NewFromFloat(config.OrderQuantity))
	}
	return engine.NewCashFractionSizer(config.Symbol, decimal.NewFromFloat(config.CashFraction))
}
