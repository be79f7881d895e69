package main

import (
	"context"
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
	"tradelab/internal/repository"
	"tradelab/internal/results"
	"tradelab/strategies/dipbuy"
	"tradelab/strategies/donchian"
	"tradelab/types"
)

const dateLayout = "2006-01-02"

func main() {
	config := cfg.Load()
	logx.Setup(config.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, config); err != nil {
		log.Fatal().Err(err).Msg("backtest failed")
	}
}

func run(ctx context.Context, config cfg.Config) error {
	interval, err := types.ParseInterval(config.Interval)
	if err != nil {
		return err
	}
	start, err := time.Parse(dateLayout, config.Start)
	if err != nil {
		return fmt.Errorf("parse start date: %w", err)
	}
	end, err := time.Parse(dateLayout, config.End)
	if err != nil {
		return fmt.Errorf("parse end date: %w", err)
	}

	source, closeSource, err := newBarSource(config)
	if err != nil {
		return err
	}
	defer closeSource()

	strat, err := newStrategy(config)
	if err != nil {
		return err
	}

	eng, err := engine.NewEngine(
		engine.NewFeedConfig(config.Symbol, interval, start, end),
		engine.NewPortfolioConfig(decimal.NewFromFloat(config.InitialCash), config.AllowShortSelling),
		engine.NewReportingConfig(decimal.NewFromFloat(config.RiskFreeRate), config.ReportName, config.TradesCSVPath),
		strat,
		newSizer(config),
		engine.NewSimBroker(decimal.NewFromFloat(config.CommissionRate)),
		source,
	)
	if err != nil {
		return err
	}

	startedAt := time.Now()
	if err := eng.Run(ctx); err != nil {
		return err
	}
	logFinalPhase(strat)

	if config.ResultsPath != "" {
		return archiveRun(ctx, config, eng, startedAt, interval)
	}
	return nil
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

type barSource interface {
	GetBars(ctx context.Context, symbol string, interval types.Interval, start, end time.Time) ([]types.Bar, error)
}

// newBarSource picks postgres when a database URL is configured and the
// CSV data directory otherwise.
func newBarSource(config cfg.Config) (barSource, func(), error) {
	if config.DatabaseURL != "" {
		db, err := repository.NewDatabase(config.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		return &db, db.Close, nil
	}
	return feed.NewCSVSource(config.DataDir), func() {}, nil
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

type orderSizer interface {
	MakeOrder(req types.OrderRequest, view types.PortfolioView, refPrice decimal.Decimal, at time.Time) *types.Order
}

func newSizer(config cfg.Config) orderSizer {
	if config.OrderQuantity > 0 {
		return engine.NewFixedQuantitySizer(config.Symbol, decimal.NewFromFloat(config.OrderQuantity))
	}
	return engine.NewCashFractionSizer(config.Symbol, decimal.NewFromFloat(config.CashFraction))
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
