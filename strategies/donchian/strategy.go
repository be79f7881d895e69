package donchian

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"tradelab/internal/engine"
	"tradelab/types"
)

// Params tune the channels. EntryLookback completed bars form the upper
// channel, ExitLookback the lower one. ATRPeriod and ATRMultiple place
// the protective stop under the entry close.
type Params struct {
	EntryLookback int
	ExitLookback  int
	ATRPeriod     int
	ATRMultiple   decimal.Decimal
}

func DefaultParams() Params {
	return Params{
		EntryLookback: 20,
		ExitLookback:  10,
		ATRPeriod:     20,
		ATRMultiple:   decimal.NewFromInt(2),
	}
}

// Strategy buys a close above the highest high of the previous
// EntryLookback bars and sells a close below the lowest low of the
// previous ExitLookback bars or below the ATR stop. Long only, single
// instrument, at most one order in flight.
type Strategy struct {
	symbol string
	params Params
	api    engine.StrategyAPI

	pending bool
	holding bool
	stop    decimal.Decimal
}

func New(symbol string, params Params) *Strategy {
	defaults := DefaultParams()
	if params.EntryLookback <= 0 {
		params.EntryLookback = defaults.EntryLookback
	}
	if params.ExitLookback <= 0 {
		params.ExitLookback = defaults.ExitLookback
	}
	if params.ATRPeriod <= 0 {
		params.ATRPeriod = defaults.ATRPeriod
	}
	if !params.ATRMultiple.IsPositive() {
		params.ATRMultiple = defaults.ATRMultiple
	}
	return &Strategy{
		symbol: symbol,
		params: params,
		stop:   decimal.Zero,
	}
}

func (s *Strategy) Init(api engine.StrategyAPI) error {
	s.api = api
	return nil
}

func (s *Strategy) OnBar(hist *types.History) *types.OrderRequest {
	if s.pending {
		return nil
	}
	bar, ok := hist.Last()
	if !ok {
		return nil
	}

	if !s.holding {
		high, ok := channelHigh(hist, s.params.EntryLookback)
		if !ok || !bar.Close.GreaterThan(high) {
			return nil
		}
		s.pending = true
		// The stop arms off the breakout close and is disarmed again if
		// the entry never fills.
		s.stop = bar.Close.Sub(atr(hist, s.params.ATRPeriod).Mul(s.params.ATRMultiple))
		return &types.OrderRequest{
			Side:   types.SideTypeBuy,
			Type:   types.TypeMarket,
			Reason: fmt.Sprintf("close above %d bar high", s.params.EntryLookback),
		}
	}

	if s.stop.IsPositive() && bar.Close.LessThan(s.stop) {
		s.pending = true
		return &types.OrderRequest{
			Side:   types.SideTypeSell,
			Type:   types.TypeMarket,
			Reason: "close under ATR stop",
		}
	}

	low, ok := channelLow(hist, s.params.ExitLookback)
	if !ok || !bar.Close.LessThan(low) {
		return nil
	}
	s.pending = true
	return &types.OrderRequest{
		Side:   types.SideTypeSell,
		Type:   types.TypeMarket,
		Reason: fmt.Sprintf("close below %d bar low", s.params.ExitLookback),
	}
}

func (s *Strategy) OnOrderUpdate(u types.OrderUpdate) {
	switch u.Status {
	case types.OrderCompleted:
		s.pending = false
		if u.Side == types.SideTypeBuy {
			s.holding = true
			log.Info().
				Str("symbol", s.symbol).
				Int("bar", s.api.CurrentBarIndex()).
				Stringer("price", u.AvgFillPrice).
				Stringer("stop", s.stop).
				Msg("channel entry filled")
			return
		}
		s.holding = false
		s.stop = decimal.Zero
		log.Info().
			Str("symbol", s.symbol).
			Int("bar", s.api.CurrentBarIndex()).
			Stringer("price", u.AvgFillPrice).
			Msg("channel exit filled")

	case types.OrderCanceled, types.OrderMargin, types.OrderRejected:
		s.pending = false
		if u.Side == types.SideTypeBuy {
			s.stop = decimal.Zero
		}
		log.Warn().
			Str("symbol", s.symbol).
			Int("bar", s.api.CurrentBarIndex()).
			Str("status", string(u.Status)).
			Msg("order not filled")
	}
}
