package dipbuy

import (
	"github.com/rs/zerolog/log"

	"tradelab/internal/engine"
	"tradelab/types"
)

// Strategy buys after a streak of falling closes and sells a fixed number
// of bars after the entry fill. Single instrument, long-only, at most one
// order in flight.
type Strategy struct {
	symbol string
	params Params
	state  State
	api    engine.StrategyAPI
}

func New(symbol string, params Params) *Strategy {
	if params.DeclineBars <= 0 {
		params.DeclineBars = DefaultParams().DeclineBars
	}
	if params.HoldBars <= 0 {
		params.HoldBars = DefaultParams().HoldBars
	}
	return &Strategy{
		symbol: symbol,
		params: params,
		state:  NewState(),
	}
}

func (s *Strategy) Init(api engine.StrategyAPI) error {
	s.api = api
	return nil
}

func (s *Strategy) OnBar(hist *types.History) *types.OrderRequest {
	barIndex := s.api.CurrentBarIndex()

	if c, ok := hist.Close(0); ok {
		log.Debug().
			Str("symbol", s.symbol).
			Int("bar", barIndex).
			Stringer("close", c).
			Msg("close")
	}

	next, req := s.state.OnBar(hist, barIndex, s.params)
	s.state = next

	if req != nil {
		log.Info().
			Str("symbol", s.symbol).
			Int("bar", barIndex).
			Str("side", string(req.Side)).
			Str("reason", req.Reason).
			Msg("order requested")
	}
	return req
}

func (s *Strategy) OnOrderUpdate(u types.OrderUpdate) {
	barIndex := s.api.CurrentBarIndex()
	s.state = s.state.OnOrderUpdate(u, barIndex)

	switch u.Status {
	case types.OrderCompleted:
		log.Info().
			Str("symbol", s.symbol).
			Int("bar", barIndex).
			Str("side", string(u.Side)).
			Stringer("price", u.AvgFillPrice).
			Stringer("qty", u.FilledQty).
			Stringer("fee", u.Fee).
			Msg("order executed")
	case types.OrderCanceled, types.OrderMargin, types.OrderRejected:
		log.Warn().
			Str("symbol", s.symbol).
			Int("bar", barIndex).
			Str("side", string(u.Side)).
			Str("status", string(u.Status)).
			Msg("order not filled")
	}
}

// State exposes the machine state, mainly for the end-of-run log line.
func (s *Strategy) State() State {
	return s.state
}
