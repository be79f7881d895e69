package dipbuy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tradelab/types"
)

type Phase string

const (
	PhaseFlat         Phase = "FLAT"
	PhaseEnteringLong Phase = "ENTERING_LONG"
	PhaseLong         Phase = "LONG"
	PhaseExitingLong  Phase = "EXITING_LONG"
)

// Params tune the machine. DeclineBars is how many consecutive falling
// closes arm an entry. HoldBars counts from the bar on which the entry
// fill was reported, not from the bar that requested it.
type Params struct {
	DeclineBars int
	HoldBars    int
}

func DefaultParams() Params {
	return Params{DeclineBars: 2, HoldBars: 5}
}

// State is the full decision state of the machine. Transitions take a
// State value and return its successor; nothing is mutated in place.
// At most one order is ever in flight: only the Flat and Long branches of
// OnBar can emit a request, and both phases are left the moment one is
// emitted.
type State struct {
	Phase          Phase
	Quantity       decimal.Decimal
	EntryBarIndex  int
	PendingOrderID string
	PendingSide    types.Side
}

func NewState() State {
	return State{
		Phase:         PhaseFlat,
		Quantity:      decimal.Zero,
		EntryBarIndex: -1,
	}
}

// InFlight reports whether an order is awaiting a terminal update.
func (s State) InFlight() bool {
	return s.Phase == PhaseEnteringLong || s.Phase == PhaseExitingLong
}

// OnBar advances the machine for a freshly appended bar. barIndex is that
// bar's index. A too-short history never emits a request.
func (s State) OnBar(hist *types.History, barIndex int, p Params) (State, *types.OrderRequest) {
	switch s.Phase {
	case PhaseFlat:
		if !closesDeclined(hist, p.DeclineBars) {
			return s, nil
		}
		s.Phase = PhaseEnteringLong
		return s, &types.OrderRequest{
			Side:   types.SideTypeBuy,
			Type:   types.TypeMarket,
			Reason: fmt.Sprintf("close fell %d bars in a row", p.DeclineBars),
		}

	case PhaseLong:
		if barIndex < s.EntryBarIndex+p.HoldBars {
			return s, nil
		}
		s.Phase = PhaseExitingLong
		return s, &types.OrderRequest{
			Side:   types.SideTypeSell,
			Type:   types.TypeMarket,
			Reason: fmt.Sprintf("held %d bars since entry fill", p.HoldBars),
		}

	default:
		// An order is in flight; nothing to decide until it resolves.
		return s, nil
	}
}

// OnOrderUpdate advances the machine for an order lifecycle event.
// barIndex is the index of the bar on which the event is delivered.
// Pairings not handled below are no-ops.
func (s State) OnOrderUpdate(u types.OrderUpdate, barIndex int) State {
	switch s.Phase {
	case PhaseEnteringLong:
		switch u.Status {
		case types.OrderSubmitted, types.OrderAccepted:
			return s.recordPending(u)
		case types.OrderCompleted:
			s.Phase = PhaseLong
			s.Quantity = u.FilledQty
			s.EntryBarIndex = barIndex
			return s.clearPending()
		case types.OrderCanceled, types.OrderMargin, types.OrderRejected:
			return s.toFlat()
		}

	case PhaseExitingLong:
		switch u.Status {
		case types.OrderSubmitted, types.OrderAccepted:
			return s.recordPending(u)
		case types.OrderCompleted:
			return s.toFlat()
		case types.OrderCanceled, types.OrderMargin, types.OrderRejected:
			// The position is still on. Drop the dead order and fall back
			// to Long; the hold condition re-arms the exit next bar.
			s.Phase = PhaseLong
			return s.clearPending()
		}
	}
	return s
}

func (s State) recordPending(u types.OrderUpdate) State {
	if s.PendingOrderID == "" {
		s.PendingOrderID = u.OrderID
		s.PendingSide = u.Side
	}
	return s
}

func (s State) clearPending() State {
	s.PendingOrderID = ""
	s.PendingSide = ""
	return s
}

func (s State) toFlat() State {
	s.Phase = PhaseFlat
	s.Quantity = decimal.Zero
	s.EntryBarIndex = -1
	return s.clearPending()
}

// closesDeclined reports whether the newest n closes each fell below the
// close before them. False whenever the history is too short.
func closesDeclined(hist *types.History, n int) bool {
	for k := 0; k < n; k++ {
		cur, ok := hist.Close(-k)
		if !ok {
			return false
		}
		prev, ok := hist.Close(-k - 1)
		if !ok {
			return false
		}
		if !cur.LessThan(prev) {
			return false
		}
	}
	return true
}
