package dipbuy

import (
	"testing"

	"github.com/shopspring/decimal"

	"tradelab/types"
)

func TestStrategyLifecycle(t *testing.T) {
	api := &stubAPI{barIndex: -1}
	s := New("ORCL", DefaultParams())
	if err := s.Init(api); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	closes := []string{"10", "9", "8", "7", "6", "5", "4", "3"}
	hist := types.NewHistory(len(closes))

	requests := make(map[int]types.Side)
	for i, c := range closes {
		// Terminal updates for the previous bar's order arrive while the
		// index still reads that bar.
		if st := s.State(); st.PendingOrderID != "" {
			s.OnOrderUpdate(update(st.PendingOrderID, types.OrderAccepted, st.PendingSide, "0"))
			s.OnOrderUpdate(update(st.PendingOrderID, types.OrderCompleted, st.PendingSide, "10"))
		}

		hist.Push(barAt(i, c))
		api.barIndex = i

		if req := s.OnBar(hist); req != nil {
			requests[i] = req.Side
			s.OnOrderUpdate(update("o-1", types.OrderSubmitted, req.Side, "0"))
		}
	}

	if side, ok := requests[2]; !ok || side != types.SideTypeBuy {
		t.Fatalf("requests[2] = %v, want BUY", requests[2])
	}
	if side, ok := requests[7]; !ok || side != types.SideTypeSell {
		t.Fatalf("requests[7] = %v, want SELL", requests[7])
	}
	if len(requests) != 2 {
		t.Fatalf("requests = %v, want exactly two", requests)
	}
}

func TestStrategyEntryBarFromFill(t *testing.T) {
	api := &stubAPI{barIndex: 2}
	s := New("ORCL", DefaultParams())
	if err := s.Init(api); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	hist := histFromCloses("10", "9", "8")
	req := s.OnBar(hist)
	if req == nil || req.Side != types.SideTypeBuy {
		t.Fatalf("expected buy request, got %+v", req)
	}
	s.OnOrderUpdate(update("o-1", types.OrderSubmitted, types.SideTypeBuy, "0"))

	// Fill reported while the index still reads the request bar.
	s.OnOrderUpdate(update("o-1", types.OrderCompleted, types.SideTypeBuy, "10"))

	st := s.State()
	if st.Phase != PhaseLong {
		t.Fatalf("phase = %s, want %s", st.Phase, PhaseLong)
	}
	if st.EntryBarIndex != 2 {
		t.Fatalf("entry bar = %d, want 2", st.EntryBarIndex)
	}
	if !st.Quantity.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("quantity = %s, want 10", st.Quantity.String())
	}
}

func TestStrategyExitRetriesAfterCancel(t *testing.T) {
	api := &stubAPI{barIndex: 7}
	s := New("ORCL", DefaultParams())
	if err := s.Init(api); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	s.state = longState(2, "10")

	hist := histFromCloses("10", "9", "8", "7", "6", "5", "4", "3")

	req := s.OnBar(hist)
	if req == nil || req.Side != types.SideTypeSell {
		t.Fatalf("bar 7: expected sell request, got %+v", req)
	}
	s.OnOrderUpdate(update("o-2", types.OrderSubmitted, types.SideTypeSell, "0"))

	// The sell dies; the position survives.
	s.OnOrderUpdate(update("o-2", types.OrderCanceled, types.SideTypeSell, "0"))
	if st := s.State(); st.Phase != PhaseLong || !st.Quantity.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("after cancel: state = %+v, want long with 10", st)
	}

	hist.Push(barAt(8, "2"))
	api.barIndex = 8
	req = s.OnBar(hist)
	if req == nil || req.Side != types.SideTypeSell {
		t.Fatalf("bar 8: expected retried sell request, got %+v", req)
	}
}

// Helper functions
type stubAPI struct {
	barIndex int
	last     decimal.Decimal
	view     types.PortfolioView
}

func (a *stubAPI) CurrentBarIndex() int {
	return a.barIndex
}

func (a *stubAPI) LastPrice() decimal.Decimal {
	return a.last
}

func (a *stubAPI) Portfolio() types.PortfolioView {
	return a.view
}
