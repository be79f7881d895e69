package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tradelab/types"
)

// FeeSchedule computes the commission for a fill with the given notional
// value.
type FeeSchedule func(tradeValue decimal.Decimal) decimal.Decimal

// ProportionalFee charges notional times rate.
func ProportionalFee(rate decimal.Decimal) FeeSchedule {
	return func(tradeValue decimal.Decimal) decimal.Decimal {
		return tradeValue.Mul(rate)
	}
}

// TieredFee charges notional times rate clamped to a per-order minimum
// and maximum, the shape of fixed-pricing broker schedules.
func TieredFee(rate, minFee, maxFee decimal.Decimal) FeeSchedule {
	return func(tradeValue decimal.Decimal) decimal.Decimal {
		if tradeValue.LessThanOrEqual(decimal.Zero) {
			return decimal.Zero
		}
		fee := tradeValue.Mul(rate)
		if fee.LessThan(minFee) {
			fee = minFee
		}
		if fee.GreaterThan(maxFee) {
			fee = maxFee
		}
		return fee
	}
}

// SimBroker resolves market orders at the open of the next bar it sees.
// A buy whose cost exceeds available cash comes back as OrderMargin with
// no fills; sells are covered by inventory the portfolio already guards.
type SimBroker struct {
	fee     FeeSchedule
	pending []types.Order
	nextID  int
}

func NewSimBroker(commissionRate decimal.Decimal) *SimBroker {
	return NewSimBrokerWithFee(ProportionalFee(commissionRate))
}

func NewSimBrokerWithFee(fee FeeSchedule) *SimBroker {
	return &SimBroker{
		fee:    fee,
		nextID: 1,
	}
}

func (b *SimBroker) Submit(order types.Order) string {
	id := fmt.Sprintf("sim-%d", b.nextID)
	b.nextID++
	order.ID = id
	b.pending = append(b.pending, order)
	return id
}

// PendingCount reports orders submitted but not yet resolved. Whatever is
// still pending when the data runs out stays unresolved.
func (b *SimBroker) PendingCount() int {
	return len(b.pending)
}

func (b *SimBroker) ProcessBar(bar types.Bar, view types.PortfolioView) []types.ExecutionReport {
	if len(b.pending) == 0 {
		return nil
	}

	reports := make([]types.ExecutionReport, 0, len(b.pending))
	cash := view.Cash
	for _, order := range b.pending {
		report := b.resolve(order, bar, cash)
		if report.Status == types.OrderCompleted && order.Side == types.SideTypeBuy {
			cash = cash.Sub(report.AvgFillPrice.Mul(report.TotalFilledQty)).Sub(report.TotalFees)
		}
		reports = append(reports, report)
	}
	b.pending = nil
	return reports
}

func (b *SimBroker) resolve(order types.Order, bar types.Bar, cash decimal.Decimal) types.ExecutionReport {
	report := types.ExecutionReport{
		OrderID:      order.ID,
		Symbol:       order.Symbol,
		Side:         order.Side,
		RemainingQty: order.Quantity,
		ReportTime:   bar.Time,
	}

	if !order.Quantity.IsPositive() {
		report.Status = types.OrderRejected
		report.RejectReason = "non-positive quantity"
		return report
	}

	price := bar.Open
	fee := b.fee(price.Mul(order.Quantity))

	if order.Side == types.SideTypeBuy {
		cost := price.Mul(order.Quantity).Add(fee)
		if cost.GreaterThan(cash) {
			report.Status = types.OrderMargin
			report.RejectReason = "insufficient cash"
			return report
		}
	}

	report.Status = types.OrderCompleted
	report.Fills = []types.Fill{types.NewFill(bar.Time, price, order.Quantity, fee)}
	report.TotalFilledQty = order.Quantity
	report.AvgFillPrice = price
	report.TotalFees = fee
	report.RemainingQty = decimal.Zero
	return report
}
