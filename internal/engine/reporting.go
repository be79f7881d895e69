package engine

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tradelab/types"
)

type Report struct {
	// Meta / period info
	StartDate   time.Time
	TotalPeriod time.Duration
	TotalBars   int
	TotalTrades int

	// Order flow
	OrdersSubmitted int
	OrdersFilled    int
	OrdersFailed    int
	OrdersAbandoned int

	// Absolute performance
	NetProfit            decimal.Decimal
	NetAvgProfitPerTrade decimal.Decimal
	CAGR                 decimal.Decimal

	// Trade-level distribution metrics
	AvgWin  decimal.Decimal
	AvgLoss decimal.Decimal

	// Drawdown & loss streak metrics
	MaxDrawdown          decimal.Decimal
	MaxDrawdownPercent   decimal.Decimal
	MaxDrawdownDays      time.Duration
	MaxConsecutiveLosses int

	// Risk-adjusted metrics
	SharpeRatio decimal.Decimal

	// Costs & final state
	TotalFees   decimal.Decimal
	FinalCash   decimal.Decimal
	FinalEquity decimal.Decimal
}

// trade is one round trip. Either leg may be nil when the run ended with
// the position still open or never entered.
type trade struct {
	buy  *types.ExecutionReport
	sell *types.ExecutionReport
}

func (e *Engine) printReport(report *Report) {

	fmt.Printf("===== %s =====\n", e.reportingConfig.reportName)
	fmt.Printf("Start Date:            %s\n", report.StartDate.Format("2006-01-02"))
	fmt.Printf("Total Period:          %d days\n", report.TotalPeriod/(24*time.Hour))
	fmt.Printf("Total Bars:            %d\n", report.TotalBars)
	fmt.Printf("Total Trades:          %d\n", report.TotalTrades)

	fmt.Println("\n-- Order Flow --")
	fmt.Printf("Orders Submitted:      %d\n", report.OrdersSubmitted)
	fmt.Printf("Orders Filled:         %d\n", report.OrdersFilled)
	fmt.Printf("Orders Failed:         %d\n", report.OrdersFailed)
	fmt.Printf("Orders Abandoned:      %d\n", report.OrdersAbandoned)

	fmt.Println("\n-- Absolute Performance --")
	fmt.Printf("Net Profit:            %s\n", report.NetProfit)
	fmt.Printf("Avg Profit/Trade:      %s\n", report.NetAvgProfitPerTrade)
	fmt.Printf("CAGR:                  %s\n", report.CAGR)

	fmt.Println("\n-- Trade-Level Metrics --")
	fmt.Printf("Avg Win:               %s\n", report.AvgWin)
	fmt.Printf("Avg Loss:              %s\n", report.AvgLoss)

	fmt.Println("\n-- Drawdown Metrics --")
	fmt.Printf("Max Drawdown:          %s\n", report.MaxDrawdown)
	fmt.Printf("Max Drawdown %%:        %s\n", report.MaxDrawdownPercent)
	fmt.Printf("Max Drawdown Days:     %v\n", report.MaxDrawdownDays)
	fmt.Printf("Max Consecutive Losses:%d\n", report.MaxConsecutiveLosses)

	fmt.Println("\n-- Risk-Adjusted Metrics --")
	fmt.Printf("Sharpe Ratio:          %s\n", report.SharpeRatio)

	fmt.Println("\n-- Costs & Final State --")
	fmt.Printf("Total Fees:            %s\n", report.TotalFees)
	fmt.Printf("Final Cash:            %s\n", report.FinalCash)
	fmt.Printf("Final Equity:          %s\n", report.FinalEquity)

	fmt.Println("==========================")
}

func (e *Engine) generateReport() *Report {
	results := e.backtester.portfolio
	trades := executionsToTrades(results)

	report := &Report{}
	if len(results.snapshots) > 0 {
		first := results.snapshots[0]
		last := results.snapshots[len(results.snapshots)-1]
		report.StartDate = first.Time
		report.TotalPeriod = last.Time.Sub(first.Time)
		report.FinalCash = last.Cash
		report.FinalEquity = last.Equity()
	}
	report.TotalBars = e.backtester.barIndex + 1
	report.TotalTrades = len(trades)
	report.OrdersSubmitted = e.backtester.ordersSubmitted
	report.OrdersFilled = e.backtester.ordersFilled
	report.OrdersFailed = e.backtester.ordersFailed
	report.OrdersAbandoned = report.OrdersSubmitted - report.OrdersFilled - report.OrdersFailed

	var wg sync.WaitGroup
	wg.Add(8)
	go func() {
		report.NetProfit = calcNetProfit(trades, &wg)
	}()
	go func() {
		report.NetAvgProfitPerTrade = calcNetAvgProfitPerTrade(trades, &wg)
	}()
	go func() {
		report.AvgWin, report.AvgLoss = calcAvgWinLossPerTrade(trades, &wg)
	}()
	go func() {
		report.CAGR = calcCAGR(results.snapshots, &wg)
	}()
	go func() {
		report.MaxDrawdown, report.MaxDrawdownPercent, report.MaxDrawdownDays = calcDrawdownMetrics(results.snapshots, &wg)
	}()
	go func() {
		report.MaxConsecutiveLosses = calcMaxConsecutiveLosses(trades, &wg)
	}()
	go func() {
		report.SharpeRatio = calcSharpeRatio(results.snapshots, e.reportingConfig.sharpeRiskFreeRate, &wg)
	}()
	go func() {
		report.TotalFees = calcTotalFees(trades, &wg)
	}()
	wg.Wait()

	return report
}

// tradePnL walks both legs of a trade. Gross profit is sell proceeds minus
// buy cost. The trade only counts as realized when both legs are present;
// fees are sunk either way. closeTime is the latest leg time.
func tradePnL(tr trade) (gross, fees decimal.Decimal, realized bool, closeTime time.Time) {
	hasBuy, hasSell := false, false

	walk := func(report *types.ExecutionReport) {
		if report == nil {
			return
		}
		if report.ReportTime.After(closeTime) {
			closeTime = report.ReportTime
		}
		for _, fill := range report.Fills {
			fees = fees.Add(fill.Fee)
			value := fill.Quantity.Mul(fill.Price)
			switch report.Side {
			case types.SideTypeBuy:
				gross = gross.Sub(value)
				hasBuy = true
			case types.SideTypeSell:
				gross = gross.Add(value)
				hasSell = true
			}
		}
	}

	walk(tr.buy)
	walk(tr.sell)
	return gross, fees, hasBuy && hasSell, closeTime
}

// roundTrips flattens leg pairs into the archival trade shape. A trip
// still open at the end of the run keeps a zero ExitPrice and CloseTime;
// its NetProfit is the sunk fees.
func roundTrips(trades []trade) []types.Trade {
	trips := make([]types.Trade, 0, len(trades))
	for _, tr := range trades {
		gross, fees, realized, closeTime := tradePnL(tr)
		trip := types.Trade{
			Fees:     fees,
			OpenTime: tradeTime(tr),
		}
		if tr.buy != nil {
			trip.Symbol = tr.buy.Symbol
			trip.Quantity = tr.buy.TotalFilledQty
			trip.EntryPrice = tr.buy.AvgFillPrice
		} else if tr.sell != nil {
			trip.Symbol = tr.sell.Symbol
			trip.Quantity = tr.sell.TotalFilledQty
		}
		if realized {
			trip.ExitPrice = tr.sell.AvgFillPrice
			trip.CloseTime = closeTime
			trip.NetProfit = gross.Sub(fees)
		} else {
			trip.NetProfit = fees.Neg()
		}
		trips = append(trips, trip)
	}
	return trips
}

func calcNetProfit(trades []trade, wg *sync.WaitGroup) decimal.Decimal {
	defer wg.Done()

	netProfit := decimal.Zero
	for _, tr := range trades {
		gross, fees, realized, _ := tradePnL(tr)
		if realized {
			netProfit = netProfit.Add(gross)
		}
		netProfit = netProfit.Sub(fees)
	}
	return netProfit
}

func calcNetAvgProfitPerTrade(trades []trade, wg *sync.WaitGroup) decimal.Decimal {
	defer wg.Done()

	netProfit := decimal.Zero
	realizedTrades := 0
	for _, tr := range trades {
		gross, fees, realized, _ := tradePnL(tr)
		if realized {
			netProfit = netProfit.Add(gross)
			realizedTrades++
		}
		netProfit = netProfit.Sub(fees)
	}
	if realizedTrades == 0 {
		return decimal.Zero
	}
	return netProfit.Div(decimal.NewFromInt(int64(realizedTrades)))
}

func calcAvgWinLossPerTrade(trades []trade, wg *sync.WaitGroup) (decimal.Decimal, decimal.Decimal) {
	defer wg.Done()

	sumWins := decimal.Zero
	sumLosses := decimal.Zero // absolute loss amounts
	winCount := 0
	lossCount := 0

	for _, tr := range trades {
		gross, fees, realized, _ := tradePnL(tr)
		if !realized {
			continue
		}
		net := gross.Sub(fees)
		switch {
		case net.GreaterThan(decimal.Zero):
			sumWins = sumWins.Add(net)
			winCount++
		case net.LessThan(decimal.Zero):
			sumLosses = sumLosses.Add(net.Abs())
			lossCount++
		}
	}

	avgWin := decimal.Zero
	avgLoss := decimal.Zero
	if winCount > 0 {
		avgWin = sumWins.Div(decimal.NewFromInt(int64(winCount)))
	}
	if lossCount > 0 {
		avgLoss = sumLosses.Div(decimal.NewFromInt(int64(lossCount)))
	}
	return avgWin, avgLoss
}

func calcTotalFees(trades []trade, wg *sync.WaitGroup) decimal.Decimal {
	defer wg.Done()

	total := decimal.Zero
	for _, tr := range trades {
		_, fees, _, _ := tradePnL(tr)
		total = total.Add(fees)
	}
	return total
}

func calcCAGR(snapshots []types.PortfolioView, wg *sync.WaitGroup) decimal.Decimal {
	defer wg.Done()
	if len(snapshots) < 2 {
		return decimal.Zero
	}

	startSnap := snapshots[0]
	endSnap := snapshots[len(snapshots)-1]

	startVal := startSnap.Equity()
	endVal := endSnap.Equity()

	// CAGR is not well-defined from a non-positive start
	if !startVal.GreaterThan(decimal.Zero) {
		return decimal.Zero
	}

	duration := endSnap.Time.Sub(startSnap.Time)
	if duration <= 0 {
		return decimal.Zero
	}
	// 365.25 days per year to absorb leap years
	years := duration.Hours() / (24.0 * 365.25)
	if years <= 0 {
		return decimal.Zero
	}

	ratio := endVal.Div(startVal)
	if !ratio.GreaterThan(decimal.Zero) {
		return decimal.Zero
	}

	cagrFloat := math.Pow(ratio.InexactFloat64(), 1.0/years) - 1.0
	return decimal.NewFromFloat(cagrFloat)
}

func calcDrawdownMetrics(
	snapshots []types.PortfolioView,
	wg *sync.WaitGroup,
) (decimal.Decimal, decimal.Decimal, time.Duration) {
	defer wg.Done()

	if len(snapshots) == 0 {
		return decimal.Zero, decimal.Zero, 0
	}

	// Snapshots arrive in chronological order from the run loop.
	peak := decimal.Zero
	var peakTime time.Time

	maxDD := decimal.Zero
	maxDDPct := decimal.Zero
	var maxDDDuration time.Duration

	for i, snap := range snapshots {
		equity := snap.Equity()

		if i == 0 || equity.GreaterThan(peak) || peak.IsZero() {
			peak = equity
			peakTime = snap.Time
		}

		if peak.GreaterThan(decimal.Zero) {
			dd := peak.Sub(equity)
			if dd.GreaterThan(maxDD) {
				maxDD = dd
				maxDDPct = dd.Div(peak)
				maxDDDuration = snap.Time.Sub(peakTime)
			}
		}
	}

	return maxDD, maxDDPct, maxDDDuration
}

func calcMaxConsecutiveLosses(trades []trade, wg *sync.WaitGroup) int {
	defer wg.Done()

	type tradeResult struct {
		closeTime time.Time
		netPnL    decimal.Decimal
	}

	var results []tradeResult
	for _, tr := range trades {
		gross, fees, realized, closeTime := tradePnL(tr)
		if !realized || closeTime.IsZero() {
			continue
		}
		results = append(results, tradeResult{
			closeTime: closeTime,
			netPnL:    gross.Sub(fees),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].closeTime.Before(results[j].closeTime)
	})

	maxLossStreak := 0
	currentStreak := 0
	for _, r := range results {
		if r.netPnL.LessThan(decimal.Zero) {
			currentStreak++
			if currentStreak > maxLossStreak {
				maxLossStreak = currentStreak
			}
		} else {
			currentStreak = 0
		}
	}

	return maxLossStreak
}

func calcSharpeRatio(
	snapshots []types.PortfolioView,
	annualRiskFree decimal.Decimal,
	wg *sync.WaitGroup,
) decimal.Decimal {
	defer wg.Done()
	monthlyReturns := getMonthlyReturns(snapshots)
	if len(monthlyReturns) < 2 {
		// Need at least 2 months to compute stddev
		return decimal.Zero
	}

	// rf_monthly = (1 + rf_annual)^(1/12) - 1
	rfAnnualFloat := annualRiskFree.InexactFloat64()
	rfMonthlyFloat := math.Pow(1.0+rfAnnualFloat, 1.0/12.0) - 1.0

	excess := make([]float64, 0, len(monthlyReturns))
	for _, r := range monthlyReturns {
		excess = append(excess, r.InexactFloat64()-rfMonthlyFloat)
	}

	var sum float64
	for _, x := range excess {
		sum += x
	}
	meanMonthlyExcess := sum / float64(len(excess))

	// Sample standard deviation of monthly excess returns
	var varianceSum float64
	for _, x := range excess {
		diff := x - meanMonthlyExcess
		varianceSum += diff * diff
	}
	stdMonthly := math.Sqrt(varianceSum / float64(len(excess)-1))
	if stdMonthly == 0 {
		return decimal.Zero
	}

	// Monthly Sharpe annualized by sqrt(12)
	sharpeMonthly := meanMonthlyExcess / stdMonthly
	sharpeAnnual := sharpeMonthly * math.Sqrt(12.0)

	return decimal.NewFromFloat(sharpeAnnual)
}

func getMonthlyReturns(snapshots []types.PortfolioView) []decimal.Decimal {
	if len(snapshots) == 0 {
		return nil
	}

	type monthKey struct {
		year  int
		month time.Month
	}

	// Last snapshot in each calendar month marks that month's end value.
	months := make(map[monthKey]types.PortfolioView)
	for _, snap := range snapshots {
		y, m, _ := snap.Time.Date()
		key := monthKey{year: y, month: m}
		if cur, ok := months[key]; !ok || snap.Time.After(cur.Time) {
			months[key] = snap
		}
	}

	keys := make([]monthKey, 0, len(months))
	for k := range months {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].month < keys[j].month
	})

	if len(keys) < 2 {
		return nil
	}

	returns := make([]decimal.Decimal, 0, len(keys)-1)
	prev := months[keys[0]].Equity()
	for _, k := range keys[1:] {
		curr := months[k].Equity()
		if !prev.GreaterThan(decimal.Zero) {
			prev = curr
			continue
		}
		returns = append(returns, curr.Div(prev).Sub(decimal.NewFromInt(1)))
		prev = curr
	}

	return returns
}

// Helper functions
func executionsToTrades(p *portfolio) []trade {
	// Group executions by symbol so different instruments never pair up.
	execsBySymbol := make(map[string][]types.ExecutionReport)
	for _, exec := range p.executions {
		execsBySymbol[exec.Symbol] = append(execsBySymbol[exec.Symbol], exec)
	}

	var trades []trade

	for _, execs := range execsBySymbol {
		sort.Slice(execs, func(i, j int) bool {
			return execs[i].ReportTime.Before(execs[j].ReportTime)
		})

		// Pair them off 2-by-2: [0,1], [2,3], ...
		for i := 0; i < len(execs); i += 2 {
			if i+1 < len(execs) {
				a := &execs[i]
				b := &execs[i+1]

				var newTrade trade
				if a.Side == types.SideTypeBuy {
					newTrade.buy = a
					newTrade.sell = b
				} else {
					newTrade.buy = b
					newTrade.sell = a
				}
				trades = append(trades, newTrade)
				continue
			}

			// Leftover single execution is a partial trade
			last := &execs[i]
			var partial trade
			if last.Side == types.SideTypeBuy {
				partial.buy = last
			} else {
				partial.sell = last
			}
			trades = append(trades, partial)
		}
	}

	sort.Slice(trades, func(i, j int) bool {
		return tradeTime(trades[i]).Before(tradeTime(trades[j]))
	})

	return trades
}

// tradeTime returns the earliest non-nil leg time for a trade.
func tradeTime(t trade) time.Time {
	if t.buy != nil && t.sell != nil {
		if t.buy.ReportTime.Before(t.sell.ReportTime) {
			return t.buy.ReportTime
		}
		return t.sell.ReportTime
	}
	if t.buy != nil {
		return t.buy.ReportTime
	}
	if t.sell != nil {
		return t.sell.ReportTime
	}
	return time.Time{}
}
