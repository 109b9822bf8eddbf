package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"investtrack/types"
)

// Strategy is the rule set a backtest replays. Thresholds are expressed on
// the same x100 scale as Position.PnLPercent, so BuyThreshold -10 means "buy
// more when the position is 10% underwater". StopLoss and TakeProfit are
// optional; zero disables them. RebalanceDays is accepted for forward
// compatibility but not evaluated by the current loop.
type Strategy struct {
	StrategyName    string          `json:"strategyName"`
	InitialCapital  decimal.Decimal `json:"initialCapital"`
	BuyThreshold    decimal.Decimal `json:"buyThreshold"`
	SellThreshold   decimal.Decimal `json:"sellThreshold"`
	MaxPositionSize decimal.Decimal `json:"maxPositionSize"`
	StopLoss        decimal.Decimal `json:"stopLoss"`
	TakeProfit      decimal.Decimal `json:"takeProfit"`
	RebalanceDays   int             `json:"rebalanceDays"`
}

func (s *Strategy) validate() error {
	if !s.InitialCapital.GreaterThan(decimal.Zero) {
		return fmt.Errorf("%w: initialCapital must be positive", ErrInvalidStrategy)
	}
	if s.BuyThreshold.GreaterThan(decimal.Zero) {
		return fmt.Errorf("%w: buyThreshold must be zero or negative", ErrInvalidStrategy)
	}
	if s.SellThreshold.LessThan(decimal.Zero) {
		return fmt.Errorf("%w: sellThreshold must be zero or positive", ErrInvalidStrategy)
	}
	if !s.MaxPositionSize.GreaterThan(decimal.Zero) || s.MaxPositionSize.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: maxPositionSize must be in (0, 1]", ErrInvalidStrategy)
	}
	if s.StopLoss.GreaterThan(decimal.Zero) {
		return fmt.Errorf("%w: stopLoss must be zero or negative", ErrInvalidStrategy)
	}
	if s.TakeProfit.LessThan(decimal.Zero) {
		return fmt.Errorf("%w: takeProfit must be zero or positive", ErrInvalidStrategy)
	}
	return nil
}

// DailyValue is one point of the simulated equity curve.
type DailyValue struct {
	Date  time.Time       `json:"date"`
	Value decimal.Decimal `json:"value"`
}

// BacktestResult is the immutable outcome of one backtest run, carrying the
// full strategy used so the record is self-describing.
type BacktestResult struct {
	StrategyName         string          `json:"strategyName"`
	PortfolioId          int64           `json:"portfolioId"`
	StartDate            time.Time       `json:"startDate"`
	EndDate              time.Time       `json:"endDate"`
	TotalDays            int             `json:"totalDays"`
	InitialCapital       decimal.Decimal `json:"initialCapital"`
	FinalCapital         decimal.Decimal `json:"finalCapital"`
	TotalReturn          decimal.Decimal `json:"totalReturn"`
	TotalReturnPercent   decimal.Decimal `json:"totalReturnPercentage"`
	SharpeRatio          decimal.Decimal `json:"sharpeRatio"`
	MaxDrawdown          decimal.Decimal `json:"maxDrawdown"`
	Volatility           decimal.Decimal `json:"volatility"`
	TotalTrades          int             `json:"totalTrades"`
	WinningTrades        int             `json:"winningTrades"`
	LosingTrades         int             `json:"losingTrades"`
	WinRate              decimal.Decimal `json:"winRate"`
	AvgWin               decimal.Decimal `json:"avgWin"`
	AvgLoss              decimal.Decimal `json:"avgLoss"`
	ProfitFactor         decimal.Decimal `json:"profitFactor"`
	BuyAndHoldReturn     decimal.Decimal `json:"buyAndHoldReturn"`
	StrategyVsBuyAndHold decimal.Decimal `json:"strategyVsBuyAndHold"`
	PortfolioHistory     []DailyValue    `json:"portfolioHistory"`
	CalculatedAt         time.Time       `json:"calculatedAt"`
}

// backtestState accumulates the sequential day loop. Today's cash depends on
// yesterday's, so the loop cannot be parallelized.
type backtestState struct {
	cash          decimal.Decimal
	peak          decimal.Decimal
	maxDrawdown   decimal.Decimal
	totalTrades   int
	winningTrades int
	losingTrades  int
	totalWins     decimal.Decimal
	totalLosses   decimal.Decimal
	history       []DailyValue
	dailyReturns  []float64
}

// RunBacktest replays the strategy day by day over a static snapshot of the
// portfolio's current positions. Positions do not evolve during the window:
// thresholds are evaluated against the same unrealized P&L every simulated
// day, so a standing condition fires on each of them. That snapshot replay is
// the documented contract of this endpoint, not an accident.
func (e *Engine) RunBacktest(ctx context.Context, portfolioId int64, strategy Strategy, days int) (*BacktestResult, error) {
	if err := strategy.validate(); err != nil {
		return nil, err
	}
	positions, err := e.db.GetPositions(ctx, portfolioId)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, ErrNoPositions
	}

	if days <= 0 {
		days = DefaultDays
	}
	endDate := time.Now().UTC().Truncate(24 * time.Hour)
	startDate := endDate.AddDate(0, 0, -days)

	e.log.Info().
		Int64("portfolio_id", portfolioId).
		Str("strategy", strategy.StrategyName).
		Int("days", days).
		Msg("Running backtest")

	state := simulateStrategy(positions, strategy, startDate, endDate)
	buyAndHold := buyAndHoldReturn(positions)

	return buildBacktestResult(portfolioId, strategy, state, buyAndHold, startDate, endDate, days, e.riskFreeRate), nil
}

func simulateStrategy(positions []types.Position, strategy Strategy, startDate, endDate time.Time) *backtestState {
	state := &backtestState{
		cash:        strategy.InitialCapital,
		peak:        strategy.InitialCapital,
		maxDrawdown: decimal.Zero,
		totalWins:   decimal.Zero,
		totalLosses: decimal.Zero,
	}

	for date := startDate; !date.After(endDate); date = date.AddDate(0, 0, 1) {
		portfolioValue := state.cash

		for i := range positions {
			pnlPercent := positions[i].PnLPercent()

			if pnlPercent.LessThanOrEqual(strategy.BuyThreshold) {
				buyAmount := state.cash.Mul(strategy.MaxPositionSize)
				if buyAmount.GreaterThan(decimal.Zero) {
					state.cash = state.cash.Sub(buyAmount)
					portfolioValue = portfolioValue.Add(buyAmount)
					state.totalTrades++
				}
			}

			stopLossHit := strategy.StopLoss.LessThan(decimal.Zero) && pnlPercent.LessThanOrEqual(strategy.StopLoss)
			if pnlPercent.GreaterThanOrEqual(strategy.SellThreshold) || stopLossHit {
				sellValue := positions[i].CurrentValue()
				tradeReturn := sellValue.Sub(positions[i].CostBasis())

				if tradeReturn.GreaterThan(decimal.Zero) {
					state.winningTrades++
					state.totalWins = state.totalWins.Add(tradeReturn)
				} else {
					state.losingTrades++
					state.totalLosses = state.totalLosses.Add(tradeReturn.Abs())
				}

				state.cash = state.cash.Add(sellValue)
				state.totalTrades++
			}
		}

		state.history = append(state.history, DailyValue{
			Date:  date,
			Value: portfolioValue.Round(types.MoneyScale),
		})

		if portfolioValue.GreaterThan(state.peak) {
			state.peak = portfolioValue
		}
		if state.peak.GreaterThan(decimal.Zero) {
			drawdown := portfolioValue.Sub(state.peak).DivRound(state.peak, types.RatioScale)
			if drawdown.LessThan(state.maxDrawdown) {
				state.maxDrawdown = drawdown
			}
		}

		if n := len(state.history); n > 1 {
			prev := state.history[n-2].Value
			if prev.GreaterThan(decimal.Zero) {
				dailyReturn := portfolioValue.Sub(prev).DivRound(prev, types.ReturnScale)
				state.dailyReturns = append(state.dailyReturns, dailyReturn.InexactFloat64())
			}
		}
	}

	return state
}

// buyAndHoldReturn is the benchmark: what the current positions return over
// their cost basis with no trading at all.
func buyAndHoldReturn(positions []types.Position) decimal.Decimal {
	totalCost := decimal.Zero
	totalValue := decimal.Zero
	for i := range positions {
		totalCost = totalCost.Add(positions[i].CostBasis())
		totalValue = totalValue.Add(positions[i].CurrentValue())
	}
	if totalCost.IsZero() {
		return decimal.Zero
	}
	return totalValue.Sub(totalCost).DivRound(totalCost, types.RatioScale)
}

func buildBacktestResult(
	portfolioId int64,
	strategy Strategy,
	state *backtestState,
	buyAndHold decimal.Decimal,
	startDate, endDate time.Time,
	days int,
	riskFreeRate decimal.Decimal,
) *BacktestResult {
	finalCapital := state.cash
	totalReturn := finalCapital.Sub(strategy.InitialCapital)
	totalReturnPct := totalReturn.DivRound(strategy.InitialCapital, types.RatioScale)

	volatility := decimal.Zero
	if len(state.dailyReturns) > 0 {
		volatility = decimal.NewFromFloat(stat.PopStdDev(state.dailyReturns, nil)).Round(types.RatioScale)
	}

	winRate := decimal.Zero
	if state.totalTrades > 0 {
		winRate = decimal.NewFromInt(int64(state.winningTrades)).
			DivRound(decimal.NewFromInt(int64(state.totalTrades)), types.RatioScale)
	}
	avgWin := decimal.Zero
	if state.winningTrades > 0 {
		avgWin = state.totalWins.DivRound(decimal.NewFromInt(int64(state.winningTrades)), types.MoneyScale)
	}
	avgLoss := decimal.Zero
	if state.losingTrades > 0 {
		avgLoss = state.totalLosses.DivRound(decimal.NewFromInt(int64(state.losingTrades)), types.MoneyScale)
	}
	profitFactor := decimal.Zero
	if state.totalLosses.GreaterThan(decimal.Zero) {
		profitFactor = state.totalWins.DivRound(state.totalLosses, types.MoneyScale)
	}

	return &BacktestResult{
		StrategyName:         strategy.StrategyName,
		PortfolioId:          portfolioId,
		StartDate:            startDate,
		EndDate:              endDate,
		TotalDays:            days,
		InitialCapital:       strategy.InitialCapital,
		FinalCapital:         finalCapital,
		TotalReturn:          totalReturn,
		TotalReturnPercent:   totalReturnPct,
		SharpeRatio:          sharpeRatio(totalReturnPct, riskFreeRate, volatility),
		MaxDrawdown:          state.maxDrawdown,
		Volatility:           volatility,
		TotalTrades:          state.totalTrades,
		WinningTrades:        state.winningTrades,
		LosingTrades:         state.losingTrades,
		WinRate:              winRate,
		AvgWin:               avgWin,
		AvgLoss:              avgLoss,
		ProfitFactor:         profitFactor,
		BuyAndHoldReturn:     buyAndHold,
		StrategyVsBuyAndHold: totalReturnPct.Sub(buyAndHold),
		PortfolioHistory:     state.history,
		CalculatedAt:         time.Now(),
	}
}
