package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"investtrack/types"
)

// MetricsSnapshot is a point-in-time view of a portfolio's performance and
// risk figures. It is computed on demand and never persisted.
type MetricsSnapshot struct {
	PortfolioId         int64           `json:"portfolioId"`
	PortfolioName       string          `json:"portfolioName"`
	TotalValue          decimal.Decimal `json:"totalValue"`
	TotalCost           decimal.Decimal `json:"totalCost"`
	TotalProfitLoss     decimal.Decimal `json:"totalProfitLoss"`
	TotalReturn         decimal.Decimal `json:"totalReturn"`
	SharpeRatio         decimal.Decimal `json:"sharpeRatio"`
	Volatility          decimal.Decimal `json:"volatility"`
	MaxDrawdown         decimal.Decimal `json:"maxDrawdown"`
	WinRate             decimal.Decimal `json:"winRate"`
	Turnover            decimal.Decimal `json:"turnover"`
	TotalPositions      int             `json:"totalPositions"`
	ProfitablePositions int             `json:"profitablePositions"`
	LosingPositions     int             `json:"losingPositions"`
	BestPerformer       decimal.Decimal `json:"bestPerformer"`
	WorstPerformer      decimal.Decimal `json:"worstPerformer"`
	CalculatedAt        time.Time       `json:"calculatedAt"`
}

// Metrics aggregates the portfolio's positions into a full metrics snapshot.
// Every division guards its denominator and degrades to zero instead of
// raising or propagating NaN.
func (e *Engine) Metrics(ctx context.Context, portfolioId int64) (*MetricsSnapshot, error) {
	portfolio, err := e.db.GetPortfolio(ctx, portfolioId)
	if err != nil {
		return nil, err
	}
	positions, err := e.db.GetPositions(ctx, portfolioId)
	if err != nil {
		return nil, err
	}

	totalValue := portfolio.TotalValue(positions)
	totalInvested := totalCostBasis(positions).Add(portfolio.AvailableCash)

	totalPnL := decimal.Zero
	profitable := 0
	bestPerformer := decimal.Zero
	worstPerformer := decimal.Zero
	for i := range positions {
		totalPnL = totalPnL.Add(positions[i].UnrealizedPnL())
		if positions[i].UnrealizedPnL().GreaterThan(decimal.Zero) {
			profitable++
		}
		pct := positions[i].PnLPercent()
		if i == 0 || pct.GreaterThan(bestPerformer) {
			bestPerformer = pct
		}
		if i == 0 || pct.LessThan(worstPerformer) {
			worstPerformer = pct
		}
	}

	totalReturn := totalReturn(totalValue, totalInvested)
	volatility := crossSectionalVolatility(positions)

	winRate := decimal.Zero
	if len(positions) > 0 {
		winRate = decimal.NewFromInt(int64(profitable)).
			DivRound(decimal.NewFromInt(int64(len(positions))), types.RatioScale)
	}

	volume, err := e.db.GetTransactionVolume(ctx, portfolioId, types.TradeTypes)
	if err != nil {
		return nil, err
	}
	turnover := decimal.Zero
	if !totalValue.IsZero() {
		turnover = volume.DivRound(totalValue, types.RatioScale)
	}

	snapshot := &MetricsSnapshot{
		PortfolioId:         portfolio.Id,
		PortfolioName:       portfolio.Name,
		TotalValue:          totalValue,
		TotalCost:           totalInvested,
		TotalProfitLoss:     totalPnL,
		TotalReturn:         totalReturn,
		SharpeRatio:         sharpeRatio(totalReturn, e.riskFreeRate, volatility),
		Volatility:          volatility,
		MaxDrawdown:         sequenceDrawdown(positions),
		WinRate:             winRate,
		Turnover:            turnover,
		TotalPositions:      len(positions),
		ProfitablePositions: profitable,
		LosingPositions:     len(positions) - profitable,
		BestPerformer:       bestPerformer,
		WorstPerformer:      worstPerformer,
		CalculatedAt:        time.Now(),
	}

	e.log.Debug().
		Int64("portfolio_id", portfolioId).
		Str("total_value", totalValue.String()).
		Str("total_return", totalReturn.String()).
		Msg("Computed portfolio metrics")

	return snapshot, nil
}

func totalCostBasis(positions []types.Position) decimal.Decimal {
	total := decimal.Zero
	for i := range positions {
		total = total.Add(positions[i].CostBasis())
	}
	return total
}

// totalReturn is (value - invested) / invested, zero when nothing was invested.
func totalReturn(totalValue, totalInvested decimal.Decimal) decimal.Decimal {
	if totalInvested.IsZero() {
		return decimal.Zero
	}
	return totalValue.Sub(totalInvested).DivRound(totalInvested, types.RatioScale)
}

// crossSectionalVolatility is the population standard deviation of the
// per-position unrealized returns. It measures dispersion across the current
// holdings, not a time series.
func crossSectionalVolatility(positions []types.Position) decimal.Decimal {
	if len(positions) == 0 {
		return decimal.Zero
	}
	returns := make([]float64, len(positions))
	for i := range positions {
		returns[i] = positions[i].Return().InexactFloat64()
	}
	return decimal.NewFromFloat(stat.PopStdDev(returns, nil)).Round(types.RatioScale)
}

// sharpeRatio is excess return over volatility, zero when volatility is zero
// so a single-position portfolio never yields an infinite ratio.
func sharpeRatio(totalReturn, riskFreeRate, volatility decimal.Decimal) decimal.Decimal {
	if volatility.IsZero() {
		return decimal.Zero
	}
	return totalReturn.Sub(riskFreeRate).DivRound(volatility, types.RatioScale)
}

// sequenceDrawdown walks the positions in their given order tracking the
// running peak of current values and returns the most negative peak-to-trough
// decline. This is a dispersion proxy over the holdings sequence rather than
// true historical drawdown, matching the rest of the snapshot semantics.
func sequenceDrawdown(positions []types.Position) decimal.Decimal {
	peak := decimal.Zero
	maxDrawdown := decimal.Zero

	for i := range positions {
		currentValue := positions[i].CurrentValue()
		if currentValue.GreaterThan(peak) {
			peak = currentValue
		}
		if peak.GreaterThan(decimal.Zero) {
			drawdown := currentValue.Sub(peak).DivRound(peak, types.RatioScale)
			if drawdown.LessThan(maxDrawdown) {
				maxDrawdown = drawdown
			}
		}
	}
	return maxDrawdown
}
