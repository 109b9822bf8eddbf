// Package strategies ships ready-made threshold strategies for the
// backtester so common styles can be replayed without hand-tuning every
// parameter.
package strategies

import (
	"github.com/shopspring/decimal"

	"investtrack/internal/engine"
)

// Presets maps a name to a fully parameterized strategy. InitialCapital is
// left at 10000 and can be overridden by the caller.
var Presets = map[string]engine.Strategy{
	"conservative": {
		StrategyName:    "conservative",
		InitialCapital:  decimal.NewFromInt(10000),
		BuyThreshold:    decimal.NewFromInt(-10),
		SellThreshold:   decimal.NewFromInt(5),
		MaxPositionSize: decimal.RequireFromString("0.1"),
		StopLoss:        decimal.NewFromInt(-15),
		TakeProfit:      decimal.NewFromInt(20),
	},
	"aggressive": {
		StrategyName:    "aggressive",
		InitialCapital:  decimal.NewFromInt(10000),
		BuyThreshold:    decimal.NewFromInt(-3),
		SellThreshold:   decimal.NewFromInt(15),
		MaxPositionSize: decimal.RequireFromString("0.4"),
		StopLoss:        decimal.NewFromInt(-25),
		TakeProfit:      decimal.NewFromInt(50),
	},
	"dip-buyer": {
		StrategyName:    "dip-buyer",
		InitialCapital:  decimal.NewFromInt(10000),
		BuyThreshold:    decimal.NewFromInt(-5),
		SellThreshold:   decimal.NewFromInt(0),
		MaxPositionSize: decimal.RequireFromString("0.25"),
	},
}

// ByName looks up a preset. The returned strategy is a copy, safe to adjust.
func ByName(name string) (engine.Strategy, bool) {
	s, ok := Presets[name]
	return s, ok
}

// WithCapital returns the strategy with its starting capital replaced.
func WithCapital(s engine.Strategy, capital decimal.Decimal) engine.Strategy {
	s.InitialCapital = capital
	return s
}
