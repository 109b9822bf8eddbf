// Command backtester runs Monte Carlo projections and strategy backtests
// against a stored portfolio from the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"

	"investtrack/internal/config"
	"investtrack/internal/engine"
	"investtrack/internal/repository"
	"investtrack/pkg/logger"
	"investtrack/strategies"
)

func main() {
	var (
		portfolioId = flag.Int64("portfolio", 0, "portfolio id (required)")
		mode        = flag.String("mode", "simulate", "simulate or backtest")
		days        = flag.Int("days", 252, "trading days to project or replay")

		iterations = flag.Int("iterations", engine.DefaultIterations, "simulation paths")
		seed       = flag.Uint64("seed", 0, "random seed, 0 picks a fresh one")
		workers    = flag.Int("workers", 0, "simulation goroutines, 0 uses all CPUs")

		preset          = flag.String("preset", "", "named strategy preset, overrides threshold flags")
		strategyName    = flag.String("strategy", "threshold", "strategy name for the report")
		initialCapital  = flag.String("capital", "10000", "backtest starting capital")
		buyThreshold    = flag.String("buy-threshold", "-5", "buy when position P&L% falls below")
		sellThreshold   = flag.String("sell-threshold", "10", "sell when position P&L% rises above")
		maxPositionSize = flag.String("max-position", "0.2", "max fraction of capital per trade")
		stopLoss        = flag.String("stop-loss", "0", "stop loss P&L%, 0 disables")
		takeProfit      = flag.String("take-profit", "0", "take profit P&L%, 0 disables")
	)
	flag.Parse()

	log := logger.New(logger.Config{Level: "warn", Pretty: true})

	if *portfolioId <= 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := context.Background()
	db, err := repository.NewDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	eng := engine.NewEngine(db, cfg.RiskFreeRate, log)

	switch *mode {
	case "simulate":
		bar := initProgressBar(*iterations, "Simulating paths...")
		result, err := eng.RunSimulation(ctx, *portfolioId, engine.SimulationConfig{
			Iterations: *iterations,
			Days:       *days,
			Seed:       *seed,
			Workers:    *workers,
			Progress: func(completed int) {
				bar.Add(completed)
			},
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Simulation failed")
		}
		fmt.Println()
		printSimulation(result)

	case "backtest":
		var strategy engine.Strategy
		if *preset != "" {
			s, ok := strategies.ByName(*preset)
			if !ok {
				fmt.Fprintf(os.Stderr, "unknown preset %q\n", *preset)
				os.Exit(2)
			}
			strategy = strategies.WithCapital(s, mustDecimal("capital", *initialCapital))
		} else {
			strategy = engine.Strategy{
				StrategyName:    *strategyName,
				InitialCapital:  mustDecimal("capital", *initialCapital),
				BuyThreshold:    mustDecimal("buy-threshold", *buyThreshold),
				SellThreshold:   mustDecimal("sell-threshold", *sellThreshold),
				MaxPositionSize: mustDecimal("max-position", *maxPositionSize),
				StopLoss:        mustDecimal("stop-loss", *stopLoss),
				TakeProfit:      mustDecimal("take-profit", *takeProfit),
			}
		}
		result, err := eng.RunBacktest(ctx, *portfolioId, strategy, *days)
		if err != nil {
			log.Fatal().Err(err).Msg("Backtest failed")
		}
		printBacktest(result)

	default:
		log.Fatal().Str("mode", *mode).Msg("Unknown mode")
	}
}

func printSimulation(r *engine.SimulationResult) {
	fmt.Printf("Monte Carlo projection, %d paths over %d days\n", r.Iterations, r.DaysProjected)
	fmt.Printf("  initial value:      %s\n", r.InitialValue)
	fmt.Printf("  expected value:     %s\n", r.ExpectedValue)
	fmt.Printf("  median value:       %s\n", r.MedianValue)
	fmt.Printf("  90%% interval:       %s .. %s\n", r.Percentile90Low, r.Percentile90High)
	fmt.Printf("  50%% interval:       %s .. %s\n", r.Percentile50Low, r.Percentile50High)
	fmt.Printf("  best / worst:       %s / %s\n", r.BestCase, r.WorstCase)
	fmt.Printf("  P(loss):            %.2f%%\n", r.ProbabilityOfLoss*100)
	fmt.Printf("  P(doubling):        %.2f%%\n", r.ProbabilityOfDouble*100)
}

func printBacktest(r *engine.BacktestResult) {
	fmt.Printf("Backtest %q, %s to %s\n", r.StrategyName,
		r.StartDate.Format(time.DateOnly), r.EndDate.Format(time.DateOnly))
	fmt.Printf("  initial capital:    %s\n", r.InitialCapital)
	fmt.Printf("  final capital:      %s\n", r.FinalCapital)
	fmt.Printf("  total return:       %s%%\n", r.TotalReturnPercent)
	fmt.Printf("  sharpe ratio:       %s\n", r.SharpeRatio)
	fmt.Printf("  max drawdown:       %s\n", r.MaxDrawdown)
	fmt.Printf("  volatility:         %s\n", r.Volatility)
	fmt.Printf("  trades (win/lose):  %d (%d/%d)\n", r.TotalTrades, r.WinningTrades, r.LosingTrades)
	fmt.Printf("  win rate:           %s\n", r.WinRate)
	fmt.Printf("  profit factor:      %s\n", r.ProfitFactor)
	fmt.Printf("  buy and hold:       %s\n", r.BuyAndHoldReturn)
	fmt.Printf("  vs buy and hold:    %s\n", r.StrategyVsBuyAndHold)
}

func mustDecimal(name, value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -%s value %q\n", name, value)
		os.Exit(2)
	}
	return d
}

func initProgressBar(maxTicks int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(maxTicks,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
