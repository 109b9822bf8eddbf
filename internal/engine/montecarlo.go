package engine

import (
	"context"
	"math/rand/v2"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"investtrack/types"
)

const (
	// DefaultIterations is the number of independent simulation paths.
	DefaultIterations = 10000
	// DefaultDays is one trading year.
	DefaultDays = 252
	// maxChartSamples bounds the raw outcomes returned for visualization;
	// the rest of the sample is discarded after aggregation.
	maxChartSamples = 100
)

// SimulationConfig controls a Monte Carlo run. The zero value selects the
// defaults: 10,000 iterations over 252 days with a time-seeded source.
type SimulationConfig struct {
	Iterations int
	Days       int
	// Seed fixes the random source. Zero picks a fresh seed, so two default
	// runs differ. The sorted outcome set is fully determined by Seed and
	// Workers together.
	Seed uint64
	// Workers is the number of goroutines the iterations are split across.
	Workers int
	// Progress, when set, receives the number of iterations completed by
	// each finished chunk.
	Progress func(completed int)
}

func (c *SimulationConfig) applyDefaults() {
	if c.Iterations <= 0 {
		c.Iterations = DefaultIterations
	}
	if c.Days <= 0 {
		c.Days = DefaultDays
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Seed == 0 {
		c.Seed = rand.Uint64()
	}
}

// SimulationResult holds the aggregated outcome distribution of one run.
// It is immutable after construction.
type SimulationResult struct {
	PortfolioId          int64             `json:"portfolioId"`
	Iterations           int               `json:"iterations"`
	DaysProjected        int               `json:"daysProjected"`
	InitialValue         decimal.Decimal   `json:"initialValue"`
	ExpectedValue        decimal.Decimal   `json:"expectedValue"`
	MedianValue          decimal.Decimal   `json:"medianValue"`
	BestCase             decimal.Decimal   `json:"bestCase"`
	WorstCase            decimal.Decimal   `json:"worstCase"`
	Percentile90High     decimal.Decimal   `json:"percentile90High"`
	Percentile90Low      decimal.Decimal   `json:"percentile90Low"`
	Percentile50High     decimal.Decimal   `json:"percentile50High"`
	Percentile50Low      decimal.Decimal   `json:"percentile50Low"`
	ProbabilityOfLoss    float64           `json:"probabilityOfLoss"`
	ProbabilityOfDouble  float64           `json:"probabilityOfDoubling"`
	HistoricalReturn     float64           `json:"historicalReturn"`
	HistoricalVolatility float64           `json:"historicalVolatility"`
	SimulationResults    []decimal.Decimal `json:"simulationResults"`
	CalculatedAt         time.Time         `json:"calculatedAt"`
}

// RunSimulation projects the distribution of future portfolio values with a
// discrete geometric Brownian motion: every path multiplies the running value
// by (1+r) per day, r drawn from a normal distribution parameterized by the
// portfolio's historical return and cross-sectional volatility.
func (e *Engine) RunSimulation(ctx context.Context, portfolioId int64, cfg SimulationConfig) (*SimulationResult, error) {
	portfolio, err := e.db.GetPortfolio(ctx, portfolioId)
	if err != nil {
		return nil, err
	}
	positions, err := e.db.GetPositions(ctx, portfolioId)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, ErrNoPositions
	}

	cfg.applyDefaults()

	initialValue := portfolio.TotalValue(positions)
	totalInvested := totalCostBasis(positions).Add(portfolio.AvailableCash)
	dailyReturn := totalReturn(initialValue, totalInvested).
		DivRound(decimal.NewFromInt(DefaultDays), types.ReturnScale).
		InexactFloat64()
	dailyVolatility := crossSectionalVolatility(positions).InexactFloat64()

	e.log.Info().
		Int64("portfolio_id", portfolioId).
		Int("iterations", cfg.Iterations).
		Int("days", cfg.Days).
		Float64("daily_return", dailyReturn).
		Float64("daily_volatility", dailyVolatility).
		Msg("Running Monte Carlo simulation")

	outcomes := simulatePaths(initialValue.InexactFloat64(), dailyReturn, dailyVolatility, cfg)
	sort.Float64s(outcomes)

	return buildSimulationResult(portfolioId, cfg, initialValue, dailyReturn, dailyVolatility, outcomes), nil
}

// simulatePaths runs the iteration loop split across workers. Paths are
// independent, so each worker owns a disjoint slice of the outcome buffer and
// its own normal source; no locking is needed beyond the final wait.
func simulatePaths(initialValue, dailyReturn, dailyVolatility float64, cfg SimulationConfig) []float64 {
	outcomes := make([]float64, cfg.Iterations)
	chunk := (cfg.Iterations + cfg.Workers - 1) / cfg.Workers

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > cfg.Iterations {
			end = cfg.Iterations
		}
		if start >= end {
			break
		}

		wg.Add(1)
		go func(worker, start, end int) {
			defer wg.Done()
			dist := distuv.Normal{
				Mu:    dailyReturn,
				Sigma: dailyVolatility,
				Src:   rand.NewPCG(cfg.Seed, uint64(worker)),
			}
			for i := start; i < end; i++ {
				value := initialValue
				for day := 0; day < cfg.Days; day++ {
					value *= 1 + dist.Rand()
				}
				outcomes[i] = value
			}
			if cfg.Progress != nil {
				cfg.Progress(end - start)
			}
		}(w, start, end)
	}
	wg.Wait()

	return outcomes
}

func buildSimulationResult(
	portfolioId int64,
	cfg SimulationConfig,
	initialValue decimal.Decimal,
	dailyReturn, dailyVolatility float64,
	sorted []float64,
) *SimulationResult {
	quantile := func(p float64) decimal.Decimal {
		return money(stat.Quantile(p, stat.LinInterp, sorted, nil))
	}

	initial := initialValue.InexactFloat64()
	lossCount := sort.SearchFloat64s(sorted, initial)
	doubleCount := len(sorted) - sort.SearchFloat64s(sorted, 2*initial)

	samples := make([]decimal.Decimal, 0, maxChartSamples)
	for i := 0; i < len(sorted) && i < maxChartSamples; i++ {
		samples = append(samples, money(sorted[i]))
	}

	return &SimulationResult{
		PortfolioId:          portfolioId,
		Iterations:           cfg.Iterations,
		DaysProjected:        cfg.Days,
		InitialValue:         initialValue,
		ExpectedValue:        money(stat.Mean(sorted, nil)),
		MedianValue:          quantile(0.50),
		BestCase:             quantile(0.95),
		WorstCase:            quantile(0.05),
		Percentile90High:     quantile(0.90),
		Percentile90Low:      quantile(0.10),
		Percentile50High:     quantile(0.75),
		Percentile50Low:      quantile(0.25),
		ProbabilityOfLoss:    float64(lossCount) / float64(len(sorted)),
		ProbabilityOfDouble:  float64(doubleCount) / float64(len(sorted)),
		HistoricalReturn:     dailyReturn,
		HistoricalVolatility: dailyVolatility,
		SimulationResults:    samples,
		CalculatedAt:         time.Now(),
	}
}

func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(types.MoneyScale)
}
