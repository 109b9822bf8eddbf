package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"investtrack/types"
)

func simulationStore() *mockStore {
	return &mockStore{
		portfolio: &types.Portfolio{Id: 1, Name: "Sim", AvailableCash: d("1000")},
		positions: []types.Position{
			{Ticker: "WIN", Quantity: d("10"), AveragePrice: d("100"), CurrentPrice: d("110")},
			{Ticker: "LOSE", Quantity: d("10"), AveragePrice: d("100"), CurrentPrice: d("90")},
		},
	}
}

func TestRunSimulation_Distribution(t *testing.T) {
	eng := testEngine(simulationStore())

	result, err := eng.RunSimulation(context.Background(), 1, SimulationConfig{
		Iterations: 2000,
		Days:       30,
		Seed:       42,
		Workers:    2,
	})
	require.NoError(t, err)

	assert.Equal(t, 2000, result.Iterations)
	assert.Equal(t, 30, result.DaysProjected)
	assert.True(t, result.InitialValue.Equal(d("3000")), "InitialValue = %s", result.InitialValue)

	// Percentiles of a sorted sample must be ordered.
	assert.True(t, result.BestCase.GreaterThanOrEqual(result.Percentile90High))
	assert.True(t, result.Percentile90High.GreaterThanOrEqual(result.Percentile50High))
	assert.True(t, result.Percentile50High.GreaterThanOrEqual(result.MedianValue))
	assert.True(t, result.MedianValue.GreaterThanOrEqual(result.Percentile50Low))
	assert.True(t, result.Percentile50Low.GreaterThanOrEqual(result.Percentile90Low))
	assert.True(t, result.Percentile90Low.GreaterThanOrEqual(result.WorstCase))

	assert.GreaterOrEqual(t, result.ProbabilityOfLoss, 0.0)
	assert.LessOrEqual(t, result.ProbabilityOfLoss, 1.0)
	assert.GreaterOrEqual(t, result.ProbabilityOfDouble, 0.0)
	assert.LessOrEqual(t, result.ProbabilityOfDouble, 1.0)

	assert.LessOrEqual(t, len(result.SimulationResults), 100)
	for i := 1; i < len(result.SimulationResults); i++ {
		assert.True(t, result.SimulationResults[i].GreaterThanOrEqual(result.SimulationResults[i-1]),
			"chart samples must stay sorted")
	}
}

func TestRunSimulation_SeededRunsReproduce(t *testing.T) {
	eng := testEngine(simulationStore())
	cfg := SimulationConfig{Iterations: 500, Days: 20, Seed: 7, Workers: 3}

	first, err := eng.RunSimulation(context.Background(), 1, cfg)
	require.NoError(t, err)
	second, err := eng.RunSimulation(context.Background(), 1, cfg)
	require.NoError(t, err)

	assert.True(t, first.ExpectedValue.Equal(second.ExpectedValue))
	assert.True(t, first.MedianValue.Equal(second.MedianValue))
	assert.True(t, first.WorstCase.Equal(second.WorstCase))
	assert.Equal(t, first.ProbabilityOfLoss, second.ProbabilityOfLoss)
	require.Equal(t, len(first.SimulationResults), len(second.SimulationResults))
	for i := range first.SimulationResults {
		assert.True(t, first.SimulationResults[i].Equal(second.SimulationResults[i]))
	}
}

func TestRunSimulation_NoPositions(t *testing.T) {
	store := &mockStore{portfolio: &types.Portfolio{Id: 1, AvailableCash: d("1000")}}

	_, err := testEngine(store).RunSimulation(context.Background(), 1, SimulationConfig{})
	assert.True(t, errors.Is(err, ErrNoPositions), "error = %v", err)
}

func TestRunSimulation_ProgressReportsAllIterations(t *testing.T) {
	var completed atomic.Int64

	_, err := testEngine(simulationStore()).RunSimulation(context.Background(), 1, SimulationConfig{
		Iterations: 300,
		Days:       10,
		Seed:       1,
		Workers:    4,
		Progress:   func(n int) { completed.Add(int64(n)) },
	})
	require.NoError(t, err)
	assert.Equal(t, int64(300), completed.Load())
}

func TestRunSimulation_ZeroVolatilityIsDeterministicDrift(t *testing.T) {
	// A single position has zero cross-sectional volatility: every draw
	// equals the daily mean, so all paths end at the same value.
	store := &mockStore{
		portfolio: &types.Portfolio{Id: 1, AvailableCash: d("0")},
		positions: []types.Position{
			{Ticker: "ONLY", Quantity: d("10"), AveragePrice: d("100"), CurrentPrice: d("110")},
		},
	}

	result, err := testEngine(store).RunSimulation(context.Background(), 1, SimulationConfig{
		Iterations: 50,
		Days:       10,
		Seed:       9,
		Workers:    2,
	})
	require.NoError(t, err)
	assert.True(t, result.BestCase.Equal(result.WorstCase),
		"BestCase = %s, WorstCase = %s", result.BestCase, result.WorstCase)
}
