package strategies

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetsAreWellFormed(t *testing.T) {
	one := decimal.NewFromInt(1)
	for name, s := range Presets {
		assert.Equal(t, name, s.StrategyName, name)
		assert.True(t, s.InitialCapital.GreaterThan(decimal.Zero), name)
		assert.True(t, s.BuyThreshold.LessThanOrEqual(decimal.Zero), name)
		assert.True(t, s.SellThreshold.GreaterThanOrEqual(decimal.Zero), name)
		assert.True(t, s.MaxPositionSize.GreaterThan(decimal.Zero), name)
		assert.True(t, s.MaxPositionSize.LessThanOrEqual(one), name)
		assert.True(t, s.StopLoss.LessThanOrEqual(decimal.Zero), name)
		assert.True(t, s.TakeProfit.GreaterThanOrEqual(decimal.Zero), name)
	}
}

func TestByName(t *testing.T) {
	s, ok := ByName("dip-buyer")
	require.True(t, ok)
	assert.Equal(t, "dip-buyer", s.StrategyName)

	_, ok = ByName("martingale")
	assert.False(t, ok)
}

func TestWithCapital(t *testing.T) {
	s, _ := ByName("conservative")
	adjusted := WithCapital(s, decimal.NewFromInt(500))
	assert.True(t, adjusted.InitialCapital.Equal(decimal.NewFromInt(500)))
	// The preset itself is untouched.
	assert.True(t, Presets["conservative"].InitialCapital.Equal(decimal.NewFromInt(10000)))
}
