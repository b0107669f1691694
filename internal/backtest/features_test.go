package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/domain"
)

func TestIndicatorSeriesWarmupIsBlanked(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}

	for _, indicator := range domain.AllIndicators() {
		series := indicatorSeries(indicator, 10, closes, 365)
		require.Len(t, series, len(closes))
		for i := 0; i < 10; i++ {
			assert.True(t, math.IsNaN(series[i]), "%s warmup index %d", indicator, i)
		}
		assert.False(t, math.IsNaN(series[len(series)-1]), "%s steady state", indicator)
	}
}

func TestMomentumSeriesMatchesRateOfChange(t *testing.T) {
	closes := []float64{100, 100, 100, 100, 100, 110, 121}
	series := indicatorSeries(domain.IndicatorMomentum, 5, closes, 365)

	assert.InDelta(t, 0.10, series[5], 1e-9)
	assert.InDelta(t, 0.21, series[6], 1e-9)
}

func TestMASpreadIsScaleFree(t *testing.T) {
	small := make([]float64, 30)
	big := make([]float64, 30)
	for i := range small {
		small[i] = 1 + 0.01*float64(i)
		big[i] = 1000 * small[i]
	}

	a := indicatorSeries(domain.IndicatorSMA, 10, small, 365)
	b := indicatorSeries(domain.IndicatorSMA, 10, big, 365)
	assert.InDelta(t, a[29], b[29], 1e-9)
	assert.Greater(t, a[29], 0.0, "rising series sits above its average")
}

func TestCrossComparatorsFireOnTransitionOnly(t *testing.T) {
	fs := &featureSet{series: map[featureKey][]float64{
		{indicator: domain.IndicatorSMA, window: 3}: {math.NaN(), -0.02, -0.01, 0.01, 0.02, -0.01},
	}}
	above := domain.Rule{Indicator: domain.IndicatorSMA, Comparator: domain.CompCrossAbove, Threshold: 0, Window: 3}
	below := domain.Rule{Indicator: domain.IndicatorSMA, Comparator: domain.CompCrossBelow, Threshold: 0, Window: 3}

	assert.False(t, ruleFires(above, fs, 1), "NaN previous value never fires")
	assert.False(t, ruleFires(above, fs, 2))
	assert.True(t, ruleFires(above, fs, 3), "fires on the crossing bar")
	assert.False(t, ruleFires(above, fs, 4), "already above, no re-fire")
	assert.True(t, ruleFires(below, fs, 5))
}

func TestPlainComparators(t *testing.T) {
	fs := &featureSet{series: map[featureKey][]float64{
		{indicator: domain.IndicatorRSI, window: 14}: {25, 70, math.NaN()},
	}}
	rule := func(c domain.Comparator, threshold float64) domain.Rule {
		return domain.Rule{Indicator: domain.IndicatorRSI, Comparator: c, Threshold: threshold, Window: 14}
	}

	assert.True(t, ruleFires(rule(domain.CompLT, 30), fs, 0))
	assert.False(t, ruleFires(rule(domain.CompGT, 30), fs, 0))
	assert.True(t, ruleFires(rule(domain.CompGE, 70), fs, 1))
	assert.True(t, ruleFires(rule(domain.CompLE, 70), fs, 1))
	assert.False(t, ruleFires(rule(domain.CompLT, 100), fs, 2), "NaN never fires")
}
