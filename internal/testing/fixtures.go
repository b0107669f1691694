package testing

import (
	"math"
	"math/rand"
	"time"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/domain"
)

// NewStrategyFixture returns a well-formed experiment strategy for use in tests.
func NewStrategyFixture(id, name string) *domain.Strategy {
	now := time.Now().UTC()
	return &domain.Strategy{
		ID:          id,
		Name:        name,
		Description: "mean reversion on RSI extremes",
		OwnerID:     "owner-1",
		AssetClass:  "crypto",
		RuleSet: domain.RuleSet{
			Entry: []domain.Rule{
				{Indicator: domain.IndicatorRSI, Comparator: domain.CompLT, Threshold: 30, Window: 14},
			},
			Exit: []domain.Rule{
				{Indicator: domain.IndicatorRSI, Comparator: domain.CompGT, Threshold: 70, Window: 14},
			},
			Params: map[string]float64{"position_size": 1.0},
		},
		Status:    domain.StatusExperiment,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTrendCrossFixture returns a strategy with SMA cross entry and momentum
// exit, structurally distinct from the RSI fixture.
func NewTrendCrossFixture(id, name string) *domain.Strategy {
	s := NewStrategyFixture(id, name)
	s.Description = "trend following on SMA cross"
	s.RuleSet = domain.RuleSet{
		Entry: []domain.Rule{
			{Indicator: domain.IndicatorSMA, Comparator: domain.CompCrossAbove, Threshold: 0, Window: 20},
		},
		Exit: []domain.Rule{
			{Indicator: domain.IndicatorMomentum, Comparator: domain.CompLT, Threshold: -0.02, Window: 10},
		},
		Params: map[string]float64{"position_size": 1.0},
	}
	return s
}

// NewBarSeries generates a deterministic daily OHLCV series of n bars
// starting at start. The walk is seeded so identical arguments always
// produce identical bars.
func NewBarSeries(seed int64, start time.Time, n int) []domain.Bar {
	rng := rand.New(rand.NewSource(seed))
	bars := make([]domain.Bar, n)
	price := 100.0

	for i := 0; i < n; i++ {
		drift := 0.0004
		shock := rng.NormFloat64() * 0.02
		next := price * math.Exp(drift+shock)

		high := math.Max(price, next) * (1 + rng.Float64()*0.005)
		low := math.Min(price, next) * (1 - rng.Float64()*0.005)

		bars[i] = domain.Bar{
			Ts:     start.Add(time.Duration(i) * 24 * time.Hour),
			Open:   price,
			High:   high,
			Low:    low,
			Close:  next,
			Volume: 1000 + rng.Float64()*500,
		}
		price = next
	}

	return bars
}

// NewTrendedBars generates n daily bars with a fixed per-bar return, useful
// when a test needs a known bull or bear series.
func NewTrendedBars(start time.Time, n int, perBarReturn float64) []domain.Bar {
	bars := make([]domain.Bar, n)
	price := 100.0

	for i := 0; i < n; i++ {
		next := price * (1 + perBarReturn)
		high := math.Max(price, next)
		low := math.Min(price, next)

		bars[i] = domain.Bar{
			Ts:     start.Add(time.Duration(i) * 24 * time.Hour),
			Open:   price,
			High:   high,
			Low:    low,
			Close:  next,
			Volume: 1000,
		}
		price = next
	}

	return bars
}
