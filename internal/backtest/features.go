package backtest

import (
	"math"

	"github.com/markcheno/go-talib"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/domain"
)

// featureKey identifies one computed indicator series. Rules sharing an
// (indicator, window) pair share the series.
type featureKey struct {
	indicator domain.Indicator
	window    int
}

// featureSet holds the indicator series a rule set needs, computed once over
// the full close series. Values inside an indicator's warmup are NaN and
// never satisfy a comparator.
type featureSet struct {
	series map[featureKey][]float64
}

// computeFeatures builds every series the rule set references.
func computeFeatures(rs *domain.RuleSet, closes []float64, periodsPerYear int) *featureSet {
	fs := &featureSet{series: make(map[featureKey][]float64)}
	for _, r := range rs.Entry {
		fs.add(r, closes, periodsPerYear)
	}
	for _, r := range rs.Exit {
		fs.add(r, closes, periodsPerYear)
	}
	return fs
}

func (fs *featureSet) add(r domain.Rule, closes []float64, periodsPerYear int) {
	key := featureKey{indicator: r.Indicator, window: r.Window}
	if _, ok := fs.series[key]; ok {
		return
	}
	fs.series[key] = indicatorSeries(r.Indicator, r.Window, closes, periodsPerYear)
}

func (fs *featureSet) at(r domain.Rule, i int) float64 {
	return fs.series[featureKey{indicator: r.Indicator, window: r.Window}][i]
}

// indicatorSeries computes one indicator over the closes, aligned index for
// index with the input. Every family produces a single scale-free series so
// families stay substitutable under mutation:
//
//	rsi        0..100 oscillator
//	ema, sma   (close - MA) / MA, the fractional spread above the average
//	momentum   rate of change over the window
//	volatility annualized rolling stddev of log returns
func indicatorSeries(indicator domain.Indicator, window int, closes []float64, periodsPerYear int) []float64 {
	n := len(closes)
	out := make([]float64, n)

	switch indicator {
	case domain.IndicatorRSI:
		copy(out, talib.Rsi(closes, window))
		markWarmup(out, window)
	case domain.IndicatorEMA:
		maSpread(out, closes, talib.Ema(closes, window), window)
	case domain.IndicatorSMA:
		maSpread(out, closes, talib.Sma(closes, window), window)
	case domain.IndicatorMomentum:
		copy(out, talib.Rocp(closes, window))
		markWarmup(out, window)
	case domain.IndicatorVolatility:
		volatilitySeries(out, closes, window, periodsPerYear)
	default:
		for i := range out {
			out[i] = math.NaN()
		}
	}

	return out
}

// markWarmup blanks the indices an indicator cannot yet be computed for. The
// floor is uniform across families: index `window` is the first valid value.
func markWarmup(series []float64, window int) {
	for i := 0; i < window && i < len(series); i++ {
		series[i] = math.NaN()
	}
}

func maSpread(out, closes, ma []float64, window int) {
	for i := range out {
		if i < window || ma[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (closes[i] - ma[i]) / ma[i]
	}
}

func volatilitySeries(out, closes []float64, window, periodsPerYear int) {
	for i := range out {
		out[i] = math.NaN()
	}
	if len(closes) < 2 {
		return
	}

	logs := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			logs[i-1] = 0
			continue
		}
		logs[i-1] = math.Log(closes[i] / closes[i-1])
	}
	if len(logs) < window {
		return
	}

	// sd[j] covers logs[j-window+1 .. j], i.e. closes up to j+1: the value
	// assigned to a bar uses only that bar and earlier ones.
	sd := talib.StdDev(logs, window, 1.0)
	scale := math.Sqrt(float64(periodsPerYear))
	for j := window - 1; j < len(sd); j++ {
		out[j+1] = sd[j] * scale
	}
}

// ruleFires evaluates one predicate at bar i. NaN values (warmup, degenerate
// input) never fire.
func ruleFires(r domain.Rule, fs *featureSet, i int) bool {
	v := fs.at(r, i)
	if math.IsNaN(v) {
		return false
	}

	switch r.Comparator {
	case domain.CompGT:
		return v > r.Threshold
	case domain.CompLT:
		return v < r.Threshold
	case domain.CompGE:
		return v >= r.Threshold
	case domain.CompLE:
		return v <= r.Threshold
	case domain.CompCrossAbove:
		if i == 0 {
			return false
		}
		prev := fs.at(r, i-1)
		return !math.IsNaN(prev) && prev <= r.Threshold && v > r.Threshold
	case domain.CompCrossBelow:
		if i == 0 {
			return false
		}
		prev := fs.at(r, i-1)
		return !math.IsNaN(prev) && prev >= r.Threshold && v < r.Threshold
	}
	return false
}

// allFire reports whether every entry predicate holds at bar i.
func allFire(rules []domain.Rule, fs *featureSet, i int) bool {
	for _, r := range rules {
		if !ruleFires(r, fs, i) {
			return false
		}
	}
	return len(rules) > 0
}

// anyFires reports whether at least one exit predicate holds at bar i.
func anyFires(rules []domain.Rule, fs *featureSet, i int) bool {
	for _, r := range rules {
		if ruleFires(r, fs, i) {
			return true
		}
	}
	return false
}
