package marketdata

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/domain"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/pkg/formulas"
)

// Classifier defaults. Volatility bands are annualized; the trend spread is
// the fast SMA's fractional distance above the slow SMA.
const (
	DefaultFastWindow = 10
	DefaultSlowWindow = 50
	DefaultVolWindow  = 20
	DefaultHighVol    = 0.60
	DefaultLowVol     = 0.40

	// fullConfidenceSpread is the SMA spread at which a trend label is
	// treated as fully confident.
	fullConfidenceSpread = 0.05

	// minVolBars is how many returns the volatility estimate needs before
	// the vol bands participate in classification.
	minVolBars = 5
)

// RegimeClassifier labels bars with coarse market regimes. Volatility bands
// take precedence over trend: a market can trend up while being classified
// high_vol. The classifier is pure and deterministic; identical bars always
// produce identical tags.
type RegimeClassifier struct {
	fastWindow int
	slowWindow int
	volWindow  int
	highVol    float64
	lowVol     float64
	log        zerolog.Logger
}

// NewRegimeClassifier creates a classifier with the default windows and
// volatility bands.
func NewRegimeClassifier(log zerolog.Logger) *RegimeClassifier {
	return &RegimeClassifier{
		fastWindow: DefaultFastWindow,
		slowWindow: DefaultSlowWindow,
		volWindow:  DefaultVolWindow,
		highVol:    DefaultHighVol,
		lowVol:     DefaultLowVol,
		log:        log.With().Str("component", "regime_classifier").Logger(),
	}
}

// SetVolBands overrides the annualized volatility thresholds. Ignored unless
// 0 < low < high.
func (c *RegimeClassifier) SetVolBands(low, high float64) {
	if low > 0 && high > low {
		c.lowVol = low
		c.highVol = high
	}
}

// Tags labels every bar using only information available at that bar: SMA
// windows and the volatility estimate look strictly backward. The result is
// aligned index for index with the input.
func (c *RegimeClassifier) Tags(bars []domain.Bar, interval string) []domain.Regime {
	tags := make([]domain.Regime, len(bars))
	ppy := domain.PeriodsPerYear(interval)

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	for i := range bars {
		regime, _ := c.classifyAt(closes[:i+1], ppy)
		tags[i] = regime
	}

	return tags
}

// Classify labels the most recent bar of a series and reports a confidence
// in [0, 1]. Used by the gateway to enrich quotes.
func (c *RegimeClassifier) Classify(bars []domain.Bar, interval string) (domain.Regime, float64) {
	if len(bars) == 0 {
		return domain.RegimeLowVol, 0
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	return c.classifyAt(closes, domain.PeriodsPerYear(interval))
}

// classifyAt labels the last element of the close prefix.
func (c *RegimeClassifier) classifyAt(closes []float64, periodsPerYear int) (domain.Regime, float64) {
	vol, volKnown := c.annualizedVol(closes, periodsPerYear)

	if volKnown && vol >= c.highVol {
		return domain.RegimeHighVol, c.volConfidence(vol, c.highVol)
	}
	if volKnown && vol <= c.lowVol {
		return domain.RegimeLowVol, c.volConfidence(vol, c.lowVol)
	}

	spread := c.trendSpread(closes)
	confidence := formulas.Clip(math.Abs(spread)/fullConfidenceSpread, 0, 1)
	if spread >= 0 {
		return domain.RegimeBull, confidence
	}
	return domain.RegimeBear, confidence
}

// annualizedVol estimates realized volatility from the trailing window of
// log returns. Reports false until enough returns have accumulated.
func (c *RegimeClassifier) annualizedVol(closes []float64, periodsPerYear int) (float64, bool) {
	window := closes
	if len(window) > c.volWindow+1 {
		window = window[len(window)-c.volWindow-1:]
	}
	returns := formulas.LogReturns(window)
	if len(returns) < minVolBars {
		return 0, false
	}
	return formulas.AnnualizedVolatility(returns, periodsPerYear), true
}

// trendSpread is (fast SMA - slow SMA) / slow SMA over trailing windows,
// truncated when the series is shorter than the window.
func (c *RegimeClassifier) trendSpread(closes []float64) float64 {
	fast := tailMean(closes, c.fastWindow)
	slow := tailMean(closes, c.slowWindow)
	if slow == 0 {
		return 0
	}
	return (fast - slow) / slow
}

// volConfidence measures how far inside a band the estimate sits, relative
// to the band gap.
func (c *RegimeClassifier) volConfidence(vol, edge float64) float64 {
	gap := c.highVol - c.lowVol
	if gap <= 0 {
		return 1
	}
	return formulas.Clip(math.Abs(vol-edge)/gap, 0, 1)
}

func tailMean(values []float64, window int) float64 {
	if len(values) == 0 {
		return 0
	}
	if len(values) > window {
		values = values[len(values)-window:]
	}
	return formulas.Mean(values)
}
