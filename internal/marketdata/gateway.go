package marketdata

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/domain"
	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/pkg/formulas"
)

// DefaultMaxWindowBars bounds a single GetBars request. Larger windows are
// rejected with domain.ErrWindowTooLarge before any provider is called.
const DefaultMaxWindowBars = 10000

// Gateway provides uniform access to bars and quotes across an ordered list
// of providers. Failover policy: the list is traversed at most once per
// call; rate_limited and upstream_unavailable skip to the next provider, any
// other error propagates immediately.
type Gateway struct {
	providers     []domain.BarProvider
	limits        *RateLimiterSet
	cache         *BarCache
	classifier    *RegimeClassifier
	quotes        *QuoteCache
	maxWindowBars int
	log           zerolog.Logger
}

// Compile-time check that Gateway satisfies the domain contract.
var _ domain.MarketDataGateway = (*Gateway)(nil)

// NewGateway creates a gateway over the given provider chain. The bar cache
// is optional; a nil cache disables on-disk caching.
func NewGateway(
	providers []domain.BarProvider,
	limits *RateLimiterSet,
	cache *BarCache,
	classifier *RegimeClassifier,
	quotes *QuoteCache,
	log zerolog.Logger,
) *Gateway {
	return &Gateway{
		providers:     providers,
		limits:        limits,
		cache:         cache,
		classifier:    classifier,
		quotes:        quotes,
		maxWindowBars: DefaultMaxWindowBars,
		log:           log.With().Str("component", "marketdata_gateway").Logger(),
	}
}

// SetMaxWindowBars overrides the per-request window bound. Values below 1
// are ignored.
func (g *Gateway) SetMaxWindowBars(n int) {
	if n >= 1 {
		g.maxWindowBars = n
	}
}

// GetBars returns ordered bars for the window, reading through the cache and
// failing over across providers. Gaps stay explicit holes; nothing is
// interpolated.
func (g *Gateway) GetBars(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.Bar, error) {
	step, err := domain.IntervalDuration(interval)
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, fmt.Errorf("window end %s not after start %s", end, start)
	}
	if expected := int(end.Sub(start) / step); expected > g.maxWindowBars {
		return nil, fmt.Errorf("window of %d bars exceeds limit %d: %w",
			expected, g.maxWindowBars, domain.ErrWindowTooLarge)
	}

	hash := g.WindowHash(symbol, interval, start, end)

	if g.cache != nil {
		bars, hit, err := g.cache.Get(hash, symbol, interval, start, end)
		if err != nil {
			g.log.Warn().Err(err).Str("symbol", symbol).Msg("Bar cache read failed")
		} else if hit {
			return bars, nil
		}
	}

	bars, err := g.fetchBars(ctx, symbol, interval, start, end)
	if err != nil {
		return nil, err
	}

	if g.cache != nil {
		if err := g.cache.Put(hash, symbol, interval, start, end, bars); err != nil {
			g.log.Warn().Err(err).Str("symbol", symbol).Msg("Bar cache write failed")
		}
	}

	return bars, nil
}

// fetchBars walks the provider chain once. A provider whose token bucket is
// empty is skipped without calling upstream.
func (g *Gateway) fetchBars(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.Bar, error) {
	var lastErr error

	for _, provider := range g.providers {
		if !g.limits.Allow(provider.Name()) {
			g.log.Debug().
				Str("provider", provider.Name()).
				Str("symbol", symbol).
				Msg("Provider rate limited, skipping")
			lastErr = fmt.Errorf("provider %s bucket empty: %w", provider.Name(), domain.ErrRateLimited)
			continue
		}

		bars, err := provider.GetBars(ctx, symbol, interval, start, end)
		if err == nil {
			return bars, nil
		}

		if errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrUpstreamUnavailable) {
			g.log.Warn().
				Err(err).
				Str("provider", provider.Name()).
				Str("symbol", symbol).
				Msg("Provider failed, trying next")
			lastErr = err
			continue
		}

		// Anything else (unknown symbol, malformed request) is not a
		// provider outage; failing over would just repeat it.
		return nil, err
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no providers configured: %w", domain.ErrUpstreamUnavailable)
	}
	return nil, fmt.Errorf("provider chain exhausted for %s: %w", symbol, lastErr)
}

// GetQuote returns the latest quote. The TTL cache holds raw quotes, fed by
// either the provider chain or the streaming feed; enrichment (volatility,
// regime, sentiment) happens on every read so both sources share one path.
func (g *Gateway) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	if quote, ok := g.quotes.Get(symbol); ok {
		return g.enrichQuote(ctx, quote), nil
	}

	var lastErr error
	for _, provider := range g.providers {
		if !g.limits.Allow(provider.Name()) {
			lastErr = fmt.Errorf("provider %s bucket empty: %w", provider.Name(), domain.ErrRateLimited)
			continue
		}

		quote, err := provider.GetQuote(ctx, symbol)
		if err == nil {
			g.quotes.Set(quote)
			return g.enrichQuote(ctx, quote), nil
		}

		if errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrUpstreamUnavailable) {
			lastErr = err
			continue
		}
		return domain.Quote{}, err
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no providers configured: %w", domain.ErrUpstreamUnavailable)
	}
	return domain.Quote{}, fmt.Errorf("provider chain exhausted for %s: %w", symbol, lastErr)
}

// enrichQuote fills the derived quote fields from the trailing two months of
// daily bars. The window end is pinned to the day boundary so repeated
// enrichments within a day hit the bar cache. Enrichment is best-effort: a
// bar fetch failure leaves the raw quote usable with neutral defaults.
func (g *Gateway) enrichQuote(ctx context.Context, quote domain.Quote) domain.Quote {
	quote.Sentiment = sentimentFromChange(quote.Change7d)

	end := time.Now().UTC().Truncate(24 * time.Hour)
	bars, err := g.GetBars(ctx, quote.Symbol, "1d", end.AddDate(0, -2, 0), end)
	if err != nil || len(bars) == 0 {
		if err != nil {
			g.log.Debug().Err(err).Str("symbol", quote.Symbol).Msg("Quote enrichment skipped")
		}
		quote.Regime = domain.RegimeLowVol
		return quote
	}

	regime, confidence := g.classifier.Classify(bars, "1d")
	quote.Regime = regime
	quote.RegimeConfidence = confidence

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	returns := formulas.CalculateReturns(closes)
	if vol := formulas.AnnualizedVolatility(returns, domain.PeriodsPerYear("1d")); vol > 0 {
		quote.AnnualizedVol = vol
	}

	return quote
}

// RegimeTags labels every bar of the window, aligned with GetBars output for
// the same arguments.
func (g *Gateway) RegimeTags(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.Regime, error) {
	bars, err := g.GetBars(ctx, symbol, interval, start, end)
	if err != nil {
		return nil, err
	}
	return g.classifier.Tags(bars, interval), nil
}

// WindowHash returns the hash-stable cache key of a data window: hex SHA-256
// over the canonical window description.
func (g *Gateway) WindowHash(symbol, interval string, start, end time.Time) string {
	return hashWindow(symbol, interval, start, end)
}

// Counters exposes the per-provider rate limiter counters for monitoring.
func (g *Gateway) Counters() map[string]ProviderCounters {
	return g.limits.Counters()
}

func hashWindow(symbol, interval string, start, end time.Time) string {
	key := fmt.Sprintf("%s|%s|%d|%d", symbol, interval, start.Unix(), end.Unix())
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// sentimentFromChange maps weekly momentum to a coarse sentiment tag.
func sentimentFromChange(change7d float64) domain.Sentiment {
	switch {
	case change7d > 0.02:
		return domain.SentimentBullish
	case change7d < -0.02:
		return domain.SentimentBearish
	default:
		return domain.SentimentNeutral
	}
}

