package marketdata

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hetul803/GSIN-TRADING-PLATFORM-sub001/internal/domain"
)

// stubProvider is a canned provider that records how often it is called.
type stubProvider struct {
	mu         sync.Mutex
	name       string
	bars       []domain.Bar
	quote      domain.Quote
	err        error
	barCalls   int
	quoteCalls int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) GetBars(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.Bar, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.barCalls++
	if p.err != nil {
		return nil, p.err
	}
	var out []domain.Bar
	for _, b := range p.bars {
		if !b.Ts.Before(start) && b.Ts.Before(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (p *stubProvider) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quoteCalls++
	if p.err != nil {
		return domain.Quote{}, p.err
	}
	return p.quote, nil
}

func (p *stubProvider) calls() (bars, quotes int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.barCalls, p.quoteCalls
}

func hourlyBars(start time.Time, closes ...float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{
			Ts:     start.Add(time.Duration(i) * time.Hour),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func newTestGateway(providers []domain.BarProvider, limits *RateLimiterSet, cache *BarCache) *Gateway {
	if limits == nil {
		limits = NewRateLimiterSet()
	}
	return NewGateway(
		providers,
		limits,
		cache,
		NewRegimeClassifier(zerolog.Nop()),
		NewQuoteCache(DefaultQuoteTTL),
		zerolog.Nop(),
	)
}

func TestGatewaySkipsRateLimitedProviderWithoutCallingIt(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	primary := &stubProvider{name: "primary", bars: hourlyBars(start, 100, 101, 102)}
	secondary := &stubProvider{name: "secondary", bars: hourlyBars(start, 100, 101, 102)}

	limits := NewRateLimiterSet()
	limits.InitializeProvider("primary", 0, 0) // empty bucket, never refills

	gw := newTestGateway([]domain.BarProvider{primary, secondary}, limits, nil)

	bars, err := gw.GetBars(context.Background(), "BTC-USD", "1h", start, start.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Len(t, bars, 3)

	primaryCalls, _ := primary.calls()
	secondaryCalls, _ := secondary.calls()
	assert.Equal(t, 0, primaryCalls, "rate limited provider must not be called upstream")
	assert.Equal(t, 1, secondaryCalls)
	assert.Equal(t, int64(1), limits.RejectedCount("primary"))
}

func TestGatewayFailsOverOnUpstreamUnavailable(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	primary := &stubProvider{name: "primary", err: fmt.Errorf("503: %w", domain.ErrUpstreamUnavailable)}
	secondary := &stubProvider{name: "secondary", bars: hourlyBars(start, 50, 51)}

	gw := newTestGateway([]domain.BarProvider{primary, secondary}, nil, nil)

	bars, err := gw.GetBars(context.Background(), "ETH-USD", "1h", start, start.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Len(t, bars, 2)

	primaryCalls, _ := primary.calls()
	assert.Equal(t, 1, primaryCalls, "failover happens after the upstream call fails")
}

func TestGatewayPropagatesNonTransientErrors(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	primary := &stubProvider{name: "primary", err: fmt.Errorf("no series: %w", domain.ErrSymbolUnknown)}
	secondary := &stubProvider{name: "secondary", bars: hourlyBars(start, 50)}

	gw := newTestGateway([]domain.BarProvider{primary, secondary}, nil, nil)

	_, err := gw.GetBars(context.Background(), "NOPE-USD", "1h", start, start.Add(time.Hour))
	require.ErrorIs(t, err, domain.ErrSymbolUnknown)

	secondaryCalls, _ := secondary.calls()
	assert.Equal(t, 0, secondaryCalls, "unknown symbol must not fail over")
}

func TestGatewayReportsChainExhaustion(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	only := &stubProvider{name: "only", err: domain.ErrUpstreamUnavailable}

	gw := newTestGateway([]domain.BarProvider{only}, nil, nil)

	_, err := gw.GetBars(context.Background(), "BTC-USD", "1h", start, start.Add(time.Hour))
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)

	empty := newTestGateway(nil, nil, nil)
	_, err = empty.GetBars(context.Background(), "BTC-USD", "1h", start, start.Add(time.Hour))
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestGatewayRejectsOversizedWindows(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	provider := &stubProvider{name: "only"}

	gw := newTestGateway([]domain.BarProvider{provider}, nil, nil)
	gw.SetMaxWindowBars(10)

	_, err := gw.GetBars(context.Background(), "BTC-USD", "1h", start, start.Add(100*time.Hour))
	require.ErrorIs(t, err, domain.ErrWindowTooLarge)

	barCalls, _ := provider.calls()
	assert.Equal(t, 0, barCalls, "oversized windows are rejected before any provider call")
}

func TestGatewayRejectsUnknownInterval(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	gw := newTestGateway([]domain.BarProvider{&stubProvider{name: "only"}}, nil, nil)

	_, err := gw.GetBars(context.Background(), "BTC-USD", "2h", start, start.Add(time.Hour))
	require.Error(t, err)

	_, err = gw.GetBars(context.Background(), "BTC-USD", "1h", start, start)
	require.Error(t, err, "empty window is rejected")
}

func TestGatewayBarCacheReadThrough(t *testing.T) {
	cache, err := NewBarCache(filepath.Join(t.TempDir(), "bars.db"), zerolog.Nop())
	require.NoError(t, err)
	defer cache.Close()

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	provider := &stubProvider{name: "only", bars: hourlyBars(start, 10, 11, 12, 13)}

	gw := newTestGateway([]domain.BarProvider{provider}, nil, cache)

	first, err := gw.GetBars(context.Background(), "BTC-USD", "1h", start, start.Add(4*time.Hour))
	require.NoError(t, err)
	require.Len(t, first, 4)

	second, err := gw.GetBars(context.Background(), "BTC-USD", "1h", start, start.Add(4*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	barCalls, _ := provider.calls()
	assert.Equal(t, 1, barCalls, "second read must be served from the cache")
}

func TestGatewayRegimeTagsAlignWithBars(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	provider := &stubProvider{name: "only", bars: hourlyBars(start, closes...)}

	gw := newTestGateway([]domain.BarProvider{provider}, nil, nil)

	tags, err := gw.RegimeTags(context.Background(), "BTC-USD", "1h", start, start.Add(30*time.Hour))
	require.NoError(t, err)
	assert.Len(t, tags, 30)
}

func TestGatewayQuoteEnrichment(t *testing.T) {
	provider := &stubProvider{
		name: "only",
		quote: domain.Quote{
			Symbol:   "BTC-USD",
			Price:    62000,
			Change7d: 0.05,
			AsOf:     time.Now().UTC(),
		},
	}

	gw := newTestGateway([]domain.BarProvider{provider}, nil, nil)

	quote, err := gw.GetQuote(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, 62000.0, quote.Price)
	assert.Equal(t, domain.SentimentBullish, quote.Sentiment)
	assert.NotEmpty(t, quote.Regime)

	// Second read is served from the quote cache.
	_, err = gw.GetQuote(context.Background(), "BTC-USD")
	require.NoError(t, err)
	_, quoteCalls := provider.calls()
	assert.Equal(t, 1, quoteCalls)
}

func TestWindowHashIsStable(t *testing.T) {
	gw := newTestGateway(nil, nil, nil)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	a := gw.WindowHash("BTC-USD", "1h", start, end)
	b := gw.WindowHash("BTC-USD", "1h", start, end)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	assert.NotEqual(t, a, gw.WindowHash("BTC-USD", "4h", start, end))
	assert.NotEqual(t, a, gw.WindowHash("ETH-USD", "1h", start, end))
	assert.NotEqual(t, a, gw.WindowHash("BTC-USD", "1h", start, end.Add(time.Hour)))
}
